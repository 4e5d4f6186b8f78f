// Package observability provides structured logging, Prometheus metrics, and
// health endpoints for the Inkwell service.
//
// The Logger wraps slog with a chainable WithField/WithError API and can be
// carried in a request context. Metrics cover HTTP traffic plus the
// authentication, rate-limiting, and workflow decisions made by the
// access-control core.
package observability
