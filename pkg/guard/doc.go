// Package guard gates every API request: it resolves the caller's
// credential (bearer token or API key, in that order), applies per-IP and
// per-key rate limits, and exposes the resulting principal for
// role-based authorization checks.
package guard
