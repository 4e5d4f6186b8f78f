// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *guard.Principal
	// Set by: guard.Middleware after credential resolution and rate limiting
	// Required by: all protected handlers, workflow validation
	// Type: *guard.Principal
	PrincipalKey Key = "principal"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, response headers
	// Type: string
	RequestIDKey Key = "request_id"

	// RateLimitKey contains ratelimit.HeaderInfo
	// Set by: guard.Middleware so handlers can inspect the tightest window
	// Type: ratelimit.HeaderInfo
	RateLimitKey Key = "rate_limit"
)

// Helper functions for type-safe context operations

// WithPrincipal adds the resolved principal to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithRateLimit adds the accumulated rate-limit header info to the context
func WithRateLimit(ctx context.Context, info interface{}) context.Context {
	return context.WithValue(ctx, RateLimitKey, info)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
