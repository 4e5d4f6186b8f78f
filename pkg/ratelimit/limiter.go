package ratelimit

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/inkwell-cms/inkwell/pkg/observability"
)

// Scope identifies what a counter is keyed on
type Scope string

// Counter scopes
const (
	ScopeIP  Scope = "ip"
	ScopeKey Scope = "key"
)

// LimitExceededError reports that a counter went over its window limit
type LimitExceededError struct {
	Scope   Scope
	Window  Window
	Headers HeaderInfo
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s window per %s", e.Window, e.Scope)
}

// Limiter enforces fixed-window rate limits backed by Redis. Counters are
// bucketed by window start, so a window boundary fully resets the count.
//
// A nil Redis client disables enforcement entirely: every check passes.
// A reachable client that errors mid-request fails the request instead,
// so a Redis outage cannot silently lift the limits.
type Limiter struct {
	client *redis.Client
	logger *observability.Logger
}

// NewLimiter creates a limiter. client may be nil to disable enforcement.
func NewLimiter(client *redis.Client, logger *observability.Logger) *Limiter {
	if client == nil {
		logger.Warn("rate limiting disabled: no redis client configured")
	}
	return &Limiter{client: client, logger: logger}
}

// CheckIP enforces the given limits against a client IP. Loopback
// addresses are exempt so health probes and local tooling are never
// throttled.
func (l *Limiter) CheckIP(ctx context.Context, ip string, limits Limits) (HeaderInfo, error) {
	if parsed := net.ParseIP(ip); parsed != nil && parsed.IsLoopback() {
		return HeaderInfo{}, nil
	}
	return l.check(ctx, ScopeIP, ip, limits)
}

// CheckKey enforces a key's own limits against its counters
func (l *Limiter) CheckKey(ctx context.Context, keyID string, limits Limits) (HeaderInfo, error) {
	return l.check(ctx, ScopeKey, keyID, limits)
}

func (l *Limiter) check(ctx context.Context, scope Scope, id string, limits Limits) (HeaderInfo, error) {
	if l.client == nil {
		return HeaderInfo{}, nil
	}

	var headers HeaderInfo
	now := time.Now()

	for _, window := range Windows {
		limit := limits.forWindow(window)
		if limit <= 0 {
			continue
		}

		count, reset, err := l.increment(ctx, scope, id, window, now)
		if err != nil {
			return headers, fmt.Errorf("rate limit check failed: %w", err)
		}

		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		headers.Merge(HeaderInfo{Limit: limit, Remaining: remaining, Reset: reset})

		if count > int64(limit) {
			return headers, &LimitExceededError{
				Scope:   scope,
				Window:  window,
				Headers: headers,
			}
		}
	}

	return headers, nil
}

// increment bumps the fixed-window counter and returns the new count and
// the window's reset time. INCR and EXPIRE are pipelined; the expiry is a
// little longer than the window so a bucket never outlives its usefulness
// but clock skew cannot drop it early.
func (l *Limiter) increment(ctx context.Context, scope Scope, id string, window Window, now time.Time) (int64, time.Time, error) {
	dur := window.Duration()
	bucket := now.Unix() / int64(dur.Seconds())
	key := fmt.Sprintf("ratelimit:%s:%s:%s:%d", scope, window, id, bucket)

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, dur+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, err
	}

	reset := time.Unix((bucket+1)*int64(dur.Seconds()), 0)
	return incr.Val(), reset, nil
}
