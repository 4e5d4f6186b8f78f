package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-cms/inkwell/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, nil)
}

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLimiter(client, testLogger()), server
}

func TestCheckKeyWithinLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	limits := Limits{PerMinute: 3}

	for i := 0; i < 3; i++ {
		headers, err := limiter.CheckKey(context.Background(), "key-1", limits)
		require.NoError(t, err)
		assert.Equal(t, 3, headers.Limit)
		assert.Equal(t, 3-(i+1), headers.Remaining)
	}
}

func TestCheckKeyOverLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	limits := Limits{PerMinute: 2}

	for i := 0; i < 2; i++ {
		_, err := limiter.CheckKey(context.Background(), "key-1", limits)
		require.NoError(t, err)
	}

	_, err := limiter.CheckKey(context.Background(), "key-1", limits)
	var exceeded *LimitExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, ScopeKey, exceeded.Scope)
	assert.Equal(t, WindowMinute, exceeded.Window)
	assert.Equal(t, 0, exceeded.Headers.Remaining)
}

func TestCountersAreIndependentPerKey(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	limits := Limits{PerMinute: 1}

	_, err := limiter.CheckKey(context.Background(), "key-1", limits)
	require.NoError(t, err)

	// A different key has its own counter
	_, err = limiter.CheckKey(context.Background(), "key-2", limits)
	require.NoError(t, err)

	_, err = limiter.CheckKey(context.Background(), "key-1", limits)
	assert.Error(t, err)
}

func TestTightestWindowReported(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	limits := Limits{PerMinute: 100, PerHour: 5}

	headers, err := limiter.CheckKey(context.Background(), "key-1", limits)
	require.NoError(t, err)

	// The hour window has the fewest remaining requests
	assert.Equal(t, 5, headers.Limit)
	assert.Equal(t, 4, headers.Remaining)
}

func TestLoopbackExempt(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	limits := Limits{PerSecond: 1}

	for _, ip := range []string{"127.0.0.1", "::1"} {
		for i := 0; i < 10; i++ {
			headers, err := limiter.CheckIP(context.Background(), ip, limits)
			require.NoError(t, err)
			assert.Zero(t, headers.Limit)
		}
	}
}

func TestPublicIPLimited(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	limits := Limits{PerMinute: 1}

	_, err := limiter.CheckIP(context.Background(), "203.0.113.9", limits)
	require.NoError(t, err)

	_, err = limiter.CheckIP(context.Background(), "203.0.113.9", limits)
	var exceeded *LimitExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, ScopeIP, exceeded.Scope)
}

func TestNilClientDisablesLimiting(t *testing.T) {
	limiter := NewLimiter(nil, testLogger())
	limits := Limits{PerSecond: 1}

	for i := 0; i < 100; i++ {
		headers, err := limiter.CheckKey(context.Background(), "key-1", limits)
		require.NoError(t, err)
		assert.Zero(t, headers.Limit)
	}
}

func TestRedisFailureFailsRequest(t *testing.T) {
	limiter, server := newTestLimiter(t)
	server.Close()

	_, err := limiter.CheckKey(context.Background(), "key-1", Limits{PerMinute: 10})
	require.Error(t, err)

	var exceeded *LimitExceededError
	assert.False(t, errors.As(err, &exceeded))
}

func TestCounterExpiry(t *testing.T) {
	limiter, server := newTestLimiter(t)
	limits := Limits{PerHour: 1}

	_, err := limiter.CheckKey(context.Background(), "key-1", limits)
	require.NoError(t, err)

	_, err = limiter.CheckKey(context.Background(), "key-1", limits)
	require.Error(t, err)

	// Redis drops the bucket after the window passes
	server.FastForward(time.Hour + 2*time.Second)

	_, err = limiter.CheckKey(context.Background(), "key-1", limits)
	assert.NoError(t, err)
}

func TestZeroLimitsPass(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	headers, err := limiter.CheckKey(context.Background(), "key-1", Limits{})
	require.NoError(t, err)
	assert.Zero(t, headers.Limit)
}
