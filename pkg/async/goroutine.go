// Package async provides helpers for safely detaching work from the request path.
package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/inkwell-cms/inkwell/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` for fire-and-forget work such as
// usage-counter updates: the caller never waits on completion, and failures
// are logged rather than surfaced. The spawned task gets a fresh context so
// it survives the originating request being cancelled.
//
// Example:
//
//	SafeGo(logger, 5*time.Second, "usage recording", func(ctx context.Context) error {
//	    return store.RecordUsage(ctx, keyID, ip)
//	})
func SafeGo(logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("task", taskName).
					WithField("panic", fmt.Sprintf("%v", r)).
					WithField("stack", string(debug.Stack())).
					Error("panic in detached task")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithField("task", taskName).WithError(err).Warn("detached task failed")
		}
	}()
}
