package apikeys

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-cms/inkwell/pkg/async"
	"github.com/inkwell-cms/inkwell/pkg/observability"
)

const usageRecordTimeout = 5 * time.Second

// UsageRecorder records key usage off the request path. Recording is
// fire-and-forget: the request never waits on it and failures are only
// logged.
type UsageRecorder struct {
	store  Store
	logger *observability.Logger
}

// NewUsageRecorder creates a usage recorder
func NewUsageRecorder(store Store, logger *observability.Logger) *UsageRecorder {
	return &UsageRecorder{store: store, logger: logger}
}

// Record increments the key's counters and stamps the caller IP in the
// background. The spawned work uses its own context so it survives
// cancellation of the originating request.
func (r *UsageRecorder) Record(keyID uuid.UUID, ip string) {
	async.SafeGo(r.logger, usageRecordTimeout, "apikey-usage-record", func(ctx context.Context) error {
		return r.store.RecordUsage(ctx, keyID, ip)
	})
}
