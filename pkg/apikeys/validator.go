package apikeys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkwell-cms/inkwell/pkg/observability"
)

// Validation failure reasons returned to callers
const (
	ReasonInvalidKey = "Invalid API key"
	ReasonExpired    = "API key is expired"
	ReasonBlocked    = "API key is blocked"
	ReasonRevoked    = "API key is revoked"
)

// Validator checks presented API key secrets against stored keys
type Validator struct {
	store     Store
	generator *Generator
	logger    *observability.Logger
}

// NewValidator creates a key validator
func NewValidator(store Store, generator *Generator, logger *observability.Logger) *Validator {
	return &Validator{
		store:     store,
		generator: generator,
		logger:    logger,
	}
}

// Validate checks a presented secret and returns the validation outcome.
// A malformed secret, an unknown hash, and a key in any non-active status
// all produce an invalid result with a reason; only lookup failures are
// surfaced as errors. An active key past its expiry is flipped to expired
// as a side effect before being rejected.
func (v *Validator) Validate(ctx context.Context, secret string) (*ValidationResult, error) {
	if err := v.generator.ValidateFormat(secret); err != nil {
		return &ValidationResult{Valid: false, Reason: ReasonInvalidKey}, nil
	}

	key, err := v.store.GetByHash(ctx, v.generator.HashSecret(secret))
	if errors.Is(err, ErrKeyNotFound) {
		return &ValidationResult{Valid: false, Reason: ReasonInvalidKey}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	if key.Status == StatusActive && key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		if err := v.store.UpdateStatus(ctx, key.ID, StatusExpired); err != nil {
			v.logger.WithError(err).WithField("key_id", key.ID.String()).
				Warn("failed to mark api key expired")
		}
		key.Status = StatusExpired
	}

	if key.Status != StatusActive {
		return &ValidationResult{Valid: false, Reason: statusReason(key.Status)}, nil
	}

	return &ValidationResult{
		Valid:      true,
		KeyID:      key.ID,
		SiteID:     key.SiteID,
		Permission: key.Permission,
		Limits:     key.Limits.WithDefaults(),
	}, nil
}

func statusReason(status Status) string {
	switch status {
	case StatusExpired:
		return ReasonExpired
	case StatusBlocked:
		return ReasonBlocked
	case StatusRevoked:
		return ReasonRevoked
	default:
		return ReasonInvalidKey
	}
}
