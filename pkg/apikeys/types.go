package apikeys

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-cms/inkwell/pkg/ratelimit"
	"github.com/inkwell-cms/inkwell/pkg/sites"
)

// Permission is the flat four-level classification carried by raw API keys.
// It is global to the key (a key pairs with at most one site) and is mapped
// onto the site role hierarchy for authorization decisions.
type Permission string

const (
	PermissionMaster Permission = "master"
	PermissionAdmin  Permission = "admin"
	PermissionWrite  Permission = "write"
	PermissionRead   Permission = "read"
)

// Valid reports whether p is a recognized permission
func (p Permission) Valid() bool {
	switch p {
	case PermissionMaster, PermissionAdmin, PermissionWrite, PermissionRead:
		return true
	}
	return false
}

// SiteRole maps the key permission onto the site role hierarchy. The mapping
// is total: every permission has exactly one role.
func (p Permission) SiteRole() sites.Role {
	switch p {
	case PermissionMaster:
		return sites.RoleOwner
	case PermissionAdmin:
		return sites.RoleAdmin
	case PermissionWrite:
		return sites.RoleEditor
	case PermissionRead:
		return sites.RoleViewer
	}
	// unknown permissions rank below every requirement
	return sites.Role("")
}

// Status represents the lifecycle state of an API key
type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// CanTransitionTo enforces the forward-only status machine:
// Active may become Blocked, Expired, or Revoked; Blocked may be unblocked
// back to Active or Revoked; Expired may only be Revoked; Revoked is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return false
	}
	switch s {
	case StatusActive:
		return next == StatusBlocked || next == StatusExpired || next == StatusRevoked
	case StatusBlocked:
		return next == StatusActive || next == StatusRevoked
	case StatusExpired:
		return next == StatusRevoked
	case StatusRevoked:
		return false
	}
	return false
}

// RateLimits holds the four optional per-window ceilings configured on a key.
// Zero means "use the deployment default".
type RateLimits struct {
	PerSecond int `json:"per_second,omitempty"`
	PerMinute int `json:"per_minute,omitempty"`
	PerHour   int `json:"per_hour,omitempty"`
	PerDay    int `json:"per_day,omitempty"`
}

// Default per-window ceilings applied when a key has none configured
const (
	DefaultPerSecond = 10
	DefaultPerMinute = 100
	DefaultPerHour   = 1000
	DefaultPerDay    = 10000
)

// WithDefaults fills unset windows with the fixed defaults so the rate
// limiter never needs a secondary lookup
func (l RateLimits) WithDefaults() RateLimits {
	out := l
	if out.PerSecond == 0 {
		out.PerSecond = DefaultPerSecond
	}
	if out.PerMinute == 0 {
		out.PerMinute = DefaultPerMinute
	}
	if out.PerHour == 0 {
		out.PerHour = DefaultPerHour
	}
	if out.PerDay == 0 {
		out.PerDay = DefaultPerDay
	}
	return out
}

// Limits converts the key's ceilings into the rate limiter's window set
func (l RateLimits) Limits() ratelimit.Limits {
	filled := l.WithDefaults()
	return ratelimit.Limits{
		PerSecond: filled.PerSecond,
		PerMinute: filled.PerMinute,
		PerHour:   filled.PerHour,
		PerDay:    filled.PerDay,
	}
}

// Key represents an API key. The opaque secret is never stored; only its
// salted hash is.
type Key struct {
	ID            uuid.UUID  `json:"id"`
	SiteID        *uuid.UUID `json:"site_id,omitempty"` // nil = not pinned to a site
	Name          string     `json:"name"`
	KeyHash       string     `json:"-"` // never expose the hash
	KeyPrefix     string     `json:"key_prefix"`
	Permission    Permission `json:"permission"`
	Status        Status     `json:"status"`
	Limits        RateLimits `json:"rate_limits"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	TotalRequests int64      `json:"total_requests"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP    string     `json:"last_used_ip,omitempty"`
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ValidationResult is the outcome of checking a presented secret
type ValidationResult struct {
	Valid      bool       `json:"valid"`
	Reason     string     `json:"reason,omitempty"`
	KeyID      uuid.UUID  `json:"key_id,omitempty"`
	SiteID     *uuid.UUID `json:"site_id,omitempty"`
	Permission Permission `json:"permission,omitempty"`
	Limits     RateLimits `json:"rate_limits"`
}

// CreateKeyRequest represents a request to mint a new key
type CreateKeyRequest struct {
	Name       string     `json:"name"`
	Permission Permission `json:"permission"`
	Limits     RateLimits `json:"rate_limits"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}
