package sites

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// membershipEntry wraps a lookup result so negative lookups (no row) are
// cached alongside positive ones
type membershipEntry struct {
	membership *Membership
}

// CachedMembershipStore decorates a MembershipStore with a short-lived
// in-process cache. Role checks run on every request; the cache keeps the
// guard from issuing a store lookup per check while bounding staleness to
// the entry TTL.
type CachedMembershipStore struct {
	inner       MembershipStore
	memberships *expirable.LRU[string, membershipEntry]
	admins      *expirable.LRU[string, bool]
}

// NewCachedMembershipStore wraps store with an expirable LRU of the given
// size and TTL
func NewCachedMembershipStore(store MembershipStore, size int, ttl time.Duration) *CachedMembershipStore {
	return &CachedMembershipStore{
		inner:       store,
		memberships: expirable.NewLRU[string, membershipEntry](size, nil, ttl),
		admins:      expirable.NewLRU[string, bool](size, nil, ttl),
	}
}

// GetMembership returns the cached membership or falls through to the store
func (c *CachedMembershipStore) GetMembership(ctx context.Context, subjectID string, siteID uuid.UUID) (*Membership, error) {
	key := subjectID + "|" + siteID.String()
	if entry, ok := c.memberships.Get(key); ok {
		return entry.membership, nil
	}

	m, err := c.inner.GetMembership(ctx, subjectID, siteID)
	if err != nil {
		return nil, err
	}
	c.memberships.Add(key, membershipEntry{membership: m})
	return m, nil
}

// IsSystemAdmin returns the cached allow-list answer or falls through to the store
func (c *CachedMembershipStore) IsSystemAdmin(ctx context.Context, subjectID string) (bool, error) {
	if admin, ok := c.admins.Get(subjectID); ok {
		return admin, nil
	}

	admin, err := c.inner.IsSystemAdmin(ctx, subjectID)
	if err != nil {
		return false, err
	}
	c.admins.Add(subjectID, admin)
	return admin, nil
}

// Invalidate drops cached entries for a subject after a membership mutation
func (c *CachedMembershipStore) Invalidate(subjectID string, siteID uuid.UUID) {
	c.memberships.Remove(subjectID + "|" + siteID.String())
	c.admins.Remove(subjectID)
}
