package guard

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkwell-cms/inkwell/pkg/apikeys"
	"github.com/inkwell-cms/inkwell/pkg/sites"
)

// PrincipalKind distinguishes how the caller authenticated
type PrincipalKind string

// Principal kinds
const (
	KindUser PrincipalKind = "user"
	KindKey  PrincipalKind = "key"
)

// Principal is an authenticated caller. Exactly one of the two credential
// shapes applies: a user principal carries a subject derived from a bearer
// token, a key principal carries the validated key's identity, permission,
// and optional site pin.
type Principal struct {
	Kind PrincipalKind

	// User principals
	SubjectID uuid.UUID
	Email     string

	// Key principals
	KeyID      uuid.UUID
	KeySiteID  *uuid.UUID
	Permission apikeys.Permission

	SystemAdmin bool
}

// RateLimitID is the identifier the principal-level rate counter is keyed
// by: the key ID for key principals, the derived subject ID for user
// principals.
func (p *Principal) RateLimitID() string {
	if p.Kind == KindKey {
		return p.KeyID.String()
	}
	return p.SubjectID.String()
}

// EffectiveSiteRole resolves the principal's role on a site. System
// administrators act as Owner everywhere. A key pinned to a different site
// has no role at all; an unpinned key's role follows its permission level.
// User roles come from the membership store; no membership means no role.
func (p *Principal) EffectiveSiteRole(ctx context.Context, memberships sites.MembershipStore, siteID uuid.UUID) (sites.Role, error) {
	if p.SystemAdmin {
		return sites.RoleOwner, nil
	}

	if p.Kind == KindKey {
		if p.KeySiteID != nil && *p.KeySiteID != siteID {
			return "", nil
		}
		return p.Permission.SiteRole(), nil
	}

	membership, err := memberships.GetMembership(ctx, p.SubjectID.String(), siteID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve site role: %w", err)
	}
	if membership == nil {
		return "", nil
	}
	return membership.Role, nil
}

// RequireSiteRole checks that the principal holds at least the given role
// on the site. Failures come back as guard errors ready for the transport
// layer.
func (p *Principal) RequireSiteRole(ctx context.Context, memberships sites.MembershipStore, siteID uuid.UUID, minimum sites.Role) (sites.Role, error) {
	role, err := p.EffectiveSiteRole(ctx, memberships, siteID)
	if err != nil {
		return "", Internal("failed to resolve permissions")
	}
	if role == "" {
		return "", Forbidden("no access to this site")
	}
	if !role.AtLeast(minimum) {
		return role, Forbidden(fmt.Sprintf("requires %s access or above", minimum))
	}
	return role, nil
}

// ValidateKeyCreation checks that the principal may mint a key with the
// requested permission on the site, applying the role-based cap.
func (p *Principal) ValidateKeyCreation(ctx context.Context, memberships sites.MembershipStore, siteID uuid.UUID, requested apikeys.Permission) error {
	role, err := p.EffectiveSiteRole(ctx, memberships, siteID)
	if err != nil {
		return Internal("failed to resolve permissions")
	}
	if role == "" && !p.SystemAdmin {
		return Forbidden("no access to this site")
	}
	if err := apikeys.ValidatePermissionCap(role, p.SystemAdmin, requested); err != nil {
		return Forbidden(err.Error())
	}
	return nil
}
