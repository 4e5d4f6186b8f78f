package guard

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/inkwell-cms/inkwell/pkg/apikeys"
	"github.com/inkwell-cms/inkwell/pkg/identity"
	"github.com/inkwell-cms/inkwell/pkg/ratelimit"
	"github.com/inkwell-cms/inkwell/pkg/sites"
)

// APIKeyHeader carries the opaque key secret
const APIKeyHeader = "X-API-Key"

// Strategy authenticates one credential scheme. Strategies are tried in a
// fixed order; Extract reports whether the request carries this scheme's
// credential at all.
type Strategy interface {
	Name() string
	Extract(r *http.Request) (credential string, present bool)
	Authenticate(ctx context.Context, credential string) (*Principal, ratelimit.Limits, *Error)
}

// BearerStrategy authenticates signed bearer tokens
type BearerStrategy struct {
	verifier    *identity.Verifier
	memberships sites.MembershipStore
	limits      ratelimit.Limits
}

// NewBearerStrategy creates the bearer-token strategy. limits are the
// default limit set applied to token-authenticated requests; bearer
// principals have no per-key ceilings of their own, so the same set feeds
// both the IP-level and the principal-level counters.
func NewBearerStrategy(verifier *identity.Verifier, memberships sites.MembershipStore, limits ratelimit.Limits) *BearerStrategy {
	return &BearerStrategy{verifier: verifier, memberships: memberships, limits: limits}
}

// Name returns the scheme name
func (s *BearerStrategy) Name() string { return "bearer" }

// Extract pulls the token out of the Authorization header
func (s *BearerStrategy) Extract(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// Authenticate verifies the token and builds a user principal
func (s *BearerStrategy) Authenticate(ctx context.Context, credential string) (*Principal, ratelimit.Limits, *Error) {
	claims, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		if errors.Is(err, identity.ErrNoKeyEndpoint) {
			return nil, ratelimit.Limits{}, Internal("token verification unavailable")
		}
		return nil, ratelimit.Limits{}, Unauthorized("invalid or expired token")
	}

	subjectID := identity.SubjectID(claims.Subject)
	isAdmin, err := s.memberships.IsSystemAdmin(ctx, subjectID.String())
	if err != nil {
		return nil, ratelimit.Limits{}, Internal("failed to resolve identity")
	}

	return &Principal{
		Kind:        KindUser,
		SubjectID:   subjectID,
		Email:       claims.Email,
		SystemAdmin: isAdmin,
	}, s.limits, nil
}

// APIKeyStrategy authenticates opaque API keys
type APIKeyStrategy struct {
	validator *apikeys.Validator
}

// NewAPIKeyStrategy creates the API-key strategy
func NewAPIKeyStrategy(validator *apikeys.Validator) *APIKeyStrategy {
	return &APIKeyStrategy{validator: validator}
}

// Name returns the scheme name
func (s *APIKeyStrategy) Name() string { return "api_key" }

// Extract pulls the secret out of the X-API-Key header
func (s *APIKeyStrategy) Extract(r *http.Request) (string, bool) {
	secret := r.Header.Get(APIKeyHeader)
	return secret, secret != ""
}

// Authenticate validates the secret and builds a key principal carrying
// the key's own rate limits
func (s *APIKeyStrategy) Authenticate(ctx context.Context, credential string) (*Principal, ratelimit.Limits, *Error) {
	result, err := s.validator.Validate(ctx, credential)
	if err != nil {
		return nil, ratelimit.Limits{}, Internal("failed to validate credentials")
	}
	if !result.Valid {
		return nil, ratelimit.Limits{}, Unauthorized(result.Reason)
	}

	return &Principal{
		Kind:       KindKey,
		KeyID:      result.KeyID,
		KeySiteID:  result.SiteID,
		Permission: result.Permission,
	}, result.Limits.Limits(), nil
}
