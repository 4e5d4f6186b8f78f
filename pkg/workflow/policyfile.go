package workflow

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"gopkg.in/yaml.v3"
)

// PolicyFile holds workflow defaults loaded from a YAML file. Per-site rows
// in the store win; the file supplies the default for sites without one and
// optional overrides keyed by site ID.
type PolicyFile struct {
	Default Policy            `yaml:"default"`
	Sites   map[string]Policy `yaml:"sites"`
}

// NewPolicyFile creates an in-memory policy file with only a default
func NewPolicyFile(def Policy) *PolicyFile {
	return &PolicyFile{Default: def}
}

// LoadPolicyFile parses workflow policy defaults from disk
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return &file, nil
}

// SitePolicy returns the override for the site when present, otherwise the
// file's default. Implements PolicySource.
func (f *PolicyFile) SitePolicy(_ context.Context, siteID uuid.UUID) (Policy, error) {
	if policy, ok := f.Sites[siteID.String()]; ok {
		return policy, nil
	}
	return f.Default, nil
}

// SiteStore is the subset of the site store consulted for workflow policy
type SiteStore interface {
	SiteRequireReview(ctx context.Context, siteID uuid.UUID) (bool, bool, error)
}

// StorePolicySource resolves policy from site rows, falling back to file
// defaults when a site has no row
type StorePolicySource struct {
	store    SiteStore
	fallback PolicySource
}

// NewStorePolicySource creates a policy source over the site store with an
// optional fallback (may be nil)
func NewStorePolicySource(store SiteStore, fallback PolicySource) *StorePolicySource {
	return &StorePolicySource{store: store, fallback: fallback}
}

// SitePolicy implements PolicySource
func (s *StorePolicySource) SitePolicy(ctx context.Context, siteID uuid.UUID) (Policy, error) {
	requireReview, found, err := s.store.SiteRequireReview(ctx, siteID)
	if err != nil {
		return Policy{}, err
	}
	if found {
		return Policy{RequireReview: requireReview}, nil
	}
	if s.fallback != nil {
		return s.fallback.SitePolicy(ctx, siteID)
	}
	return Policy{}, nil
}
