package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkwell-cms/inkwell/pkg/sites"
)

// ForbiddenError reports a transition rejected by the workflow rules.
// The Rule field names the specific rule violated so clients never see a
// generic "invalid state".
type ForbiddenError struct {
	Rule string
}

func (e *ForbiddenError) Error() string {
	return e.Rule
}

// PolicySource resolves the workflow policy for a site
type PolicySource interface {
	SitePolicy(ctx context.Context, siteID uuid.UUID) (Policy, error)
}

// Engine validates content status transitions against the caller's role and
// the site's workflow policy. It performs no writes: time-based promotions
// (Scheduled to Published) belong to the business layer, not this engine.
type Engine struct {
	policies PolicySource
}

// NewEngine creates a workflow engine backed by the given policy source
func NewEngine(policies PolicySource) *Engine {
	return &Engine{policies: policies}
}

// ValidateTransition accepts or rejects a one-step status change requested by
// a caller holding the given role on the site
func (e *Engine) ValidateTransition(ctx context.Context, siteID uuid.UUID, role sites.Role, current, requested Status) error {
	if !current.Valid() {
		return &ForbiddenError{Rule: fmt.Sprintf("unknown current status %q", current)}
	}
	if !requested.Valid() {
		return &ForbiddenError{Rule: fmt.Sprintf("unknown requested status %q", requested)}
	}
	if current == requested {
		return &ForbiddenError{Rule: fmt.Sprintf("content is already %s", current)}
	}

	policy, err := e.policies.SitePolicy(ctx, siteID)
	if err != nil {
		return fmt.Errorf("failed to resolve workflow policy: %w", err)
	}

	switch requested {
	case StatusDraft:
		return e.validateToDraft(role, current)
	case StatusInReview:
		return e.validateToInReview(role, current)
	case StatusScheduled:
		return e.validateToScheduled(role, current, policy)
	case StatusPublished:
		return e.validateToPublished(role, current, policy)
	}
	return &ForbiddenError{Rule: fmt.Sprintf("unknown requested status %q", requested)}
}

// validateToDraft covers withdrawing content back to Draft. A Reviewer may
// send InReview content back; unpublishing or unscheduling requires Editor.
func (e *Engine) validateToDraft(role sites.Role, current Status) error {
	switch current {
	case StatusInReview:
		if !role.AtLeast(sites.RoleReviewer) {
			return &ForbiddenError{Rule: "returning content to draft requires at least the Reviewer role"}
		}
		return nil
	case StatusScheduled, StatusPublished:
		if !role.AtLeast(sites.RoleEditor) {
			return &ForbiddenError{Rule: "unpublishing content requires at least the Editor role"}
		}
		return nil
	}
	return &ForbiddenError{Rule: fmt.Sprintf("cannot move content from %s to %s", current, StatusDraft)}
}

// validateToInReview covers submitting a draft for review
func (e *Engine) validateToInReview(role sites.Role, current Status) error {
	if current != StatusDraft {
		return &ForbiddenError{Rule: fmt.Sprintf("only draft content can be submitted for review, not %s", current)}
	}
	if !role.AtLeast(sites.RoleAuthor) {
		return &ForbiddenError{Rule: "submitting content for review requires at least the Author role"}
	}
	return nil
}

// validateToScheduled covers queuing content for future publication. A
// mandated review step raises the bar for scheduling a raw draft from
// Author to Editor; content that went through review needs Editor either way.
func (e *Engine) validateToScheduled(role sites.Role, current Status, policy Policy) error {
	switch current {
	case StatusInReview:
		if !role.AtLeast(sites.RoleEditor) {
			return &ForbiddenError{Rule: "scheduling content requires at least the Editor role"}
		}
		return nil
	case StatusDraft:
		if policy.RequireReview {
			if !role.AtLeast(sites.RoleEditor) {
				return &ForbiddenError{Rule: "this site requires a review step before scheduling; only an Editor may skip it"}
			}
			return nil
		}
		if !role.AtLeast(sites.RoleAuthor) {
			return &ForbiddenError{Rule: "scheduling content requires at least the Author role"}
		}
		return nil
	}
	return &ForbiddenError{Rule: fmt.Sprintf("cannot move content from %s to %s", current, StatusScheduled)}
}

// validateToPublished covers immediate publication. Same shape as
// scheduling: the review mandate constrains below-Editor callers, an Editor
// may always publish a draft directly.
func (e *Engine) validateToPublished(role sites.Role, current Status, policy Policy) error {
	switch current {
	case StatusInReview, StatusScheduled:
		if !role.AtLeast(sites.RoleEditor) {
			return &ForbiddenError{Rule: "publishing content requires at least the Editor role"}
		}
		return nil
	case StatusDraft:
		if policy.RequireReview {
			if !role.AtLeast(sites.RoleEditor) {
				return &ForbiddenError{Rule: "this site requires a review step before publishing; only an Editor may skip it"}
			}
			return nil
		}
		if !role.AtLeast(sites.RoleAuthor) {
			return &ForbiddenError{Rule: "publishing content requires at least the Author role"}
		}
		return nil
	}
	return &ForbiddenError{Rule: fmt.Sprintf("cannot move content from %s to %s", current, StatusPublished)}
}
