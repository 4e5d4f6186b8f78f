package workflow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-cms/inkwell/pkg/sites"
)

type staticPolicy struct {
	policy Policy
}

func (s staticPolicy) SitePolicy(_ context.Context, _ uuid.UUID) (Policy, error) {
	return s.policy, nil
}

func TestValidateTransition(t *testing.T) {
	siteID := uuid.New()

	tests := []struct {
		name          string
		role          sites.Role
		current       Status
		requested     Status
		requireReview bool
		allowed       bool
	}{
		{"author submits draft for review", sites.RoleAuthor, StatusDraft, StatusInReview, true, true},
		{"viewer cannot submit for review", sites.RoleViewer, StatusDraft, StatusInReview, true, false},
		{"reviewer cannot submit published content for review", sites.RoleReviewer, StatusPublished, StatusInReview, true, false},

		{"reviewer returns in-review content to draft", sites.RoleReviewer, StatusInReview, StatusDraft, true, true},
		{"viewer cannot return content to draft", sites.RoleViewer, StatusInReview, StatusDraft, true, false},
		{"editor unpublishes", sites.RoleEditor, StatusPublished, StatusDraft, true, true},
		{"reviewer cannot unpublish", sites.RoleReviewer, StatusPublished, StatusDraft, true, false},
		{"editor unschedules", sites.RoleEditor, StatusScheduled, StatusDraft, true, true},

		{"editor publishes reviewed content", sites.RoleEditor, StatusInReview, StatusPublished, true, true},
		{"editor publishes scheduled content", sites.RoleEditor, StatusScheduled, StatusPublished, true, true},
		{"author cannot publish", sites.RoleAuthor, StatusInReview, StatusPublished, true, false},
		{"reviewer cannot publish", sites.RoleReviewer, StatusInReview, StatusPublished, true, false},
		{"owner publishes", sites.RoleOwner, StatusInReview, StatusPublished, true, true},

		{"editor publishes draft directly despite review mandate", sites.RoleEditor, StatusDraft, StatusPublished, true, true},
		{"reviewer cannot publish draft when review required", sites.RoleReviewer, StatusDraft, StatusPublished, true, false},
		{"author cannot publish draft when review required", sites.RoleAuthor, StatusDraft, StatusPublished, true, false},
		{"author publishes draft when review optional", sites.RoleAuthor, StatusDraft, StatusPublished, false, true},
		{"reviewer cannot publish draft even when review optional", sites.RoleReviewer, StatusDraft, StatusPublished, false, false},
		{"editor schedules draft directly despite review mandate", sites.RoleEditor, StatusDraft, StatusScheduled, true, true},
		{"author cannot schedule draft when review required", sites.RoleAuthor, StatusDraft, StatusScheduled, true, false},
		{"author schedules draft when review optional", sites.RoleAuthor, StatusDraft, StatusScheduled, false, true},
		{"editor schedules reviewed content", sites.RoleEditor, StatusInReview, StatusScheduled, true, true},
		{"author cannot schedule", sites.RoleAuthor, StatusInReview, StatusScheduled, false, false},
		{"cannot schedule published content", sites.RoleEditor, StatusPublished, StatusScheduled, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(staticPolicy{Policy{RequireReview: tt.requireReview}})
			err := engine.ValidateTransition(context.Background(), siteID, tt.role, tt.current, tt.requested)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				var forbidden *ForbiddenError
				require.ErrorAs(t, err, &forbidden)
				assert.NotEmpty(t, forbidden.Rule)
			}
		})
	}
}

// A mandated review step constrains below-Editor callers only: an Editor may
// still take a draft straight to Published, a Reviewer may not.
func TestReviewMandateConstrainsBelowEditorOnly(t *testing.T) {
	engine := NewEngine(staticPolicy{Policy{RequireReview: true}})
	siteID := uuid.New()

	err := engine.ValidateTransition(context.Background(), siteID, sites.RoleReviewer, StatusDraft, StatusPublished)
	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	err = engine.ValidateTransition(context.Background(), siteID, sites.RoleEditor, StatusDraft, StatusPublished)
	assert.NoError(t, err)
}

func TestValidateTransitionRejectsNoOp(t *testing.T) {
	engine := NewEngine(staticPolicy{})
	err := engine.ValidateTransition(context.Background(), uuid.New(), sites.RoleOwner, StatusDraft, StatusDraft)

	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)
}

func TestValidateTransitionRejectsUnknownStatus(t *testing.T) {
	engine := NewEngine(staticPolicy{})

	err := engine.ValidateTransition(context.Background(), uuid.New(), sites.RoleOwner, Status("archived"), StatusDraft)
	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	err = engine.ValidateTransition(context.Background(), uuid.New(), sites.RoleOwner, StatusDraft, Status("archived"))
	require.ErrorAs(t, err, &forbidden)
}
