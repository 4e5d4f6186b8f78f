package sites

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a member's role within a single site.
// Roles are totally ordered; comparisons are always numeric rank, never
// string equality, so "at least Author" is satisfied by Editor and above.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleEditor   Role = "editor"
	RoleAuthor   Role = "author"
	RoleReviewer Role = "reviewer"
	RoleViewer   Role = "viewer"
)

// roleRanks maps each role to its position in the hierarchy. An unknown role
// ranks below Viewer so it never satisfies any requirement.
var roleRanks = map[Role]int{
	RoleOwner:    60,
	RoleAdmin:    50,
	RoleEditor:   40,
	RoleAuthor:   30,
	RoleReviewer: 20,
	RoleViewer:   10,
}

// Rank returns the numeric rank of the role, 0 for unknown roles
func (r Role) Rank() int {
	return roleRanks[r]
}

// AtLeast reports whether r satisfies a minimum role requirement
func (r Role) AtLeast(min Role) bool {
	return r.Rank() >= min.Rank()
}

// Valid reports whether r is a recognized role
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Site represents a tenant workspace
type Site struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	RequireReview bool      `json:"require_review"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Membership ties one external-identity subject to one site with a role
type Membership struct {
	ID        uuid.UUID `json:"id"`
	SiteID    uuid.UUID `json:"site_id"`
	SubjectID string    `json:"subject_id"`
	Role      Role      `json:"role"`
	InvitedBy *string   `json:"invited_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AddMemberRequest represents a request to add a member to a site
type AddMemberRequest struct {
	SubjectID string `json:"subject_id"`
	Role      Role   `json:"role"`
}

// UpdateMemberRequest represents a request to change a member's role
type UpdateMemberRequest struct {
	Role Role `json:"role"`
}

// TransferOwnershipRequest represents a request to transfer site ownership
type TransferOwnershipRequest struct {
	NewOwnerSubjectID string `json:"new_owner_subject_id"`
}
