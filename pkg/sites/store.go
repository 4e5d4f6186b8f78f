package sites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store errors distinguishable by callers
var (
	// ErrMemberNotFound reports a missing membership row on mutation
	ErrMemberNotFound = errors.New("member not found")
	// ErrMemberExists reports a duplicate membership on insert
	ErrMemberExists = errors.New("member already exists")
	// ErrSoleOwner blocks removing or demoting the only Owner of a site
	ErrSoleOwner = errors.New("cannot remove the sole owner of a site")
	// ErrSiteNotFound reports a missing site row
	ErrSiteNotFound = errors.New("site not found")
)

// MembershipStore is the read surface the authorization guard depends on
type MembershipStore interface {
	// GetMembership returns the membership for (subject, site), or nil when
	// the subject has no row for that site
	GetMembership(ctx context.Context, subjectID string, siteID uuid.UUID) (*Membership, error)

	// IsSystemAdmin reports whether the subject is on the system-admin allow-list
	IsSystemAdmin(ctx context.Context, subjectID string) (bool, error)
}

// Store handles site and membership persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new site store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetSite retrieves a site by ID
func (s *Store) GetSite(ctx context.Context, id uuid.UUID) (*Site, error) {
	query := `
		SELECT id, name, slug, require_review, created_at, updated_at
		FROM sites
		WHERE id = $1
	`
	site := &Site{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&site.ID, &site.Name, &site.Slug, &site.RequireReview,
		&site.CreatedAt, &site.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return site, nil
}

// SiteRequireReview reports the site's review requirement and whether the
// site row exists at all
func (s *Store) SiteRequireReview(ctx context.Context, siteID uuid.UUID) (bool, bool, error) {
	var requireReview bool
	err := s.db.QueryRowContext(ctx,
		`SELECT require_review FROM sites WHERE id = $1`,
		siteID,
	).Scan(&requireReview)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to get site policy: %w", err)
	}
	return requireReview, true, nil
}

// GetMembership retrieves a membership for (subject, site).
// Returns (nil, nil) when no row exists: absence means no access, not an error.
func (s *Store) GetMembership(ctx context.Context, subjectID string, siteID uuid.UUID) (*Membership, error) {
	query := `
		SELECT id, site_id, subject_id, role, invited_by, created_at, updated_at
		FROM site_memberships
		WHERE subject_id = $1 AND site_id = $2
	`
	m := &Membership{}
	var invitedBy sql.NullString
	err := s.db.QueryRowContext(ctx, query, subjectID, siteID).Scan(
		&m.ID, &m.SiteID, &m.SubjectID, &m.Role, &invitedBy, &m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if invitedBy.Valid {
		m.InvitedBy = &invitedBy.String
	}
	return m, nil
}

// ListMembers retrieves all members of a site
func (s *Store) ListMembers(ctx context.Context, siteID uuid.UUID) ([]*Membership, error) {
	query := `
		SELECT id, site_id, subject_id, role, invited_by, created_at, updated_at
		FROM site_memberships
		WHERE site_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m := &Membership{}
		var invitedBy sql.NullString
		if err := rows.Scan(&m.ID, &m.SiteID, &m.SubjectID, &m.Role, &invitedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if invitedBy.Valid {
			m.InvitedBy = &invitedBy.String
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// AddMember adds a subject to a site with the given role
func (s *Store) AddMember(ctx context.Context, siteID uuid.UUID, subjectID string, role Role, invitedBy *string) (*Membership, error) {
	query := `
		INSERT INTO site_memberships (id, site_id, subject_id, role, invited_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (site_id, subject_id) DO NOTHING
		RETURNING id
	`
	now := time.Now()
	m := &Membership{
		ID:        uuid.New(),
		SiteID:    siteID,
		SubjectID: subjectID,
		Role:      role,
		InvitedBy: invitedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.QueryRowContext(ctx, query, m.ID, siteID, subjectID, role, invitedBy, now).Scan(&m.ID)
	if err == sql.ErrNoRows {
		return nil, ErrMemberExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return m, nil
}

// UpdateMemberRole changes a member's role. Demoting the sole Owner is refused.
func (s *Store) UpdateMemberRole(ctx context.Context, siteID uuid.UUID, subjectID string, role Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if role != RoleOwner {
		if err := s.guardSoleOwner(ctx, tx, siteID, subjectID); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE site_memberships SET role = $1, updated_at = NOW() WHERE site_id = $2 AND subject_id = $3`,
		role, siteID, subjectID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrMemberNotFound
	}

	return tx.Commit()
}

// RemoveMember removes a subject from a site. Removing the sole Owner is refused.
func (s *Store) RemoveMember(ctx context.Context, siteID uuid.UUID, subjectID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.guardSoleOwner(ctx, tx, siteID, subjectID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM site_memberships WHERE site_id = $1 AND subject_id = $2`,
		siteID, subjectID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrMemberNotFound
	}

	return tx.Commit()
}

// TransferOwnership atomically demotes the current owner to Admin and makes
// the target subject an Owner of the site
func (s *Store) TransferOwnership(ctx context.Context, siteID uuid.UUID, currentOwner, newOwner string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var role Role
	err = tx.QueryRowContext(ctx,
		`SELECT role FROM site_memberships WHERE site_id = $1 AND subject_id = $2 FOR UPDATE`,
		siteID, currentOwner,
	).Scan(&role)
	if err == sql.ErrNoRows {
		return ErrMemberNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock current owner: %w", err)
	}
	if role != RoleOwner {
		return fmt.Errorf("subject %s is not an owner of site %s", currentOwner, siteID)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE site_memberships SET role = $1, updated_at = NOW() WHERE site_id = $2 AND subject_id = $3`,
		RoleAdmin, siteID, currentOwner,
	)
	if err != nil {
		return fmt.Errorf("failed to demote current owner: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO site_memberships (id, site_id, subject_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (site_id, subject_id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()
	`, uuid.New(), siteID, newOwner, RoleOwner)
	if err != nil {
		return fmt.Errorf("failed to promote new owner: %w", err)
	}

	return tx.Commit()
}

// guardSoleOwner fails with ErrSoleOwner when subjectID is the only Owner of the site
func (s *Store) guardSoleOwner(ctx context.Context, tx *sql.Tx, siteID uuid.UUID, subjectID string) error {
	var role Role
	err := tx.QueryRowContext(ctx,
		`SELECT role FROM site_memberships WHERE site_id = $1 AND subject_id = $2 FOR UPDATE`,
		siteID, subjectID,
	).Scan(&role)
	if err == sql.ErrNoRows {
		return ErrMemberNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock membership: %w", err)
	}
	if role != RoleOwner {
		return nil
	}

	var owners int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM site_memberships WHERE site_id = $1 AND role = $2`,
		siteID, RoleOwner,
	).Scan(&owners)
	if err != nil {
		return fmt.Errorf("failed to count owners: %w", err)
	}
	if owners <= 1 {
		return ErrSoleOwner
	}
	return nil
}

// IsSystemAdmin reports whether the subject is on the system-admin allow-list
func (s *Store) IsSystemAdmin(ctx context.Context, subjectID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM system_admins WHERE subject_id = $1)`,
		subjectID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check system admin: %w", err)
	}
	return exists, nil
}

// SeedSystemAdmins idempotently inserts the configured allow-list at startup
func (s *Store) SeedSystemAdmins(ctx context.Context, subjects []string) error {
	for _, subject := range subjects {
		if subject == "" {
			continue
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO system_admins (subject_id, created_at)
			VALUES ($1, NOW())
			ON CONFLICT (subject_id) DO NOTHING
		`, subject)
		if err != nil {
			return fmt.Errorf("failed to seed system admin %q: %w", subject, err)
		}
	}
	return nil
}
