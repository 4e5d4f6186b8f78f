package apikeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrKeyNotFound reports a missing key row
var ErrKeyNotFound = errors.New("api key not found")

// Store handles API key persistence
type Store interface {
	Create(ctx context.Context, key *Key) error
	GetByHash(ctx context.Context, hash string) (*Key, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Key, error)
	ListBySite(ctx context.Context, siteID uuid.UUID) ([]*Key, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	RecordUsage(ctx context.Context, id uuid.UUID, ip string) error
	ExpireOverdue(ctx context.Context) (int64, error)
}

// PostgresStore implements Store over PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new API key store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const keyColumns = `id, site_id, name, key_hash, key_prefix, permission, status,
	limit_per_second, limit_per_minute, limit_per_hour, limit_per_day,
	expires_at, total_requests, last_used_at, last_used_ip, created_by, created_at, updated_at`

// Create inserts a new key
func (s *PostgresStore) Create(ctx context.Context, key *Key) error {
	query := `
		INSERT INTO api_keys (` + keyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	now := time.Now()
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	key.CreatedAt = now
	key.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		key.ID, key.SiteID, key.Name, key.KeyHash, key.KeyPrefix, key.Permission, key.Status,
		nullableInt(key.Limits.PerSecond), nullableInt(key.Limits.PerMinute),
		nullableInt(key.Limits.PerHour), nullableInt(key.Limits.PerDay),
		key.ExpiresAt, key.TotalRequests, key.LastUsedAt, nullableString(key.LastUsedIP),
		nullableString(key.CreatedBy), key.CreatedAt, key.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// GetByHash looks a key up by its salted hash
func (s *PostgresStore) GetByHash(ctx context.Context, hash string) (*Key, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE key_hash = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, hash))
}

// GetByID retrieves a key by ID
func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Key, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// ListBySite retrieves all keys pinned to a site
func (s *PostgresStore) ListBySite(ctx context.Context, siteID uuid.UUID) ([]*Key, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE site_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*Key
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// UpdateStatus moves a key to a new status, enforcing the forward-only
// transition machine in SQL so concurrent updates cannot revive a revoked key
func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	query := `
		UPDATE api_keys
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status <> $3
	`
	result, err := s.db.ExecContext(ctx, query, status, id, StatusRevoked)
	if err != nil {
		return fmt.Errorf("failed to update api key status: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Delete hard-deletes a key
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// RecordUsage increments the usage counters and notes the caller's IP
func (s *PostgresStore) RecordUsage(ctx context.Context, id uuid.UUID, ip string) error {
	query := `
		UPDATE api_keys
		SET total_requests = total_requests + 1, last_used_at = NOW(), last_used_ip = $1
		WHERE id = $2
	`
	_, err := s.db.ExecContext(ctx, query, nullableString(ip), id)
	if err != nil {
		return fmt.Errorf("failed to record api key usage: %w", err)
	}
	return nil
}

// ExpireOverdue flips Active keys whose expiry has passed to Expired.
// Complements the lazy flip performed during validation.
func (s *PostgresStore) ExpireOverdue(ctx context.Context) (int64, error) {
	query := `
		UPDATE api_keys
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at < NOW()
	`
	result, err := s.db.ExecContext(ctx, query, StatusExpired, StatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to expire overdue api keys: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// scanOne scans a single key row, translating sql.ErrNoRows to ErrKeyNotFound
func (s *PostgresStore) scanOne(row *sql.Row) (*Key, error) {
	key, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// scanKey scans a key from a database row
func scanKey(scanner interface {
	Scan(dest ...interface{}) error
}) (*Key, error) {
	key := &Key{}
	var siteID uuid.NullUUID
	var perSecond, perMinute, perHour, perDay sql.NullInt64
	var expiresAt, lastUsedAt sql.NullTime
	var lastUsedIP, createdBy sql.NullString

	err := scanner.Scan(
		&key.ID, &siteID, &key.Name, &key.KeyHash, &key.KeyPrefix, &key.Permission, &key.Status,
		&perSecond, &perMinute, &perHour, &perDay,
		&expiresAt, &key.TotalRequests, &lastUsedAt, &lastUsedIP, &createdBy,
		&key.CreatedAt, &key.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if siteID.Valid {
		id := siteID.UUID
		key.SiteID = &id
	}
	key.Limits = RateLimits{
		PerSecond: int(perSecond.Int64),
		PerMinute: int(perMinute.Int64),
		PerHour:   int(perHour.Int64),
		PerDay:    int(perDay.Int64),
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		key.ExpiresAt = &t
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		key.LastUsedAt = &t
	}
	if lastUsedIP.Valid {
		key.LastUsedIP = lastUsedIP.String
	}
	if createdBy.Valid {
		key.CreatedBy = createdBy.String
	}

	return key, nil
}

func nullableInt(v int) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
