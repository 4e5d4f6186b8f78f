package apikeys

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestGetByHashNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM api_keys WHERE key_hash`).
		WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetByHash(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestUpdateStatusNeverRevivesRevokedKey(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	// The WHERE clause excludes revoked rows, so zero rows are affected
	mock.ExpectExec(`UPDATE api_keys`).
		WithArgs(StatusActive, id, StatusRevoked).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateStatus(context.Background(), id, StatusActive)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestExpireOverdue(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE api_keys`).
		WithArgs(StatusExpired, StatusActive).
		WillReturnResult(sqlmock.NewResult(0, 3))

	expired, err := store.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), expired)
}

func TestRecordUsage(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE api_keys`).
		WithArgs("203.0.113.9", id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.RecordUsage(context.Background(), id, "203.0.113.9"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
