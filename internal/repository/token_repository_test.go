package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepo_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTokenRepo(db)
	exp := time.Date(2027, 10, 19, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(7, exp, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(13, 1))

	rec, err := repo.Create(context.Background(), 7, exp)
	require.NoError(t, err)
	assert.Equal(t, uint64(13), rec.ID)
	assert.Equal(t, uint64(7), rec.UserID)
	assert.Equal(t, exp, rec.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTokenRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, user_id, expires_at, created_at FROM refresh_tokens`).WithArgs(13).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at", "created_at"}).
			AddRow(13, 7, now.Add(time.Hour), now))
	mock.ExpectQuery(`SELECT id, user_id, expires_at, created_at FROM refresh_tokens`).WithArgs(14).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at", "created_at"}))

	rec, err := repo.GetByID(context.Background(), 13)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), rec.UserID)

	_, err = repo.GetByID(context.Background(), 14)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_DeleteIsIdempotent(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE id=\?`).WithArgs(13).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), 13))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_DeleteExpired(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTokenRepo(db)
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at < \?`).WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestTokenRepo_ConsumeReportsRemoval(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE id=\?`).WithArgs(13).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE id=\?`).WithArgs(13).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Consume(context.Background(), 13)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Consume(context.Background(), 13)
	require.NoError(t, err)
	assert.False(t, ok, "second consume finds nothing to delete")
	assert.NoError(t, mock.ExpectationsWereMet())
}
