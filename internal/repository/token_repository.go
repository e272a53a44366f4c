package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/auth-service/internal/database"
	"github.com/iliyamo/auth-service/internal/model"
)

// TokenRepo persists refresh token records in the refresh_tokens table.
// A record's existence is what keeps the matching refresh token valid:
// the token's jti is the record id, and deleting the row revokes it.
// Every method runs inside the ambient transaction when ctx carries one.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Create inserts a record for userID expiring at exp and returns it.
func (r *TokenRepo) Create(ctx context.Context, userID uint64, exp time.Time) (model.RefreshToken, error) {
	// DATETIME columns hold whole seconds; truncate so the returned record
	// equals what a later read returns.
	now := time.Now().UTC().Truncate(time.Second)
	exp = exp.UTC().Truncate(time.Second)
	res, err := database.From(ctx, r.DB).ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, expires_at, created_at) VALUES (?,?,?)",
		userID, exp, now)
	if err != nil {
		// The foreign key to users fails when the user was deleted meanwhile.
		if isMissingParent(err) {
			return model.RefreshToken{}, ErrUserNotFound
		}
		return model.RefreshToken{}, err
	}
	// The auto-increment id becomes the jti of the signed token.
	id, err := res.LastInsertId()
	if err != nil {
		return model.RefreshToken{}, err
	}
	return model.RefreshToken{ID: uint64(id), UserID: userID, ExpiresAt: exp, CreatedAt: now}, nil
}

// GetByID returns the record with the given id or ErrTokenNotFound.
func (r *TokenRepo) GetByID(ctx context.Context, id uint64) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := database.From(ctx, r.DB).QueryRowContext(ctx,
		"SELECT id, user_id, expires_at, created_at FROM refresh_tokens WHERE id=? LIMIT 1", id).
		Scan(&t.ID, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, ErrTokenNotFound
	}
	return t, err
}

// Delete removes the record.  Deleting a missing id is not an error.
func (r *TokenRepo) Delete(ctx context.Context, id uint64) error {
	_, err := database.From(ctx, r.DB).ExecContext(ctx, "DELETE FROM refresh_tokens WHERE id=?", id)
	return err
}

// Consume deletes the record and reports whether this call removed it.
// Of two callers racing on the same id only one sees true.
func (r *TokenRepo) Consume(ctx context.Context, id uint64) (bool, error) {
	// The row lock taken by DELETE serializes concurrent consumers.
	res, err := database.From(ctx, r.DB).ExecContext(ctx, "DELETE FROM refresh_tokens WHERE id=?", id)
	if err != nil {
		return false, err
	}
	// Zero rows means another caller consumed or revoked it first.
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpired removes records that expired before now and reports how
// many were removed.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := database.From(ctx, r.DB).ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
