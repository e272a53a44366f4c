// Package service implements the authentication flows and the admin user
// and tenant operations on top of the repositories.  Services return
// *apperr.Error values; handlers pass them through unchanged.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/auth-service/internal/apperr"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/utils"
)

// UserStore is implemented by repository.UserRepo and
// repository.MemoryUserRepo.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	List(ctx context.Context, f model.UserFilter) ([]model.User, int, error)
	Update(ctx context.Context, id uint64, p model.UserPatch) error
	Delete(ctx context.Context, id uint64) error
}

type TenantStore interface {
	Create(ctx context.Context, t *model.Tenant) error
	GetByID(ctx context.Context, id uint64) (model.Tenant, error)
	List(ctx context.Context, f model.TenantFilter) ([]model.Tenant, int, error)
	Update(ctx context.Context, id uint64, p model.TenantPatch) error
	Delete(ctx context.Context, id uint64) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, userID uint64, exp time.Time) (model.RefreshToken, error)
	GetByID(ctx context.Context, id uint64) (model.RefreshToken, error)
	Delete(ctx context.Context, id uint64) error
	// Consume deletes the record and reports whether this call removed it.
	Consume(ctx context.Context, id uint64) (bool, error)
}

// Transactor runs fn atomically.  Stores called with the ctx passed to fn
// take part in the same transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Hasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// EventPublisher delivers user lifecycle events.  Delivery is best effort.
type EventPublisher interface {
	PublishUserEvent(ctx context.Context, ev queue.UserEvent) error
}

// hashPassword hashes plain, reporting an over-long password as a
// validation error rather than a server fault.
func hashPassword(h Hasher, plain string) (string, error) {
	hash, err := h.Hash(plain)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return "", apperr.Validation(apperr.Violation{
			Field:    "password",
			Message:  fmt.Sprintf("password must be at most %d bytes", utils.MaxPasswordBytes),
			Location: "body",
		})
	}
	if err != nil {
		return "", apperr.Internal("hash password", err)
	}
	return hash, nil
}

// storeError translates repository sentinels into application errors.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, repository.ErrTenantNotFound):
		return apperr.NotFound("tenant not found")
	case errors.Is(err, repository.ErrEmailExists):
		return apperr.Conflict("email is already registered")
	case errors.Is(err, repository.ErrTenantInUse):
		return apperr.Conflict("tenant still has users")
	case errors.Is(err, repository.ErrTokenNotFound):
		return apperr.Unauthenticated("refresh token revoked", err)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal("store failure", err)
}
