package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/apperr"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
)

// AuthService implements registration, login, token refresh and logout.
type AuthService struct {
	users  UserStore
	tx     Transactor
	hasher Hasher
	tokens *TokenService
	events EventPublisher
	log    logrus.FieldLogger
}

func NewAuthService(users UserStore, tx Transactor, hasher Hasher, tokens *TokenService,
	events EventPublisher, log logrus.FieldLogger) *AuthService {
	return &AuthService{users: users, tx: tx, hasher: hasher, tokens: tokens, events: events, log: log}
}

// RegisterInput is the self-service sign-up form.  Structural validation
// happens in the handler.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Register creates a customer and opens a session for it.  The user row
// and its refresh record are written in one transaction.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, Session, error) {
	u := model.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     model.NormalizeEmail(in.Email),
		Role:      model.RoleCustomer,
	}
	if err := ensureEmailFree(ctx, s.users, u.Email); err != nil {
		return model.User{}, Session{}, err
	}
	hash, err := hashPassword(s.hasher, in.Password)
	if err != nil {
		return model.User{}, Session{}, err
	}
	u.PasswordHash = hash

	var sess Session
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, &u); err != nil {
			return storeError(err)
		}
		sess, err = s.tokens.IssueSession(ctx, PayloadFor(u))
		return err
	})
	if err != nil {
		return model.User{}, Session{}, err
	}

	publish(ctx, s.events, s.log, queue.NewUserEvent(queue.UserRegistered, u.ID, u.Email, string(u.Role), nil))
	return u, sess, nil
}

// Login checks the credentials and opens a new session.  Unknown email and
// wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.User, Session, error) {
	u, err := s.users.GetByEmail(ctx, model.NormalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return model.User{}, Session{}, apperr.Unauthenticated("invalid email or password", nil)
	}
	if err != nil {
		return model.User{}, Session{}, storeError(err)
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return model.User{}, Session{}, apperr.Unauthenticated("invalid email or password", nil)
	}
	sess, err := s.tokens.IssueSession(ctx, PayloadFor(u))
	if err != nil {
		return model.User{}, Session{}, err
	}
	return u, sess, nil
}

// Refresh exchanges a valid refresh token for a new pair.  The old record
// is consumed inside the transaction, so of two requests carrying the same
// token only the first gets a session.  Role and tenant come from
// the stored user, so admin changes apply on the next refresh.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.User, Session, error) {
	p, recordID, err := s.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return model.User{}, Session{}, err
	}
	u, err := s.users.GetByID(ctx, p.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return model.User{}, Session{}, apperr.Unauthenticated("user no longer exists", nil)
	}
	if err != nil {
		return model.User{}, Session{}, storeError(err)
	}

	var sess Session
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tokens.ConsumeRefreshToken(ctx, recordID); err != nil {
			return err
		}
		sess, err = s.tokens.IssueSession(ctx, PayloadFor(u))
		return err
	})
	if err != nil {
		return model.User{}, Session{}, err
	}
	return u, sess, nil
}

// Logout revokes the refresh token.  The token must be valid and belong to
// userID, the caller authenticated by access token.
func (s *AuthService) Logout(ctx context.Context, userID uint64, refreshToken string) error {
	p, recordID, err := s.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return apperr.Unauthenticated("refresh token belongs to another user", nil)
	}
	return s.tokens.DeleteRefreshToken(ctx, recordID)
}

// Self returns the stored user behind an access token.
func (s *AuthService) Self(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, storeError(err)
	}
	return u, nil
}

func ensureEmailFree(ctx context.Context, users UserStore, email string) error {
	_, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return apperr.Conflict("email is already registered")
	case errors.Is(err, repository.ErrUserNotFound):
		return nil
	default:
		return storeError(err)
	}
}

func publish(ctx context.Context, events EventPublisher, log logrus.FieldLogger, ev queue.UserEvent) {
	if err := events.PublishUserEvent(ctx, ev); err != nil {
		log.WithError(err).WithField("event", ev.Type).Warn("publish user event failed")
	}
}
