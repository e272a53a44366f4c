package service

import (
	"context"
	"crypto/rsa"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/auth-service/internal/apperr"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/utils"
)

// Payload is the identity carried by a token.
type Payload struct {
	UserID   uint64
	Role     model.Role
	TenantID *uint64
}

// PayloadFor returns the payload describing u.
func PayloadFor(u model.User) Payload {
	return Payload{UserID: u.ID, Role: u.Role, TenantID: u.TenantID}
}

// Session is a freshly issued token pair and the record backing the
// refresh token.
type Session struct {
	AccessToken  string
	RefreshToken string
	RecordID     uint64
}

// TokenConfig is the key material for a TokenService.
type TokenConfig struct {
	// PrivateKeyPEM signs access tokens.  Without it the service can
	// still verify (given Keyfunc) but every issuance fails.
	PrivateKeyPEM string
	RefreshSecret string
	KeyID         string
	// Keyfunc, when set, verifies access tokens against a remote key set
	// instead of the local public key.
	Keyfunc jwt.Keyfunc
	Now     func() time.Time
}

// TokenService issues and verifies access and refresh tokens.
type TokenService struct {
	key    *rsa.PrivateKey
	secret []byte
	kid    string
	verify jwt.Keyfunc
	tokens RefreshTokenStore
	now    func() time.Time
}

// NewTokenService parses the key material up front so a malformed key is
// reported at startup.
func NewTokenService(cfg TokenConfig, tokens RefreshTokenStore) (*TokenService, error) {
	s := &TokenService{
		secret: []byte(cfg.RefreshSecret),
		kid:    cfg.KeyID,
		verify: cfg.Keyfunc,
		tokens: tokens,
		now:    cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if cfg.PrivateKeyPEM != "" {
		key, err := utils.ParseRSAPrivateKey(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, apperr.Configuration("private key is malformed", err)
		}
		s.key = key
	}
	if s.verify == nil {
		if s.key == nil {
			return nil, apperr.Configuration("no key to verify access tokens", nil)
		}
		s.verify = utils.StaticKeyfunc(&s.key.PublicKey)
	}
	return s, nil
}

// GenerateAccessToken signs p as an RS256 token valid for one hour.
func (s *TokenService) GenerateAccessToken(p Payload) (string, error) {
	if s.key == nil {
		return "", apperr.Configuration("private key is not configured", nil)
	}
	c := utils.NewClaims(p.UserID, string(p.Role), p.TenantID, s.now(), utils.AccessTokenTTL)
	raw, err := utils.SignAccessToken(s.key, s.kid, c)
	if err != nil {
		return "", apperr.Configuration("sign access token", err)
	}
	return raw, nil
}

// GenerateRefreshToken signs p as an HS256 token valid for one year whose
// jti is recordID.
func (s *TokenService) GenerateRefreshToken(p Payload, recordID uint64) (string, error) {
	if len(s.secret) == 0 {
		return "", apperr.Configuration("refresh token secret is not configured", nil)
	}
	c := utils.NewClaims(p.UserID, string(p.Role), p.TenantID, s.now(), utils.RefreshTokenTTL)
	c.ID = strconv.FormatUint(recordID, 10)
	raw, err := utils.SignRefreshToken(s.secret, c)
	if err != nil {
		return "", apperr.Configuration("sign refresh token", err)
	}
	return raw, nil
}

// PersistRefreshToken stores a record for userID expiring one year from
// now.  Its id becomes the jti of the refresh token minted next.
func (s *TokenService) PersistRefreshToken(ctx context.Context, userID uint64) (model.RefreshToken, error) {
	rec, err := s.tokens.Create(ctx, userID, s.now().Add(utils.RefreshTokenTTL))
	if err != nil {
		return model.RefreshToken{}, storeError(err)
	}
	return rec, nil
}

// DeleteRefreshToken revokes the refresh token backed by id.  Deleting an
// unknown id succeeds.
func (s *TokenService) DeleteRefreshToken(ctx context.Context, id uint64) error {
	if err := s.tokens.Delete(ctx, id); err != nil {
		return apperr.Internal("delete refresh token", err)
	}
	return nil
}

// ConsumeRefreshToken deletes the record backing a refresh token and fails
// when another request already deleted it.  Each token is redeemed at most
// once.
func (s *TokenService) ConsumeRefreshToken(ctx context.Context, id uint64) error {
	ok, err := s.tokens.Consume(ctx, id)
	if err != nil {
		return apperr.Internal("consume refresh token", err)
	}
	if !ok {
		return apperr.Unauthenticated("refresh token revoked", nil)
	}
	return nil
}

// IssueSession persists a refresh record for p and mints both tokens.
func (s *TokenService) IssueSession(ctx context.Context, p Payload) (Session, error) {
	rec, err := s.PersistRefreshToken(ctx, p.UserID)
	if err != nil {
		return Session{}, err
	}
	access, err := s.GenerateAccessToken(p)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.GenerateRefreshToken(p, rec.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: access, RefreshToken: refresh, RecordID: rec.ID}, nil
}

// VerifyAccessToken checks signature, algorithm, issuer and expiry and
// decodes the payload.  Every failure is an authentication error.
func (s *TokenService) VerifyAccessToken(raw string) (Payload, error) {
	c, err := utils.ParseToken(raw, jwt.SigningMethodRS256.Alg(), s.verify, s.now)
	if err != nil {
		return Payload{}, apperr.Unauthenticated("invalid access token", err)
	}
	return decodePayload(c)
}

// VerifyRefreshToken checks the HS256 signature and then requires the
// record named by jti to exist, belong to the subject and be unexpired.
// It returns the payload and the record id.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, raw string) (Payload, uint64, error) {
	if len(s.secret) == 0 {
		return Payload{}, 0, apperr.Configuration("refresh token secret is not configured", nil)
	}
	// Signature, issuer and exp first; the store is only hit for tokens we
	// signed.
	c, err := utils.ParseToken(raw, jwt.SigningMethodHS256.Alg(), utils.HMACKeyfunc(s.secret), s.now)
	if err != nil {
		return Payload{}, 0, apperr.Unauthenticated("invalid refresh token", err)
	}
	p, err := decodePayload(c)
	if err != nil {
		return Payload{}, 0, err
	}
	id, err := c.RecordID()
	if err != nil {
		return Payload{}, 0, apperr.Unauthenticated("invalid refresh token", err)
	}
	// A missing record means the token was revoked or already rotated.
	rec, err := s.tokens.GetByID(ctx, id)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return Payload{}, 0, apperr.Unauthenticated("refresh token revoked", err)
	}
	if err != nil {
		return Payload{}, 0, apperr.Internal("load refresh token", err)
	}
	// The record must belong to the subject and must not have expired.
	if rec.UserID != p.UserID || !rec.ExpiresAt.After(s.now()) {
		return Payload{}, 0, apperr.Unauthenticated("refresh token revoked", nil)
	}
	return p, id, nil
}

// PublicJWKS returns the key set for the signing key.
func (s *TokenService) PublicJWKS() ([]byte, error) {
	if s.key == nil {
		return nil, apperr.Configuration("private key is not configured", nil)
	}
	body, err := utils.PublicJWKS(&s.key.PublicKey, s.kid)
	if err != nil {
		return nil, apperr.Internal("encode key set", err)
	}
	return body, nil
}

func decodePayload(c *utils.Claims) (Payload, error) {
	uid, err := c.UserID()
	if err != nil {
		return Payload{}, apperr.Unauthenticated("invalid token subject", err)
	}
	role, ok := model.ParseRole(c.Role)
	if !ok {
		return Payload{}, apperr.Unauthenticated("invalid token role", nil)
	}
	tid, err := c.TenantID()
	if err != nil {
		return Payload{}, apperr.Unauthenticated("invalid token tenant", err)
	}
	return Payload{UserID: uid, Role: role, TenantID: tid}, nil
}
