// Package utils holds the low-level credential helpers: password hashing,
// JWT claims with signing and parsing, and RSA key material.
package utils

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the fixed iss claim of every token this service mints.
const Issuer = "auth-service"

// Token lifetimes.  The access token cookie and the refresh token cookie
// use the same values for their Max-Age.
const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 365 * 24 * time.Hour
)

// Claims is the payload of both token kinds.  Subject carries the user id
// as a decimal string.  Refresh tokens also set ID (jti) to the id of their
// persisted record.
type Claims struct {
	Role   string `json:"role"`             // admin, manager or customer
	Tenant string `json:"tenant,omitempty"` // decimal tenant id, empty for none
	jwt.RegisteredClaims
}

// NewClaims builds claims for userID issued at now and valid for ttl.
// A nil tenantID leaves the tenant claim empty.
func NewClaims(userID uint64, role string, tenantID *uint64, now time.Time, ttl time.Duration) Claims {
	// iss, sub, iat and exp are always set.  The caller assigns jti for
	// refresh tokens once the record id is known.
	c := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	// The tenant travels as a string like the subject so both decode the
	// same way.
	if tenantID != nil {
		c.Tenant = strconv.FormatUint(*tenantID, 10)
	}
	return c
}

// UserID decodes the subject claim.  A token whose subject is not a
// decimal id is rejected by the caller.
func (c Claims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// TenantID decodes the tenant claim; nil when the claim is absent.
func (c Claims) TenantID() (*uint64, error) {
	if c.Tenant == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(c.Tenant, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// RecordID decodes the jti claim of a refresh token.
func (c Claims) RecordID() (uint64, error) {
	return strconv.ParseUint(c.ID, 10, 64)
}

// SignAccessToken signs c with RS256 and sets the kid header so verifiers
// holding a key set can select the right key.
func SignAccessToken(key *rsa.PrivateKey, kid string, c Claims) (string, error) {
	if key == nil {
		return "", errors.New("no signing key")
	}
	// Build the token with the RS256 method and the typed claims.
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	// kid is optional for a single static key but required by key sets.
	if kid != "" {
		t.Header["kid"] = kid
	}
	// Sign with the private key and return the compact form.
	return t.SignedString(key)
}

// SignRefreshToken signs c with HS256 using secret.  Refresh tokens are
// only ever verified by this service, so no kid header is set.
func SignRefreshToken(secret []byte, c Claims) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty refresh secret")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

// ParseToken verifies raw with keyFunc, accepting only alg, our issuer and
// tokens that carry an expiry.  now supplies the clock used for exp/iat
// checks; nil means time.Now.
func ParseToken(raw, alg string, keyFunc jwt.Keyfunc, now func() time.Time) (*Claims, error) {
	// Pin the algorithm so a token cannot pick its own verification method,
	// and require iss, exp and a sane iat.
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{alg}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	// Tests pass a fixed clock to check expiry deterministically.
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	// Decode into our Claims type; the keyFunc picks the key.
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, keyFunc, opts...)
	if err != nil {
		return nil, err
	}
	// ParseWithClaims already fails on bad tokens; Valid is a second check.
	if !tok.Valid {
		return nil, fmt.Errorf("token invalid")
	}
	return claims, nil
}
