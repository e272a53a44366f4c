package utils

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ParseRSAPrivateKey decodes a PEM encoded RSA key (PKCS#1 or PKCS#8).
// Keys passed through environment variables often carry literal "\n"
// sequences instead of newlines; those are restored first.
func ParseRSAPrivateKey(pemText string) (*rsa.PrivateKey, error) {
	pemText = strings.TrimSpace(strings.ReplaceAll(pemText, `\n`, "\n"))
	if pemText == "" {
		return nil, errors.New("private key is empty")
	}
	return jwt.ParseRSAPrivateKeyFromPEM([]byte(pemText))
}

// StaticKeyfunc verifies every token with pub.
func StaticKeyfunc(pub *rsa.PublicKey) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) { return pub, nil }
}

// HMACKeyfunc verifies every token with secret.
func HMACKeyfunc(secret []byte) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) { return secret, nil }
}

// RemoteKeyfunc fetches the key set published at uri and keeps it fresh in
// the background until ctx is cancelled.  Tokens must carry a kid header.
func RemoteKeyfunc(ctx context.Context, uri string) (jwt.Keyfunc, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{uri})
	if err != nil {
		return nil, err
	}
	return k.Keyfunc, nil
}

// PublicJWKS renders pub as a single-key set usable by RemoteKeyfunc.  The
// key is published for signature verification only (use "sig", alg RS256)
// under kid, which must match the kid header of issued access tokens.
func PublicJWKS(pub *rsa.PublicKey, kid string) ([]byte, error) {
	if pub == nil {
		return nil, errors.New("no public key")
	}
	jwk, err := jwkset.NewJWKFromKey(pub, jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{
			KID: kid,
			ALG: jwkset.AlgRS256,
			USE: jwkset.UseSig,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build jwk: %w", err)
	}
	ctx := context.Background()
	set := jwkset.NewMemoryStorage()
	if err := set.KeyWrite(ctx, jwk); err != nil {
		return nil, fmt.Errorf("store jwk: %w", err)
	}
	return set.JSONPublic(ctx)
}
