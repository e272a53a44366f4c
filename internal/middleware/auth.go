package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/apperr"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
)

// AccessTokenCookie is the cookie carrying the access token for browser
// clients.
const AccessTokenCookie = "accessToken"

// identityKey is the echo context key Authenticate stores the caller under.
const identityKey = "identity"

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID   uint64     // the subject of the access token
	Role     model.Role // role at the time the token was issued
	TenantID *uint64    // nil for admins and tenantless customers
}

// TokenVerifier verifies access tokens.  *service.TokenService implements
// it.
type TokenVerifier interface {
	VerifyAccessToken(raw string) (service.Payload, error)
}

// Authenticate verifies the request's access token and stores the caller's
// Identity in the context.  The token comes from the Authorization bearer
// header or, failing that, the accessToken cookie.  With required false a
// request without any token passes through anonymously; a token that is
// present but invalid is always rejected.
func Authenticate(v TokenVerifier, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Extract the token from the header or the cookie.
			raw := accessToken(c)
			if raw == "" {
				if required {
					return apperr.Unauthenticated("missing access token", nil)
				}
				return next(c)
			}
			// Verify signature, issuer and expiry.  The error is already an
			// authentication error and renders as 401.
			p, err := v.VerifyAccessToken(raw)
			if err != nil {
				return err
			}
			// Store the identity so Authorize and handlers can read it.
			c.Set(identityKey, Identity{UserID: p.UserID, Role: p.Role, TenantID: p.TenantID})
			return next(c)
		}
	}
}

// accessToken returns the raw token of the request or "".  A present
// Authorization header wins over the cookie even when it is malformed.
func accessToken(c echo.Context) string {
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		// The scheme is case-insensitive; anything but Bearer is ignored.
		if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
			return strings.TrimSpace(auth[7:])
		}
		return ""
	}
	if ck, err := c.Cookie(AccessTokenCookie); err == nil {
		return ck.Value
	}
	return ""
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}
