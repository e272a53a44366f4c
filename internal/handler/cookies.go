package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/service"
	"github.com/iliyamo/auth-service/internal/utils"
)

const RefreshTokenCookie = "refreshToken"

// Cookies writes the session cookies.  Both are HttpOnly and
// SameSite=Strict, scoped to Domain.
type Cookies struct {
	Domain string
	Secure bool
}

func (ck Cookies) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   ck.Domain,
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   ck.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// SetSession sets accessToken (1h) and refreshToken (1y).
func (ck Cookies) SetSession(c echo.Context, s service.Session) {
	c.SetCookie(ck.cookie(middleware.AccessTokenCookie, s.AccessToken, utils.AccessTokenTTL))
	c.SetCookie(ck.cookie(RefreshTokenCookie, s.RefreshToken, utils.RefreshTokenTTL))
}

// ClearSession expires both cookies.
func (ck Cookies) ClearSession(c echo.Context) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		cookie := ck.cookie(name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		c.SetCookie(cookie)
	}
}
