package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/apperr"
)

// Health is the liveness check.  It returns "ok" as long as the process
// serves requests.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ready is the readiness check.  With a nil pinger (in-memory store) the
// service is always ready.
func Ready(p Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if p != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := p.PingContext(ctx); err != nil {
				return apperr.Internal("database unreachable", err)
			}
		}
		return c.String(http.StatusOK, "ready")
	}
}

// KeySet publishes the access token verification keys.
type KeySet interface {
	PublicJWKS() ([]byte, error)
}

// JWKS serves the JSON Web Key Set used to verify access tokens.
func JWKS(ks KeySet) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := ks.PublicJWKS()
		if err != nil {
			return err
		}
		c.Response().Header().Set("Cache-Control", "public, max-age=300")
		return c.JSONBlob(http.StatusOK, body)
	}
}
