// Package router wires handlers, authentication and the policy table onto
// an echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/middleware"
)

// Deps holds everything the routes need.  Redis may be nil, in which case
// tenant reads are not cached.  DB may be nil for the in-memory store.
type Deps struct {
	Log      logrus.FieldLogger
	Verifier middleware.TokenVerifier
	Keys     handler.KeySet
	DB       handler.Pinger
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Tenants  *handler.TenantHandler
	Cache    config.CacheConfig
	Redis    *redis.Client
	Origins  []string
}

// New returns an echo instance with the error handler, validator and the
// common middleware installed.
func New(log logrus.FieldLogger, origins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	if len(origins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     origins,
			AllowCredentials: true,
			AllowMethods:     []string{echo.GET, echo.POST, echo.PATCH, echo.DELETE, echo.OPTIONS},
		}))
	}
	return e
}

// Setup builds the echo instance and registers every route.
func Setup(d Deps) *echo.Echo {
	e := New(d.Log, d.Origins)
	RegisterRoutes(e, d.Keys, d.DB)
	RegisterAuth(e, d.Auth, d.Verifier)
	RegisterUsers(e, d.Users, d.Verifier)
	RegisterTenants(e, d.Tenants, d.Verifier, d.Cache, d.Redis, d.Log)
	return e
}

// RegisterRoutes registers the health checks and the public key set.
func RegisterRoutes(e *echo.Echo, keys handler.KeySet, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/.well-known/jwks.json", handler.JWKS(keys))
}

// RegisterAuth registers /auth.  Register, login and refresh need no
// access token; self and logout do.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, v middleware.TokenVerifier) {
	g := e.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	authn := middleware.Authenticate(v, true)
	g.GET("/self", a.Self, authn, middleware.Authorize(middleware.Policies, middleware.OpSelf))
	g.POST("/logout", a.Logout, authn, middleware.Authorize(middleware.Policies, middleware.OpLogout))
}

// RegisterUsers registers the admin user management routes.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, v middleware.TokenVerifier) {
	g := e.Group("/users", middleware.Authenticate(v, true))
	g.POST("", u.Create, gate(middleware.OpUserCreate))
	g.GET("", u.List, gate(middleware.OpUserList))
	g.GET("/:id", u.Get, gate(middleware.OpUserGet))
	g.PATCH("/:id", u.Update, gate(middleware.OpUserUpdate))
	g.DELETE("/:id", u.Delete, gate(middleware.OpUserDelete))
}

// RegisterTenants registers /tenants.  Reads are public and served from
// the Redis cache; writes purge it.
func RegisterTenants(e *echo.Echo, t *handler.TenantHandler, v middleware.TokenVerifier,
	cache config.CacheConfig, rdb *redis.Client, log logrus.FieldLogger) {
	g := e.Group("/tenants")

	cached := middleware.ResponseCache(cache, rdb, log)
	g.GET("", t.List, cached)
	g.GET("/:id", t.Get, cached)

	authn := middleware.Authenticate(v, true)
	purge := middleware.PurgeCache(cache, rdb, log)
	g.POST("", t.Create, authn, gate(middleware.OpTenantCreate), purge)
	g.PATCH("/:id", t.Update, authn, gate(middleware.OpTenantUpdate), purge)
	g.DELETE("/:id", t.Delete, authn, gate(middleware.OpTenantDelete), purge)
}

func gate(op middleware.Operation) echo.MiddlewareFunc {
	return middleware.Authorize(middleware.Policies, op)
}
