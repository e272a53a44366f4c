package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/auth-service/internal/apperr"
	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
)

// fakeVerifier accepts the tokens in its map.
type fakeVerifier map[string]service.Payload

func (f fakeVerifier) VerifyAccessToken(raw string) (service.Payload, error) {
	if p, ok := f[raw]; ok {
		return p, nil
	}
	return service.Payload{}, apperr.Unauthenticated("invalid access token", nil)
}

var verifier = fakeVerifier{
	"admin-token":    {UserID: 1, Role: model.RoleAdmin},
	"customer-token": {UserID: 2, Role: model.RoleCustomer},
	"manager-token":  {UserID: 3, Role: model.RoleManager, TenantID: ptr(uint64(7))},
}

func ptr[T any](v T) *T { return &v }

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func captureIdentity(got *Identity) echo.HandlerFunc {
	return func(c echo.Context) error {
		*got, _ = IdentityFrom(c)
		return c.NoContent(http.StatusOK)
	}
}

func TestAuthenticate_HeaderWinsOverCookie(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/auth/self")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer admin-token")
	c.Request().AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "customer-token"})

	var got Identity
	require.NoError(t, Authenticate(verifier, true)(captureIdentity(&got))(c))
	assert.Equal(t, uint64(1), got.UserID)
	assert.Equal(t, model.RoleAdmin, got.Role)
}

func TestAuthenticate_CookieFallback(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/auth/self")
	c.Request().AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "manager-token"})

	var got Identity
	require.NoError(t, Authenticate(verifier, true)(captureIdentity(&got))(c))
	assert.Equal(t, model.RoleManager, got.Role)
	require.NotNil(t, got.TenantID)
	assert.Equal(t, uint64(7), *got.TenantID)
}

func TestAuthenticate_MissingAndInvalid(t *testing.T) {
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	c, _ := newContext(http.MethodGet, "/")
	assert.ErrorIs(t, Authenticate(verifier, true)(next)(c), apperr.ErrAuthentication)

	c, rec := newContext(http.MethodGet, "/")
	require.NoError(t, Authenticate(verifier, false)(next)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	_, ok := IdentityFrom(c)
	assert.False(t, ok)

	c, _ = newContext(http.MethodGet, "/")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer forged")
	assert.ErrorIs(t, Authenticate(verifier, false)(next)(c), apperr.ErrAuthentication)
}

func TestAuthorize_RoleTable(t *testing.T) {
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	chain := func(op Operation) echo.HandlerFunc {
		return Authenticate(verifier, true)(Authorize(Policies, op)(next))
	}

	c, _ := newContext(http.MethodGet, "/users")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer customer-token")
	assert.ErrorIs(t, chain(OpUserList)(c), apperr.ErrAuthorization)

	c, rec := newContext(http.MethodGet, "/users")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer admin-token")
	require.NoError(t, chain(OpUserList)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, _ = newContext(http.MethodGet, "/auth/self")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer customer-token")
	assert.NoError(t, chain(OpSelf)(c))
}

func TestAuthorize_ManagerScopedToOwnTenant(t *testing.T) {
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	h := Authenticate(verifier, true)(Authorize(Policies, OpTenantUpdate)(next))

	for _, tc := range []struct {
		token, tenant string
		allowed       bool
	}{
		{"manager-token", "7", true},
		{"manager-token", "8", false},
		{"manager-token", "abc", false},
		{"admin-token", "8", true},
		{"customer-token", "7", false},
	} {
		c, _ := newContext(http.MethodPatch, "/tenants/"+tc.tenant)
		c.SetParamNames("id")
		c.SetParamValues(tc.tenant)
		c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+tc.token)
		err := h(c)
		if tc.allowed {
			assert.NoError(t, err, "%s on tenant %s", tc.token, tc.tenant)
		} else {
			assert.ErrorIs(t, err, apperr.ErrAuthorization, "%s on tenant %s", tc.token, tc.tenant)
		}
	}
}

func TestAuthorize_UnknownOperationPanics(t *testing.T) {
	assert.Panics(t, func() { Authorize(Policies, Operation("nope")) })
}

func TestRequestID_ReusesOrGenerates(t *testing.T) {
	next := func(c echo.Context) error { return c.String(http.StatusOK, GetRequestID(c)) }

	c, rec := newContext(http.MethodGet, "/")
	c.Request().Header.Set(HeaderRequestID, "abc")
	require.NoError(t, RequestID()(next)(c))
	assert.Equal(t, "abc", rec.Body.String())
	assert.Equal(t, "abc", rec.Header().Get(HeaderRequestID))

	c, rec = newContext(http.MethodGet, "/")
	require.NoError(t, RequestID()(next)(c))
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)
}

func TestRequestLogger_LogsRenderedStatus(t *testing.T) {
	log, hook := test.NewNullLogger()
	e := echo.New()
	e.Use(RequestID(), RequestLogger(log))
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "tea") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
}

func newCache(t *testing.T) (*miniredis.Miniredis, *redis.Client, config.CacheConfig) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.CacheConfig{
		Enabled: true, Methods: []string{"GET"}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20,
	}
	return mr, rdb, cfg
}

func TestResponseCache_MissThenHit(t *testing.T) {
	mr, rdb, cfg := newCache(t)
	log, _ := test.NewNullLogger()

	calls := 0
	e := echo.New()
	e.GET("/tenants/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	}, ResponseCache(cfg, rdb, log))

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	first := get("/tenants/1")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get("/tenants/1")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get(echo.HeaderContentType), second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	other := get("/tenants/2")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
	assert.Len(t, mr.Keys(), 2)
}

func TestResponseCache_SkipsErrorsAndLargeBodies(t *testing.T) {
	mr, rdb, cfg := newCache(t)
	cfg.MaxBodyBytes = 4
	log, _ := test.NewNullLogger()

	e := echo.New()
	e.GET("/missing", func(c echo.Context) error { return c.String(http.StatusNotFound, "no") }, ResponseCache(cfg, rdb, log))
	e.GET("/big", func(c echo.Context) error { return c.String(http.StatusOK, "0123456789") }, ResponseCache(cfg, rdb, log))

	for _, p := range []string{"/missing", "/big"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
	}
	assert.Empty(t, mr.Keys())
}

func TestPurgeCache_DropsEntriesAfterWrite(t *testing.T) {
	mr, rdb, cfg := newCache(t)
	log, _ := test.NewNullLogger()
	require.NoError(t, mr.Set("cache:abc", "x"))
	require.NoError(t, mr.Set("other:abc", "y"))

	e := echo.New()
	e.PATCH("/tenants/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, PurgeCache(cfg, rdb, log))
	e.DELETE("/tenants/:id", func(c echo.Context) error { return c.NoContent(http.StatusBadRequest) }, PurgeCache(cfg, rdb, log))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/tenants/1", nil))
	assert.True(t, mr.Exists("cache:abc"), "failed writes keep the cache")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/tenants/1", bytes.NewBufferString("{}")))
	assert.False(t, mr.Exists("cache:abc"))
	assert.True(t, mr.Exists("other:abc"))
}

func TestResponseCache_DisabledIsPassThrough(t *testing.T) {
	_, rdb, cfg := newCache(t)
	cfg.Enabled = false
	log, _ := test.NewNullLogger()

	c, rec := newContext(http.MethodGet, "/")
	require.NoError(t, ResponseCache(cfg, rdb, log)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c))
	assert.Empty(t, rec.Header().Get("X-Cache"))
}
