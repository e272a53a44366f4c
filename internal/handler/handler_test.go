package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/auth-service/internal/apperr"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
)

func newEcho(log logrus.FieldLogger) *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(log)
	return e
}

func serve(e *echo.Echo, h echo.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestErrorHandler_Kinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
		msg    string
	}{
		{"conflict", apperr.Conflict("email is already registered"), http.StatusBadRequest, "ConflictError", "email is already registered"},
		{"unauthenticated", apperr.Unauthenticated("missing access token", nil), http.StatusUnauthorized, "AuthenticationError", "missing access token"},
		{"forbidden", apperr.Forbidden("insufficient role"), http.StatusForbidden, "AuthorizationError", "insufficient role"},
		{"not found", apperr.NotFound("user not found"), http.StatusNotFound, "NotFoundError", "user not found"},
		{"internal hides cause", apperr.Internal("store failure", errors.New("dial tcp: refused")), http.StatusInternalServerError, "InternalError", "internal server error"},
		{"configuration", apperr.Configuration("no key", nil), http.StatusInternalServerError, "ConfigurationError", "internal server error"},
		{"echo 404", echo.ErrNotFound, http.StatusNotFound, "NotFoundError", "Not Found"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "InternalError", "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			rec := serve(newEcho(log), func(echo.Context) error { return tc.err })

			require.Equal(t, tc.status, rec.Code)
			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body.Errors, 1)
			assert.Equal(t, tc.typ, body.Errors[0].Type)
			assert.Equal(t, tc.msg, body.Errors[0].Msg)
			if tc.status >= 500 {
				require.NotNil(t, hook.LastEntry())
				assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
			} else {
				assert.Empty(t, hook.AllEntries())
			}
		})
	}
}

func TestErrorHandler_ValidationListsViolations(t *testing.T) {
	log, _ := test.NewNullLogger()
	err := apperr.Validation(
		apperr.Violation{Field: "email", Message: "email is required", Location: "body"},
		apperr.Violation{Field: "password", Message: "password is required", Location: "body"},
	)
	rec := serve(newEcho(log), func(echo.Context) error { return err })

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"errors":[
		{"type":"ValidationError","msg":"email is required","path":"email","location":"body"},
		{"type":"ValidationError","msg":"password is required","path":"password","location":"body"}
	]}`, rec.Body.String())
}

type sample struct {
	Email string  `json:"email" validate:"required,email"`
	Role  string  `json:"role"  validate:"required,role"`
	Name  *string `json:"name"  validate:"omitnil,min=1,max=3"`
}

func (s *sample) normalize() {
	s.Email = strings.TrimSpace(s.Email)
	trimPtr(s.Name)
}

func TestBind_NormalizesThenValidates(t *testing.T) {
	e := newEcho(logrus.New())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"  a@b.com ","role":"ADMIN","name":" ab "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	var s sample
	require.NoError(t, bind(c, &s, "body"))
	assert.Equal(t, "a@b.com", s.Email)
	require.NotNil(t, s.Name)
	assert.Equal(t, "ab", *s.Name)
}

func TestBind_ReportsEveryViolation(t *testing.T) {
	e := newEcho(logrus.New())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","role":"owner","name":"toolong"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	var s sample
	err := bind(c, &s, "body")
	require.ErrorIs(t, err, apperr.ErrValidation)

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	got := map[string]string{}
	for _, v := range ae.Violations {
		assert.Equal(t, "body", v.Location)
		got[v.Field] = v.Message
	}
	assert.Equal(t, map[string]string{
		"email": "email must be a valid email",
		"role":  "role must be one of admin, manager, customer",
		"name":  "name must be at most 3 characters",
	}, got)
}

func TestPathID(t *testing.T) {
	e := echo.New()
	for _, tc := range []struct {
		raw string
		ok  bool
	}{{"42", true}, {"0", false}, {"-1", false}, {"x", false}} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(tc.raw)
		id, err := pathID(c)
		if tc.ok {
			require.NoError(t, err)
			assert.Equal(t, uint64(42), id)
		} else {
			assert.ErrorIs(t, err, apperr.ErrValidation, tc.raw)
		}
	}
}

func TestCookies_SetAndClear(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	ck := Cookies{Domain: "example.com", Secure: true}
	ck.SetSession(c, service.Session{AccessToken: "acc", RefreshToken: "ref"})
	ck.ClearSession(c)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 4)

	set := map[string]*http.Cookie{cookies[0].Name: cookies[0], cookies[1].Name: cookies[1]}
	assert.Equal(t, "acc", set[middleware.AccessTokenCookie].Value)
	assert.Equal(t, 3600, set[middleware.AccessTokenCookie].MaxAge)
	assert.Equal(t, "ref", set[RefreshTokenCookie].Value)
	assert.Equal(t, 365*24*3600, set[RefreshTokenCookie].MaxAge)
	for _, c := range cookies {
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.Equal(t, "/", c.Path)
	}
	for _, c := range cookies[2:] {
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(ctx context.Context) error { return p.err }

func TestReady(t *testing.T) {
	log, _ := test.NewNullLogger()
	e := newEcho(log)

	assert.Equal(t, http.StatusOK, serve(e, Ready(nil)).Code)
	assert.Equal(t, http.StatusOK, serve(e, Ready(stubPinger{})).Code)
	assert.Equal(t, http.StatusInternalServerError, serve(e, Ready(stubPinger{err: errors.New("down")})).Code)
}

func TestNewPage(t *testing.T) {
	p := newPage[int](model.Page{}, 0, nil)
	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, model.DefaultPerPage, p.PerPage)
	assert.NotNil(t, p.Data)

	bs, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"currentPage":1,"perPage":6,"total":0,"data":[]}`, string(bs))
}
