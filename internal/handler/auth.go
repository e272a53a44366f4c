package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/apperr"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/service"
)

// AuthHandler bundles dependencies for the /auth endpoints.
type AuthHandler struct {
	Auth    *service.AuthService
	Cookies Cookies
	Log     logrus.FieldLogger
}

func NewAuthHandler(auth *service.AuthService, cookies Cookies, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{Auth: auth, Cookies: cookies, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName"  validate:"required,max=100"`
	Email     string `json:"email"     validate:"required,email,max=255"`
	Password  string `json:"password"  validate:"required,min=8,bcryptlen"`
}

func (r *registerReq) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
}

type loginReq struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *loginReq) normalize() { r.Email = strings.TrimSpace(r.Email) }

type idResp struct {
	ID uint64 `json:"id"`
}

// Register creates a customer, sets the session cookies and returns the
// new user's id.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req, "body"); err != nil {
		return err
	}
	h.Log.WithFields(logrus.Fields{"email": req.Email, "password": "******"}).Debug("register request")

	ctx, cancel := requestContext(c)
	defer cancel()

	u, sess, err := h.Auth.Register(ctx, service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	h.Log.WithField("user_id", u.ID).Info("user registered")

	h.Cookies.SetSession(c, sess)
	return c.JSON(http.StatusCreated, idResp{ID: u.ID})
}

// Login verifies the credentials and sets fresh session cookies.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req, "body"); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, sess, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	h.Cookies.SetSession(c, sess)
	return c.JSON(http.StatusOK, idResp{ID: u.ID})
}

// Refresh rotates the refresh token from the refreshToken cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ck, err := c.Cookie(RefreshTokenCookie)
	if err != nil || ck.Value == "" {
		return apperr.Unauthenticated("missing refresh token", nil)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, sess, err := h.Auth.Refresh(ctx, ck.Value)
	if err != nil {
		return err
	}
	h.Cookies.SetSession(c, sess)
	return c.JSON(http.StatusOK, idResp{ID: u.ID})
}

// Logout revokes the refresh token and clears both cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return apperr.Unauthenticated("missing access token", nil)
	}
	ck, err := c.Cookie(RefreshTokenCookie)
	if err != nil || ck.Value == "" {
		return apperr.Unauthenticated("missing refresh token", nil)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, id.UserID, ck.Value); err != nil {
		return err
	}
	h.Cookies.ClearSession(c)
	return c.JSON(http.StatusOK, echo.Map{})
}

// Self returns the stored user behind the access token.
func (h *AuthHandler) Self(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return apperr.Unauthenticated("missing access token", nil)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Auth.Self(ctx, id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
