package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/apperr"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
)

// UserHandler serves the admin /users endpoints.
type UserHandler struct {
	Users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{Users: users}
}

type createUserReq struct {
	FirstName string  `json:"firstName" validate:"required,max=100"`
	LastName  string  `json:"lastName"  validate:"required,max=100"`
	Email     string  `json:"email"     validate:"required,email,max=255"`
	Password  string  `json:"password"  validate:"required,min=8,bcryptlen"`
	Role      string  `json:"role"      validate:"required,role"`
	TenantID  *uint64 `json:"tenantId"  validate:"omitnil,gt=0"`
}

func (r *createUserReq) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.Role = strings.TrimSpace(r.Role)
}

// nullableID tells an absent JSON field apart from an explicit null.
type nullableID struct {
	Set bool
	ID  *uint64
}

func (n *nullableID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(b, []byte("null")) {
		n.ID = nil
		return nil
	}
	var id uint64
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	n.ID = &id
	return nil
}

// updateUserReq holds the optional fields of PATCH /users/:id.  Absent
// fields are left unchanged; "tenantId": null detaches the user.
type updateUserReq struct {
	FirstName *string    `json:"firstName" validate:"omitnil,min=1,max=100"`
	LastName  *string    `json:"lastName"  validate:"omitnil,min=1,max=100"`
	Email     *string    `json:"email"     validate:"omitnil,email,max=255"`
	Role      *string    `json:"role"      validate:"omitnil,role"`
	TenantID  nullableID `json:"tenantId"`
}

func (r *updateUserReq) normalize() {
	trimPtr(r.FirstName)
	trimPtr(r.LastName)
	trimPtr(r.Email)
	trimPtr(r.Role)
}

type listUsersReq struct {
	CurrentPage int    `query:"currentPage" validate:"gte=0"`
	PerPage     int    `query:"perPage"     validate:"gte=0"`
	Q           string `query:"q"           validate:"max=100"`
	Role        string `query:"role"        validate:"omitempty,role"`
}

func actor(c echo.Context) uint64 {
	id, _ := middleware.IdentityFrom(c)
	return id.UserID
}

// Create lets an admin create a user with an explicit role and tenant.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bind(c, &req, "body"); err != nil {
		return err
	}
	role, _ := model.ParseRole(req.Role)

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.Create(ctx, actor(c), service.CreateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      role,
		TenantID:  req.TenantID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, idResp{ID: u.ID})
}

func (h *UserHandler) List(c echo.Context) error {
	var req listUsersReq
	if err := bind(c, &req, "query"); err != nil {
		return err
	}
	role, _ := model.ParseRole(req.Role)
	page := model.Page{Current: req.CurrentPage, PerPage: req.PerPage}

	ctx, cancel := requestContext(c)
	defer cancel()

	users, total, err := h.Users.List(ctx, model.UserFilter{Q: req.Q, Role: role, Page: page})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newPage(page, total, users))
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// Update changes profile fields, role or tenant and returns the user.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateUserReq
	if err := bind(c, &req, "body"); err != nil {
		return err
	}
	if req.TenantID.ID != nil && *req.TenantID.ID == 0 {
		return apperr.Validation(apperr.Violation{Field: "tenantId", Message: "tenantId must be greater than 0", Location: "body"})
	}
	patch := model.UserPatch{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		TenantID:    req.TenantID.ID,
		ClearTenant: req.TenantID.Set && req.TenantID.ID == nil,
	}
	if req.Role != nil {
		role, _ := model.ParseRole(*req.Role)
		patch.Role = &role
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.Update(ctx, actor(c), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Users.Delete(ctx, actor(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
