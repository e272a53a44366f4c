package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
)

// TenantHandler serves /tenants.
type TenantHandler struct {
	Tenants *service.TenantService
}

func NewTenantHandler(tenants *service.TenantService) *TenantHandler {
	return &TenantHandler{Tenants: tenants}
}

type createTenantReq struct {
	Name    string `json:"name"    validate:"required,max=100"`
	Address string `json:"address" validate:"required,max=255"`
}

func (r *createTenantReq) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Address = strings.TrimSpace(r.Address)
}

type updateTenantReq struct {
	Name    *string `json:"name"    validate:"omitnil,min=1,max=100"`
	Address *string `json:"address" validate:"omitnil,min=1,max=255"`
}

func (r *updateTenantReq) normalize() {
	trimPtr(r.Name)
	trimPtr(r.Address)
}

type listTenantsReq struct {
	CurrentPage int    `query:"currentPage" validate:"gte=0"`
	PerPage     int    `query:"perPage"     validate:"gte=0"`
	Q           string `query:"q"           validate:"max=100"`
}

func (h *TenantHandler) Create(c echo.Context) error {
	var req createTenantReq
	if err := bind(c, &req, "body"); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	t, err := h.Tenants.Create(ctx, req.Name, req.Address)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, idResp{ID: t.ID})
}

func (h *TenantHandler) List(c echo.Context) error {
	var req listTenantsReq
	if err := bind(c, &req, "query"); err != nil {
		return err
	}
	page := model.Page{Current: req.CurrentPage, PerPage: req.PerPage}

	ctx, cancel := requestContext(c)
	defer cancel()

	items, total, err := h.Tenants.List(ctx, model.TenantFilter{Q: req.Q, Page: page})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newPage(page, total, items))
}

func (h *TenantHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	t, err := h.Tenants.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TenantHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateTenantReq
	if err := bind(c, &req, "body"); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	t, err := h.Tenants.Update(ctx, id, model.TenantPatch{Name: req.Name, Address: req.Address})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// Delete fails with 400 while users still belong to the tenant.
func (h *TenantHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Tenants.Delete(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
