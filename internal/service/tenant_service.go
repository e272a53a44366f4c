package service

import (
	"context"

	"github.com/iliyamo/auth-service/internal/model"
)

// TenantService implements tenant management.
type TenantService struct {
	tenants TenantStore
}

func NewTenantService(tenants TenantStore) *TenantService {
	return &TenantService{tenants: tenants}
}

func (s *TenantService) Create(ctx context.Context, name, address string) (model.Tenant, error) {
	t := model.Tenant{Name: name, Address: address}
	if err := s.tenants.Create(ctx, &t); err != nil {
		return model.Tenant{}, storeError(err)
	}
	return t, nil
}

func (s *TenantService) Get(ctx context.Context, id uint64) (model.Tenant, error) {
	t, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return model.Tenant{}, storeError(err)
	}
	return t, nil
}

func (s *TenantService) List(ctx context.Context, f model.TenantFilter) ([]model.Tenant, int, error) {
	items, total, err := s.tenants.List(ctx, f)
	if err != nil {
		return nil, 0, storeError(err)
	}
	return items, total, nil
}

func (s *TenantService) Update(ctx context.Context, id uint64, p model.TenantPatch) (model.Tenant, error) {
	if err := s.tenants.Update(ctx, id, p); err != nil {
		return model.Tenant{}, storeError(err)
	}
	return s.Get(ctx, id)
}

// Delete fails with a conflict while users still reference the tenant.
func (s *TenantService) Delete(ctx context.Context, id uint64) error {
	return storeError(s.tenants.Delete(ctx, id))
}
