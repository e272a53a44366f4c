package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/auth-service/internal/database"
	"github.com/iliyamo/auth-service/internal/model"
)

// TenantRepo encapsulates all database queries related to tenants.
type TenantRepo struct {
	db *sql.DB
}

func NewTenantRepo(db *sql.DB) *TenantRepo {
	return &TenantRepo{db: db}
}

const tenantSelect = "SELECT id, name, address, created_at, updated_at FROM tenants"

func scanTenant(s rowScanner) (model.Tenant, error) {
	var t model.Tenant
	err := s.Scan(&t.ID, &t.Name, &t.Address, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Create inserts a new tenant and populates its ID and timestamps.
func (r *TenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := database.From(ctx, r.db).ExecContext(ctx,
		"INSERT INTO tenants (name, address, created_at, updated_at) VALUES (?, ?, ?, ?)",
		t.Name, t.Address, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.CreatedAt, t.UpdatedAt = now, now
	return nil
}

// GetByID fetches a tenant by its ID.  It returns ErrTenantNotFound if no
// row is found.
func (r *TenantRepo) GetByID(ctx context.Context, id uint64) (model.Tenant, error) {
	row := database.From(ctx, r.db).QueryRowContext(ctx, tenantSelect+" WHERE id = ?", id)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tenant{}, ErrTenantNotFound
	}
	return t, err
}

// List returns one page of tenants ordered by id and the total match count.
func (r *TenantRepo) List(ctx context.Context, f model.TenantFilter) ([]model.Tenant, int, error) {
	page := f.Page.Normalize()
	cond := ""
	var args []any
	if q := strings.TrimSpace(f.Q); q != "" {
		like := "%" + escapeLike(q) + "%"
		cond = " WHERE (name LIKE ? OR address LIKE ?)"
		args = append(args, like, like)
	}

	conn := database.From(ctx, r.db)
	var total int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tenants"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.QueryContext(ctx, tenantSelect+cond+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Tenant, 0, page.PerPage)
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update applies p to the tenant.  It returns ErrTenantNotFound when no
// row matches.
func (r *TenantRepo) Update(ctx context.Context, id uint64, p model.TenantPatch) error {
	var (
		set  []string
		args []any
	)
	if p.Name != nil {
		set = append(set, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Address != nil {
		set = append(set, "address = ?")
		args = append(args, *p.Address)
	}
	if len(set) == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC().Truncate(time.Second), id)

	res, err := database.From(ctx, r.db).ExecContext(ctx,
		"UPDATE tenants SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// Delete removes a tenant.  The users.tenant_id foreign key is declared
// ON DELETE NO ACTION, so deleting a tenant that still has users fails
// with ErrTenantInUse.
func (r *TenantRepo) Delete(ctx context.Context, id uint64) error {
	res, err := database.From(ctx, r.db).ExecContext(ctx, "DELETE FROM tenants WHERE id = ?", id)
	if err != nil {
		if isReferenced(err) {
			return ErrTenantInUse
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTenantNotFound
	}
	return nil
}
