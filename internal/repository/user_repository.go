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

// UserRepo persists users in the `users` table.  Reads join the tenant so
// a user comes back with its tenant attached.  Email uniqueness is enforced
// by a unique index and reported as ErrEmailExists.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userSelect = `SELECT u.id, u.first_name, u.last_name, u.email, u.password_hash, u.role, u.tenant_id,
       t.name, t.address, t.created_at, t.updated_at, u.created_at, u.updated_at
  FROM users u
  LEFT JOIN tenants t ON t.id = u.tenant_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (model.User, error) {
	var (
		u                  model.User
		role               string
		tenantID           sql.NullInt64
		tName, tAddr       sql.NullString
		tCreated, tUpdated sql.NullTime
	)
	err := s.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &role, &tenantID,
		&tName, &tAddr, &tCreated, &tUpdated, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	if tenantID.Valid {
		id := uint64(tenantID.Int64)
		u.TenantID = &id
		if tName.Valid {
			u.Tenant = &model.Tenant{
				ID:        id,
				Name:      tName.String,
				Address:   tAddr.String,
				CreatedAt: tCreated.Time,
				UpdatedAt: tUpdated.Time,
			}
		}
	}
	return u, nil
}

// Create inserts u and fills in its ID and timestamps.  The email must
// already be normalized and the password already hashed.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := database.From(ctx, r.DB).ExecContext(ctx,
		`INSERT INTO users (first_name, last_name, email, password_hash, role, tenant_id, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		u.FirstName, u.LastName, u.Email, u.PasswordHash, string(u.Role), u.TenantID, now, now)
	if err != nil {
		switch {
		case isDuplicate(err):
			return ErrEmailExists
		case isMissingParent(err):
			return ErrTenantNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// GetByID fetches a user by id together with its tenant.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := database.From(ctx, r.DB).QueryRowContext(ctx, userSelect+" WHERE u.id = ? LIMIT 1", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := database.From(ctx, r.DB).QueryRowContext(ctx, userSelect+" WHERE u.email = ? LIMIT 1",
		model.NormalizeEmail(email))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// List returns one page of users matching f and the total number of
// matches, ordered by id.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter) ([]model.User, int, error) {
	page := f.Page.Normalize()
	// Build the WHERE clause and its arguments from the optional filters.
	var (
		where []string
		args  []any
	)
	// q matches a substring of either name or the email.
	if q := strings.TrimSpace(f.Q); q != "" {
		like := "%" + escapeLike(q) + "%"
		where = append(where, "(u.first_name LIKE ? OR u.last_name LIKE ? OR u.email LIKE ?)")
		args = append(args, like, like, like)
	}
	if f.Role != "" {
		where = append(where, "u.role = ?")
		args = append(args, string(f.Role))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	// Count the matches first so the response can report the total.
	conn := database.From(ctx, r.DB)
	var total int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users u"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Then fetch the requested window in id order.
	rows, err := conn.QueryContext(ctx, userSelect+cond+" ORDER BY u.id LIMIT ? OFFSET ?",
		append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.User, 0, page.PerPage)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update applies p to the user.  It returns ErrUserNotFound when no row
// matches, ErrEmailExists on a duplicate email and ErrTenantNotFound when
// the new tenant does not exist.
func (r *UserRepo) Update(ctx context.Context, id uint64, p model.UserPatch) error {
	// Nothing to change; still report a missing user.
	if p.Empty() {
		_, err := r.GetByID(ctx, id)
		return err
	}
	// Only the fields present in the patch are written.
	var (
		set  []string
		args []any
	)
	if p.FirstName != nil {
		set = append(set, "first_name = ?")
		args = append(args, *p.FirstName)
	}
	if p.LastName != nil {
		set = append(set, "last_name = ?")
		args = append(args, *p.LastName)
	}
	if p.Email != nil {
		set = append(set, "email = ?")
		args = append(args, model.NormalizeEmail(*p.Email))
	}
	if p.Role != nil {
		set = append(set, "role = ?")
		args = append(args, string(*p.Role))
	}
	// Detaching wins over a new tenant id.
	if p.ClearTenant {
		set = append(set, "tenant_id = NULL")
	} else if p.TenantID != nil {
		set = append(set, "tenant_id = ?")
		args = append(args, *p.TenantID)
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC().Truncate(time.Second), id)

	res, err := database.From(ctx, r.DB).ExecContext(ctx,
		"UPDATE users SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		switch {
		case isDuplicate(err):
			return ErrEmailExists
		case isMissingParent(err):
			return ErrTenantNotFound
		}
		return err
	}
	// The DSN sets clientFoundRows, so a matched row counts even when no
	// value changed.
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes the user.  Refresh tokens go with it via ON DELETE CASCADE.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := database.From(ctx, r.DB).ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
