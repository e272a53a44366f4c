package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/auth-service/internal/model"
)

var userCols = []string{
	"id", "first_name", "last_name", "email", "password_hash", "role", "tenant_id",
	"name", "address", "t_created_at", "t_updated_at", "created_at", "updated_at",
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestUserRepo_Create_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("Ann", "Lee", "ann@example.com", "$2a$10$hash", "customer", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))

	u := &model.User{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", PasswordHash: "$2a$10$hash", Role: model.RoleCustomer}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, uint64(42), u.ID)
	assert.False(t, u.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ann@example.com' for key 'uq_users_email'"})

	err := repo.Create(context.Background(), &model.User{Email: "ann@example.com", Role: model.RoleCustomer})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_MissingTenant(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	tenantID := uint64(9)
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})

	err := repo.Create(context.Background(), &model.User{Email: "m@example.com", Role: model.RoleManager, TenantID: &tenantID})
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestUserRepo_GetByID_WithTenant(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows(userCols).
		AddRow(7, "Mia", "Ray", "mia@example.com", "$2a$10$hash", "manager", 3,
			"Pizza North", "1 Main St", now, now, now, now)
	mock.ExpectQuery(`SELECT u.id`).WithArgs(7).WillReturnRows(rows)

	u, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, u.Role)
	require.NotNil(t, u.TenantID)
	assert.Equal(t, uint64(3), *u.TenantID)
	require.NotNil(t, u.Tenant)
	assert.Equal(t, "Pizza North", u.Tenant.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByEmail_NormalizesAndMisses(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(`SELECT u.id`).WithArgs("ann@example.com").WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.GetByEmail(context.Background(), "  Ann@Example.com ")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_List_FilterAndPage(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users u WHERE`).
		WithArgs("%ann%", "%ann%", "%ann%", "customer").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT u.id .* ORDER BY u.id LIMIT \? OFFSET \?`).
		WithArgs("%ann%", "%ann%", "%ann%", "customer", 2, 2).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(5, "Ann", "B", "ann.b@example.com", "h", "customer", nil, nil, nil, nil, nil, now, now))

	users, total, err := repo.List(context.Background(), model.UserFilter{
		Q:    "ann",
		Role: model.RoleCustomer,
		Page: model.Page{Current: 2, PerPage: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, users, 1)
	assert.Nil(t, users[0].TenantID)
	assert.Nil(t, users[0].Tenant)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Update_RoleAndTenant(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	role := model.RoleManager
	tenant := uint64(4)
	mock.ExpectExec(`UPDATE users SET role = \?, tenant_id = \?, updated_at = \? WHERE id = \?`).
		WithArgs("manager", 4, sqlmock.AnyArg(), 11).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), 11, model.UserPatch{Role: &role, TenantID: &tenant}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Update_ClearTenant(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	role := model.RoleAdmin
	mock.ExpectExec(`UPDATE users SET role = \?, tenant_id = NULL, updated_at = \? WHERE id = \?`).
		WithArgs("admin", sqlmock.AnyArg(), 11).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), 11, model.UserPatch{Role: &role, ClearTenant: true}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Update_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	name := "X"
	mock.ExpectExec(`UPDATE users SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), 99, model.UserPatch{FirstName: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepo_Delete(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(`DELETE FROM users WHERE id = \?`).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM users WHERE id = \?`).WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 3))
	assert.ErrorIs(t, repo.Delete(context.Background(), 4), ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}
