package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/apperr"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
)

// UserService implements the admin user operations.
type UserService struct {
	users  UserStore
	hasher Hasher
	events EventPublisher
	log    logrus.FieldLogger
}

func NewUserService(users UserStore, hasher Hasher, events EventPublisher, log logrus.FieldLogger) *UserService {
	return &UserService{users: users, hasher: hasher, events: events, log: log}
}

// CreateUserInput is an admin-created user.  Unlike registration the
// caller picks the role and tenant.
type CreateUserInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      model.Role
	TenantID  *uint64
}

// checkTenancy enforces that admins have no tenant and managers have one.
func checkTenancy(role model.Role, tenantID *uint64) error {
	switch {
	case role == model.RoleAdmin && tenantID != nil:
		return apperr.Validation(apperr.Violation{Field: "tenantId", Message: "admin users cannot belong to a tenant", Location: "body"})
	case role == model.RoleManager && tenantID == nil:
		return apperr.Validation(apperr.Violation{Field: "tenantId", Message: "managers must belong to a tenant", Location: "body"})
	}
	return nil
}

func (s *UserService) Create(ctx context.Context, actorID uint64, in CreateUserInput) (model.User, error) {
	if in.Role == "" {
		in.Role = model.RoleCustomer
	}
	if err := checkTenancy(in.Role, in.TenantID); err != nil {
		return model.User{}, err
	}
	u := model.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     model.NormalizeEmail(in.Email),
		Role:      in.Role,
		TenantID:  in.TenantID,
	}
	if err := ensureEmailFree(ctx, s.users, u.Email); err != nil {
		return model.User{}, err
	}
	hash, err := hashPassword(s.hasher, in.Password)
	if err != nil {
		return model.User{}, err
	}
	u.PasswordHash = hash
	if err := s.users.Create(ctx, &u); err != nil {
		return model.User{}, storeError(err)
	}

	s.emit(ctx, queue.UserCreated, actorID, u)
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, storeError(err)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, f model.UserFilter) ([]model.User, int, error) {
	users, total, err := s.users.List(ctx, f)
	if err != nil {
		return nil, 0, storeError(err)
	}
	return users, total, nil
}

// Update applies p and returns the updated user.  Promoting a user to
// admin detaches it from its tenant.
func (s *UserService) Update(ctx context.Context, actorID, id uint64, p model.UserPatch) (model.User, error) {
	cur, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, storeError(err)
	}

	role := cur.Role
	if p.Role != nil {
		role = *p.Role
	}
	tenant := cur.TenantID
	if p.ClearTenant {
		tenant = nil
	} else if p.TenantID != nil {
		tenant = p.TenantID
	}
	if role == model.RoleAdmin && p.TenantID == nil && tenant != nil {
		p.ClearTenant, tenant = true, nil
	}
	if err := checkTenancy(role, tenant); err != nil {
		return model.User{}, err
	}
	if p.Email != nil {
		email := model.NormalizeEmail(*p.Email)
		p.Email = &email
		if email != cur.Email {
			if err := ensureEmailFree(ctx, s.users, email); err != nil {
				return model.User{}, err
			}
		}
	}

	if err := s.users.Update(ctx, id, p); err != nil {
		return model.User{}, storeError(err)
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, storeError(err)
	}
	s.emit(ctx, queue.UserUpdated, actorID, u)
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, actorID, id uint64) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return storeError(err)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return storeError(err)
	}
	s.emit(ctx, queue.UserDeleted, actorID, u)
	return nil
}

func (s *UserService) emit(ctx context.Context, typ string, actorID uint64, u model.User) {
	ev := queue.NewUserEvent(typ, u.ID, u.Email, string(u.Role), u.TenantID)
	ev.ActorID = actorID
	publish(ctx, s.events, s.log, ev)
}
