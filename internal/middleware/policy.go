package middleware

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/apperr"
	"github.com/iliyamo/auth-service/internal/model"
)

// Operation names a protected action.  Each protected route is registered
// with exactly one operation and Policies maps it to the roles allowed.
type Operation string

const (
	OpSelf         Operation = "auth.self"
	OpLogout       Operation = "auth.logout"
	OpUserCreate   Operation = "user.create"
	OpUserList     Operation = "user.list"
	OpUserGet      Operation = "user.get"
	OpUserUpdate   Operation = "user.update"
	OpUserDelete   Operation = "user.delete"
	OpTenantCreate Operation = "tenant.create"
	OpTenantUpdate Operation = "tenant.update"
	OpTenantDelete Operation = "tenant.delete"
)

// ScopeFunc narrows a role's access to particular resources, e.g. a
// manager to its own tenant.
type ScopeFunc func(c echo.Context, id Identity) bool

// Policy allows the listed roles.  A role with an entry in Scoped is
// additionally limited by that predicate.
type Policy struct {
	Roles  []model.Role
	Scoped map[model.Role]ScopeFunc
}

// Allows reports whether id may perform the operation on the request c.
func (p Policy) Allows(c echo.Context, id Identity) bool {
	for _, r := range p.Roles {
		// Skip roles that are not the caller's.
		if r != id.Role {
			continue
		}
		// A scoped role passes only when the predicate matches the request.
		if scope, ok := p.Scoped[r]; ok {
			return scope(c, id)
		}
		return true
	}
	// Roles not listed are denied.
	return false
}

// Role sets shared by several entries of Policies.
var anyRole = []model.Role{model.RoleAdmin, model.RoleManager, model.RoleCustomer}
var adminOnly = []model.Role{model.RoleAdmin}

// Policies is the authorization table for every protected route.
var Policies = map[Operation]Policy{
	OpSelf:         {Roles: anyRole},
	OpLogout:       {Roles: anyRole},
	OpUserCreate:   {Roles: adminOnly},
	OpUserList:     {Roles: adminOnly},
	OpUserGet:      {Roles: adminOnly},
	OpUserUpdate:   {Roles: adminOnly},
	OpUserDelete:   {Roles: adminOnly},
	OpTenantCreate: {Roles: adminOnly},
	OpTenantUpdate: {
		Roles:  []model.Role{model.RoleAdmin, model.RoleManager},
		Scoped: map[model.Role]ScopeFunc{model.RoleManager: OwnTenant("id")},
	},
	OpTenantDelete: {Roles: adminOnly},
}

// OwnTenant matches when the path parameter param equals the caller's
// tenant id.
func OwnTenant(param string) ScopeFunc {
	return func(c echo.Context, id Identity) bool {
		// A caller without a tenant owns nothing.
		if id.TenantID == nil {
			return false
		}
		// An unparsable id never matches; the handler reports it as 400 only
		// for callers that pass this check.
		v, err := strconv.ParseUint(c.Param(param), 10, 64)
		return err == nil && v == *id.TenantID
	}
}

// Authorize enforces table[op] on the identity stored by Authenticate.  It
// panics at route registration when op has no policy, so a route can never
// be left unguarded by a typo.
func Authorize(table map[Operation]Policy, op Operation) echo.MiddlewareFunc {
	p, ok := table[op]
	if !ok {
		panic(fmt.Sprintf("middleware: no policy for operation %q", op))
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Authenticate must run first; without an identity the caller is
			// anonymous.
			id, ok := IdentityFrom(c)
			if !ok {
				return apperr.Unauthenticated("missing access token", nil)
			}
			// Authenticated but not allowed renders as 403.
			if !p.Allows(c, id) {
				return apperr.Forbidden("insufficient role")
			}
			return next(c)
		}
	}
}
