package model

import (
	"strings"
	"time"
)

// Role is the coarse capability class carried in access tokens.  Roles are
// stored and transmitted in lower case.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleCustomer Role = "customer"
)

// Roles lists every known role in order of decreasing privilege.
var Roles = []Role{RoleAdmin, RoleManager, RoleCustomer}

// ParseRole normalizes s and reports whether it names a known role.
// Matching is case-insensitive so "ADMIN" and "admin" are the same role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// User represents a row in the `users` table.  The password is only ever
// held as a bcrypt hash and never serialized.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	FirstName    – given name.
//	LastName     – family name.
//	Email        – unique, trimmed and lower-cased email address.
//	PasswordHash – bcrypt hash of the password.
//	Role         – admin, manager or customer.
//	TenantID     – tenant the user belongs to; nil for admins.
//	Tenant       – tenant row when loaded through a join, otherwise nil.
type User struct {
	ID           uint64    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	TenantID     *uint64   `json:"tenantId"`
	Tenant       *Tenant   `json:"tenant,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserPatch carries the fields of an update.  Nil fields are left unchanged.
// ClearTenant detaches the user from any tenant and wins over TenantID.
type UserPatch struct {
	FirstName   *string
	LastName    *string
	Email       *string
	Role        *Role
	TenantID    *uint64
	ClearTenant bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.Role == nil && p.TenantID == nil && !p.ClearTenant
}

// UserFilter selects a page of users.  Q matches first name, last name or
// email as a substring.
type UserFilter struct {
	Q    string
	Role Role
	Page Page
}
