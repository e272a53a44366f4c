// Package repository defines the MySQL-backed stores for users, tenants
// and refresh tokens, plus the sentinel errors shared by every store
// implementation.  Higher layers use these values to distinguish failure
// scenarios without depending on driver error codes.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists is returned when the unique email index rejects an
	// insert or update.
	ErrEmailExists = errors.New("email already exists")

	// ErrTenantNotFound is returned when a tenant lookup misses or when a
	// user references a tenant that does not exist.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantInUse is returned when deleting a tenant that users still
	// reference.
	ErrTenantInUse = errors.New("tenant has users")

	// ErrTokenNotFound is returned when a refresh token record does not
	// exist, i.e. the token was revoked or never issued.
	ErrTokenNotFound = errors.New("refresh token not found")
)

// MySQL server error numbers mapped by the repositories.
const (
	errDupEntry         = 1062
	errRowIsReferenced  = 1451
	errNoReferencedRow  = 1452
	errRowIsReferenced2 = 1217
	errNoReferencedRow2 = 1216
)

func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlCode(err) == errDupEntry }

func isMissingParent(err error) bool {
	code := mysqlCode(err)
	return code == errNoReferencedRow || code == errNoReferencedRow2
}

func isReferenced(err error) bool {
	code := mysqlCode(err)
	return code == errRowIsReferenced || code == errRowIsReferenced2
}
