package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" ADMIN ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	r, ok = ParseRole("manager")
	assert.True(t, ok)
	assert.Equal(t, RoleManager, r)

	_, ok = ParseRole("owner")
	assert.False(t, ok)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.Com "))
}

func TestPageNormalize(t *testing.T) {
	p := Page{}.Normalize()
	assert.Equal(t, Page{Current: 1, PerPage: DefaultPerPage}, p)
	assert.Equal(t, 0, p.Offset())

	p = Page{Current: 3, PerPage: 500}.Normalize()
	assert.Equal(t, MaxPerPage, p.PerPage)
	assert.Equal(t, 2*MaxPerPage, p.Offset())
}

func TestPageNormalize_HugeCurrentDoesNotOverflow(t *testing.T) {
	p := Page{Current: math.MaxInt, PerPage: MaxPerPage}.Normalize()
	assert.Equal(t, MaxCurrentPage, p.Current)
	assert.GreaterOrEqual(t, p.Offset(), 0)

	assert.GreaterOrEqual(t, Page{Current: math.MaxInt, PerPage: 6}.Offset(), 0)
}

func TestUserPatchEmpty(t *testing.T) {
	assert.True(t, UserPatch{}.Empty())
	name := "Ann"
	assert.False(t, UserPatch{FirstName: &name}.Empty())
	assert.False(t, UserPatch{ClearTenant: true}.Empty())
}
