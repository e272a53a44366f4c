package model

import "time"

// Tenant represents an organizational scope users may belong to.  It
// corresponds to a row in the `tenants` table.
type Tenant struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TenantPatch carries the fields of a tenant update.
type TenantPatch struct {
	Name    *string
	Address *string
}

// TenantFilter selects a page of tenants.  Q matches name or address.
type TenantFilter struct {
	Q    string
	Page Page
}
