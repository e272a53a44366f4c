package model

import "math"

const (
	DefaultPerPage = 6
	MaxPerPage     = 100
	// MaxCurrentPage keeps Offset from overflowing int.
	MaxCurrentPage = math.MaxInt / MaxPerPage
)

// Page is a 1-based pagination window.
type Page struct {
	Current int `json:"currentPage"`
	PerPage int `json:"perPage"`
}

// Normalize clamps the page into a usable window.
func (p Page) Normalize() Page {
	if p.Current < 1 {
		p.Current = 1
	}
	if p.Current > MaxCurrentPage {
		p.Current = MaxCurrentPage
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset returns the number of rows to skip for a normalized page.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Current - 1) * p.PerPage
}
