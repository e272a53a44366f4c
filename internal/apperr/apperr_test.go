package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:     http.StatusBadRequest,
		KindConflict:       http.StatusBadRequest,
		KindAuthentication: http.StatusUnauthorized,
		KindAuthorization:  http.StatusForbidden,
		KindNotFound:       http.StatusNotFound,
		KindConfiguration:  http.StatusInternalServerError,
		KindInternal:       http.StatusInternalServerError,
	}
	for k, want := range cases {
		assert.Equal(t, want, k.Status(), k.String())
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("register: %w", Conflict("email is already registered"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Internal("store user", errors.New("connection refused"))
	assert.Equal(t, "store user: connection refused", err.Error())
	assert.ErrorContains(t, errors.Unwrap(err), "connection refused")
}
