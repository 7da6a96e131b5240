package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/marketplace/internal/apperr"
)

func TestValidationKeepsEveryField(t *testing.T) {
	t.Parallel()

	fields := []apperr.FieldError{
		{Field: "price", Message: "must be greater than or equal to 0"},
		{Field: "name", Message: "is required"},
		{Field: "sku", Message: "is required"},
	}

	err := apperr.Validation(fields...)

	assert.Equal(t, http.StatusBadRequest, err.StatusCode())
	assert.Equal(t, "Validation failed", err.Message)
	require.Len(t, err.Fields, len(fields))
	assert.Equal(t, fields, err.Fields)
	assert.True(t, err.Operational())

	fields[0].Field = "mutated"
	assert.Equal(t, "price", err.Fields[0].Field)
}

func TestValidationWithoutFields(t *testing.T) {
	t.Parallel()

	err := apperr.Validation()
	assert.Equal(t, http.StatusBadRequest, err.StatusCode())
	assert.Empty(t, err.Fields)
}

func TestStatusCodesAreFixedPerKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		build   func(string) *apperr.Error
		status  int
		message string
	}{
		{"unauthorized", apperr.Unauthorized, http.StatusUnauthorized, "Unauthorized"},
		{"forbidden", apperr.Forbidden, http.StatusForbidden, "Forbidden"},
		{"not found", apperr.NotFound, http.StatusNotFound, "Resource not found"},
		{"conflict", apperr.Conflict, http.StatusConflict, "Resource already exists"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			def := tc.build("")
			assert.Equal(t, tc.status, def.StatusCode())
			assert.Equal(t, tc.message, def.Message)

			custom := tc.build("order 42 is gone")
			assert.Equal(t, tc.status, custom.StatusCode())
			assert.Equal(t, "order 42 is gone", custom.Message)

			overridden := def.WithMessage("something else")
			assert.Equal(t, tc.status, overridden.StatusCode())
			assert.Equal(t, "something else", overridden.Message)
			assert.Equal(t, tc.message, def.Message)
		})
	}
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("load product: %w", apperr.NotFound("product not found"))

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NotErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, http.StatusNotFound, apperr.StatusCode(err))
	assert.True(t, apperr.IsOperational(err))
}

func TestForeignErrorsAreNotOperational(t *testing.T) {
	t.Parallel()

	plain := errors.New("connection reset by peer")
	assert.False(t, apperr.IsOperational(plain))
	assert.Equal(t, http.StatusInternalServerError, apperr.StatusCode(plain))
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(plain))

	wrapped := apperr.Internal(plain)
	assert.False(t, wrapped.Operational())
	assert.Equal(t, http.StatusInternalServerError, wrapped.StatusCode())
	assert.ErrorIs(t, wrapped, plain)
}

func TestFromStatus(t *testing.T) {
	t.Parallel()

	fields := []apperr.FieldError{{Field: "items", Message: "must not be empty"}}
	err := apperr.FromStatus(http.StatusBadRequest, "Validation failed", fields)
	assert.Equal(t, apperr.KindValidation, err.Kind)
	assert.Equal(t, fields, err.Fields)

	assert.Equal(t, apperr.KindConflict, apperr.FromStatus(http.StatusConflict, "", nil).Kind)
	assert.Equal(t, apperr.KindInternal, apperr.FromStatus(http.StatusBadGateway, "", nil).Kind)
}

func TestErrorString(t *testing.T) {
	t.Parallel()

	err := apperr.Validation(
		apperr.FieldError{Field: "price", Message: "must be greater than or equal to 0"},
		apperr.FieldError{Field: "sku", Message: "is required"},
	)
	assert.Equal(t, "validation: Validation failed (price: must be greater than or equal to 0; sku: is required)", err.Error())
}
