package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfThroughWrapping(t *testing.T) {
	base := Conflict("orders.Pay", "order is already paid")
	wrapped := fmt.Errorf("handler: %w", base)

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, "order is already paid", Message(wrapped))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindOf(wrapped)))
}

func TestSentinelSurvivesWithOp(t *testing.T) {
	sentinel := Validation("", "no order items")
	err := sentinel.WithOp("orders.Create")

	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, "orders.Create: no order items", err.Error())
}

func TestInternalHidesCause(t *testing.T) {
	err := Internal("orders.repo", errors.New("connection reset"))

	assert.Equal(t, "internal error", Message(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindOf(err)))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindIntegration:  http.StatusBadRequest,
		KindNotFound:     http.StatusNotFound,
		KindUnauthorized: http.StatusUnauthorized,
		KindForbidden:    http.StatusForbidden,
		KindConflict:     http.StatusConflict,
		KindUnavailable:  http.StatusBadGateway,
	}
	for k, want := range cases {
		assert.Equal(t, want, HTTPStatus(k), k.String())
	}
}

func TestCheckID(t *testing.T) {
	assert.NoError(t, CheckID("op", "order id", "0b5c9c3e-1a7d-4b8e-9f41-6d1c2a9e7b10"))

	err := CheckID("op", "order id", "")
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "order id is required", Message(err))

	err = CheckID("op", "order id", "not-a-uuid")
	assert.Equal(t, "invalid order id", Message(err))
}
