package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"not found", NotFound("request %s", "r1"), http.StatusNotFound, "not_found"},
		{"forbidden", Forbidden("chef"), http.StatusForbidden, "forbidden"},
		{"invalid transition", InvalidTransition("rejected"), http.StatusConflict, "invalid_transition"},
		{"validation", Validation("working days"), http.StatusUnprocessableEntity, "validation_error"},
		{"conflict", Conflict("version"), http.StatusConflict, "conflict"},
		{"unavailable", Unavailable(errors.New("connection reset")), http.StatusServiceUnavailable, "unavailable"},
		{"wrapped", fmt.Errorf("transition: %w", Forbidden("x")), http.StatusForbidden, "forbidden"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("server selection timeout")
	err := Unavailable(cause)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
}
