package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("scan: %w", NotFound("registration not found for token"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrExpired))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "scan: registration not found for token", err.Error())
}

func TestUpstreamUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Upstream("pin metadata", cause)

	assert.True(t, errors.Is(err, ErrUpstreamFailure))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "pin metadata: connection reset", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		NotFound("x"):               http.StatusNotFound,
		Expired("x"):                http.StatusBadRequest,
		Validation("x"):             http.StatusBadRequest,
		EmptyAttendance("x"):        http.StatusBadRequest,
		Conflict("x"):               http.StatusConflict,
		Unconfigured("x"):           http.StatusServiceUnavailable,
		Upstream("x", nil):          http.StatusBadGateway,
		errors.New("plain failure"): http.StatusInternalServerError,
	}

	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
