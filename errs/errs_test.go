package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected int
	}{
		{"auth required", New(CategoryAuthRequired, "x"), http.StatusUnauthorized},
		{"token invalid", New(CategoryTokenInvalid, "x"), http.StatusUnauthorized},
		{"token expired", New(CategoryTokenExpired, "x"), http.StatusUnauthorized},
		{"forbidden", New(CategoryForbidden, "x"), http.StatusForbidden},
		{"not found", New(CategoryNotFound, "x"), http.StatusNotFound},
		{"stream not ready", New(CategoryStreamNotReady, "x"), http.StatusNotFound},
		{"bad request", New(CategoryBadRequest, "x"), http.StatusBadRequest},
		{"probe failed", New(CategoryProbeFailed, "x"), http.StatusInternalServerError},
		{"spawn failed", New(CategoryTranscoderSpawnFailed, "x"), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, HTTPStatus(tc.err))
		})
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	wrapped := Wrap(CategoryProbeFailed, "probe failed", cause)

	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "underlying")
}
