package apierr

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_StatusMapping(t *testing.T) {
	cases := []struct {
		kind   Kind
		status int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindUpstreamUnavailable, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		err := New(tc.kind, "some_code", "some message")
		assert.Equal(t, tc.status, err.Status())
	}
}

func TestWrap_PreservesCauseViaUnwrap(t *testing.T) {
	cause := errors.New("db connection refused")
	err := Wrap(KindInternal, "store_unavailable", "could not reach store", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "db connection refused")
}

func TestHandler_MapsAPIErrorAndFallsBackForUnknown(t *testing.T) {
	status, body := Handler(context.Background(), New(KindNotFound, "user_not_found", "user not found"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, Body{Error: string(KindNotFound), Message: "user not found", Details: map[string]any{"code": "user_not_found"}}, body)

	status, body = Handler(context.Background(), errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, Body{Error: string(KindInternal), Message: "internal server error"}, body)
}
