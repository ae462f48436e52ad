// Package apierr defines the error taxonomy used by cmd/authapi, and wires
// it into go-zero's httpx error handling the way
// goctl-scaffolded services customize it: a single process-wide handler
// registered with httpx.SetErrorHandlerCtx that maps a *Error to an HTTP
// status and a stable machine-readable code.
package apierr

import (
	"context"
	"errors"
	"net/http"
)

// Kind classifies an error for status-code mapping and client handling.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindRateLimited         Kind = "rate_limited"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindValidation:          http.StatusBadRequest,
	KindUnauthorized:        http.StatusUnauthorized,
	KindForbidden:           http.StatusForbidden,
	KindNotFound:            http.StatusNotFound,
	KindConflict:            http.StatusConflict,
	KindRateLimited:         http.StatusTooManyRequests,
	KindUpstreamUnavailable: http.StatusServiceUnavailable,
	KindInternal:            http.StatusInternalServerError,
}

// Error is the error type every logic layer returns to its handler. It
// carries enough information to render both an HTTP status and a stable
// body without the handler needing to inspect error strings.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an *Error that carries an underlying cause for logging,
// without leaking the cause's text to API clients.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Body is the JSON shape returned to clients: the stable Kind string under
// "error", a human message, and an optional details object carrying the
// finer-grained machine code (e.g. "refresh_reuse_detected") for clients
// that want to branch on more than the kind.
type Body struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Handler is registered once at process startup via
// httpx.SetErrorHandlerCtx(apierr.Handler) in cmd/authapi/authapi.go, mirroring
// the teacher's per-service ServiceContext wiring (shared/config, shared/
// repository) done once at boot.
func Handler(_ context.Context, err error) (int, any) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		body := Body{Error: string(apiErr.Kind), Message: apiErr.Message}
		if apiErr.Code != "" {
			body.Details = map[string]any{"code": apiErr.Code}
		}
		return apiErr.Status(), body
	}

	return http.StatusInternalServerError, Body{
		Error:   string(KindInternal),
		Message: "internal server error",
	}
}
