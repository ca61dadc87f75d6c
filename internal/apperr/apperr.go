// Package apperr defines the sentinel errors shared across the folio
// server, store, and CLI. Callers should use errors.Is to classify an
// error and the HTTPStatus helper to map it onto a response code.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidFormat indicates malformed or conflicting input, including
	// unique-constraint violations surfaced by the store.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller is authenticated but not allowed.
	ErrForbidden = errors.New("forbidden")

	// ErrIO indicates a filesystem or network failure.
	ErrIO = errors.New("io error")

	// ErrConfig indicates invalid server configuration.
	ErrConfig = errors.New("configuration error")

	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = errors.New("internal error")

	// ErrScanInProgress indicates a scan trigger was dropped because one
	// is already running.
	ErrScanInProgress = errors.New("scan already in progress")
)

// HTTPStatus maps an error to the HTTP status code it should produce.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrScanInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
