package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil", err: nil, expected: http.StatusOK},
		{name: "not found", err: ErrNotFound, expected: http.StatusNotFound},
		{name: "invalid format", err: ErrInvalidFormat, expected: http.StatusBadRequest},
		{name: "unauthorized", err: ErrUnauthorized, expected: http.StatusUnauthorized},
		{name: "forbidden", err: ErrForbidden, expected: http.StatusForbidden},
		{name: "scan in progress", err: ErrScanInProgress, expected: http.StatusConflict},
		{name: "io", err: ErrIO, expected: http.StatusInternalServerError},
		{name: "internal", err: ErrInternal, expected: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.expected {
				t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestWrappedErrorsClassify(t *testing.T) {
	wrapped := fmt.Errorf("book %s: %w", "abc", ErrNotFound)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("wrapped error should match ErrNotFound")
	}
	if got := HTTPStatus(wrapped); got != http.StatusNotFound {
		t.Errorf("HTTPStatus(wrapped) = %d, want %d", got, http.StatusNotFound)
	}

	deep := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrInvalidFormat))
	if got := HTTPStatus(deep); got != http.StatusBadRequest {
		t.Errorf("HTTPStatus(deep) = %d, want %d", got, http.StatusBadRequest)
	}
}
