// Package apperr defines the error taxonomy shared by every external collaborator.
//
// Packages declare their own sentinels wrapping one of these, so callers can branch
// on the kind of failure without knowing which service produced it.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound means a lookup completed but matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrAuth means credentials or tokens could not be obtained or were rejected.
	ErrAuth = errors.New("authentication failed")

	// ErrTransient means an external call failed for any other reason.
	ErrTransient = errors.New("service error")

	// ErrInvalidInput means the caller supplied unusable arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// HTTPStatus maps an error onto the response status the web layer should use.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
