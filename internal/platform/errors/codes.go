// Package errors provides structured domain errors with transport mappings.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidArgument marks malformed input such as blank ids or self-references.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	// CodeUnauthenticated marks a missing or rejected session token.
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	// CodeNotFound marks a missing user record.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict marks a duplicate relationship such as an existing request or edge.
	CodeConflict Code = "CONFLICT"
	// CodeInvalidState marks a transition whose precondition does not hold.
	CodeInvalidState Code = "INVALID_STATE"
	// CodeInternal marks an unexpected storage or runtime failure.
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument, CodeConflict, CodeInvalidState:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
