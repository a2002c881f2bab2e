// Package apperr defines the error kinds surfaced by the domain engine.
// Callers wrap them with context and match with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound: an entity id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrConflict: the operation would violate the single-open-entry
	// invariant.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyClosed: stop was called on an entry that is not running.
	ErrAlreadyClosed = errors.New("entry already closed")

	// ErrMalformedBundle: an import payload is missing its required shape.
	ErrMalformedBundle = errors.New("malformed bundle")

	// ErrValidation: input failed a domain validation rule.
	ErrValidation = errors.New("validation failed")
)
