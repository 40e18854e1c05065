// Package sentinel holds the storage-level facts that stores report and services
// translate into coded domain errors. Input validation never uses these; see
// pkg/domain-errors.
package sentinel

import "errors"

var (
	// ErrNotFound: the record does not exist, or a draft has expired.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a record with the same identifier already exists.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState: the record cannot take the requested transition.
	ErrInvalidState = errors.New("invalid state")
)
