package engine

import (
	"errors"
	"fmt"
)

// ErrNoAvailableSource indicates that no backend is currently available.
var ErrNoAvailableSource = errors.New("engine: no available source")

// ErrSelectionFailure indicates that the selector did not return any
// backend despite a non-empty set of candidates.
var ErrSelectionFailure = errors.New("engine: selection failure")

// errNoResult indicates that a backend returned neither a result nor an error.
var errNoResult = errors.New("backend returned no result")

// BackendQueryError is the error returned when a backend query fails.
type BackendQueryError struct {
	// Backend is the name of the backend that failed.
	Backend string

	// Err is the underlying error.
	Err error
}

// Error implements error.
func (e *BackendQueryError) Error() string {
	return fmt.Sprintf("engine: backend %s: %s", e.Backend, e.Err.Error())
}

// Unwrap allows using errors.Is and errors.As with the underlying error.
func (e *BackendQueryError) Unwrap() error {
	return e.Err
}
