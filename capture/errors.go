package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record exists for an identifier
	ErrNotFound = errors.New("webhook not found")

	// ErrInvalidIdentifier is returned for identifiers that do not parse as version 7 UUIDs
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrInvalidCursor is returned for malformed pagination tokens
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrDuplicateID is returned when inserting an identifier that already exists
	ErrDuplicateID = errors.New("duplicate identifier")

	// ErrInvalidLimit is returned for non-positive scan limits
	ErrInvalidLimit = errors.New("limit must be a positive integer")
)

/* StorageError reports a failure of the durable medium
 * Fatal to the triggering request and never retried here
 */
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError for operation op
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
