package store

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrInvalidConfig    = errors.New("invalid dataset configuration")
	ErrDatasetExists    = errors.New("dataset already exists")
	ErrNoSuperblock     = errors.New("dataset superblock not found")
	ErrShrinkNotAllowed = errors.New("logical length may not shrink")
	ErrUnalignedOffset  = errors.New("offset is not chunk-aligned")
	ErrOutOfRange       = errors.New("offset out of range")
	ErrPayloadTooLarge  = errors.New("encoded payload exceeds chunk allocation")
	ErrAlreadyOpen      = errors.New("writer session already open")
	ErrSessionFailed    = errors.New("writer session failed")
	ErrClosed           = errors.New("store is closed")
	ErrCorruptRecord    = errors.New("corrupt chunk record")
)

// StoreError provides structured error information for store operations.
type StoreError struct {
	Op      string // Operation that failed (e.g., "WriteChunk", "Publish")
	Dataset string // Dataset directory
	Offset  int64  // Logical element offset, -1 when not applicable
	Cause   error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s %s (offset %d): %v", e.Op, e.Dataset, e.Offset, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Dataset, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error or its cause.
func (e *StoreError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

// opError creates a StoreError for a dataset-level operation.
func opError(op, dataset string, cause error) error {
	return &StoreError{Op: op, Dataset: dataset, Offset: -1, Cause: cause}
}

// chunkError creates a StoreError for a chunk-level operation.
func chunkError(op, dataset string, offset uint64, cause error) error {
	return &StoreError{Op: op, Dataset: dataset, Offset: int64(offset), Cause: cause}
}

// IsRejection returns true if the error is a usage rejection that left the
// dataset unchanged, as opposed to a session or storage failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrShrinkNotAllowed) ||
		errors.Is(err, ErrUnalignedOffset) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrPayloadTooLarge)
}
