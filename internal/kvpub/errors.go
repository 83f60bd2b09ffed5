package kvpub

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge is returned by Add when the key or value is at or
	// above its length limit. The store is never touched.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrInvalidKey is returned by Add when the key is empty or only
	// whitespace. The store is never touched.
	ErrInvalidKey = errors.New("invalid key")

	// ErrWriteFailure is matched by every storage failure during Add.
	ErrWriteFailure = errors.New("write failure")
)

// Steps of the write sequence reported by WriteError.
const (
	StepRetention = "retention"
	StepUpsert    = "upsert"
)

// WriteError records which step of Add failed.
type WriteError struct {
	Step string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed during %s: %v", e.Step, e.Err)
}

// Unwrap exposes both ErrWriteFailure and the underlying storage error.
func (e *WriteError) Unwrap() []error {
	return []error{ErrWriteFailure, e.Err}
}
