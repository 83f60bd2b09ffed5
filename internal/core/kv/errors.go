package kv

import (
	"errors"
	"fmt"
)

// ErrStorageFailure is matched by every error caused by the storage medium
// (pool exhaustion, I/O errors, dropped connections, query errors).
var ErrStorageFailure = errors.New("storage failure")

// ErrKeyRequired is returned by Insert and Upsert for an empty key. It is a
// caller error and does not match ErrStorageFailure.
var ErrKeyRequired = errors.New("key required")

// StorageError records the store operation that failed and why.
type StorageError struct {
	Op  string
	Key string
	Err error
}

// NewStorageError wraps err as a StorageError for op. A nil err yields nil.
func NewStorageError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Key: key, Err: err}
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("kv %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("kv %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both ErrStorageFailure and the underlying cause.
func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageFailure, e.Err}
}
