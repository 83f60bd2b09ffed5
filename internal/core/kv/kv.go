// Package kv defines the capacity-bounded key/value store contract shared by
// every storage backend.
package kv

import (
	"context"
	"time"
)

// Entry is a stored key/value pair. CreatedAt is assigned by the store at
// insertion time and only used to order entries for eviction.
type Entry struct {
	Key       string
	Value     string
	CreatedAt time.Time
}

// Store is the interface for a retention-aware key/value store.
//
// Every method reports failures of the underlying medium as an error matching
// ErrStorageFailure. Absence of a key is never an error. Keys are non-empty;
// Insert and Upsert reject "" with ErrKeyRequired.
type Store interface {
	// Find returns the current value for key and whether it exists.
	Find(ctx context.Context, key string) (string, bool, error)
	// Insert creates a new entry timestamped at call time. It does not check
	// for an existing entry with the same key.
	Insert(ctx context.Context, key, value string) error
	// Delete removes the entry for key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
	// Upsert replaces any entry for key with a new one in a single atomic step.
	Upsert(ctx context.Context, key, value string) error
	// Count returns the number of live entries.
	Count(ctx context.Context) (int, error)
	// EvictTo keeps the retain most recently created entries and removes the
	// rest, returning how many were removed. Among entries with equal
	// CreatedAt the greater key is kept.
	EvictTo(ctx context.Context, retain int) (int, error)
	// Close releases the resources held by the store.
	Close() error
}

// Newer reports whether a should survive eviction ahead of b.
func Newer(a, b Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Key > b.Key
}

// Lister is implemented by stores that can enumerate their entries. Entries
// come back in eviction order, newest first.
type Lister interface {
	Entries(ctx context.Context) ([]Entry, error)
}
