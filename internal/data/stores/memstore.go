package stores

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hay-kot/kvpub/internal/core/kv"
)

const (
	// DefaultMemoryCap is the entry count at which an insert clears the store.
	DefaultMemoryCap = 1000
	// DefaultMemoryValueCeiling is the value length at which inserts are dropped.
	DefaultMemoryValueCeiling = 10000
)

// MemoryOptions configures a MemoryStore.
type MemoryOptions struct {
	// Cap is the hard entry limit. An insert that finds the store at or above
	// Cap removes every entry first.
	Cap int
	// ValueCeiling drops inserts whose value length is at or above it.
	ValueCeiling int
}

// MemoryStore implements kv.Store on a process-local map. A single mutex is
// held for the whole of every operation.
type MemoryStore struct {
	mu           sync.Mutex
	data         map[string]kv.Entry
	cap          int
	valueCeiling int
	now          func() time.Time
}

var _ kv.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	if opts.Cap <= 0 {
		opts.Cap = DefaultMemoryCap
	}
	if opts.ValueCeiling <= 0 {
		opts.ValueCeiling = DefaultMemoryValueCeiling
	}
	return &MemoryStore{
		data:         make(map[string]kv.Entry),
		cap:          opts.Cap,
		valueCeiling: opts.ValueCeiling,
		now:          time.Now,
	}
}

// Find returns the value stored for key.
func (s *MemoryStore) Find(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	return e.Value, ok, nil
}

// Insert stores a new entry. Values at or above the ceiling are ignored.
func (s *MemoryStore) Insert(_ context.Context, key, value string) error {
	if key == "" {
		return kv.ErrKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(key, value)
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Upsert replaces key under one lock acquisition.
func (s *MemoryStore) Upsert(_ context.Context, key, value string) error {
	if key == "" {
		return kv.ErrKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	s.insertLocked(key, value)
	return nil
}

// Count returns the number of entries.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.data), nil
}

// EvictTo keeps the retain newest entries.
func (s *MemoryStore) EvictTo(_ context.Context, retain int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if retain < 0 {
		retain = 0
	}
	if len(s.data) <= retain {
		return 0, nil
	}

	entries := s.sortedLocked()
	for _, e := range entries[retain:] {
		delete(s.data, e.Key)
	}
	return len(entries) - retain, nil
}

// Entries returns every entry, newest first.
func (s *MemoryStore) Entries(_ context.Context) ([]kv.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sortedLocked(), nil
}

// Close drops every entry.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]kv.Entry)
	return nil
}

func (s *MemoryStore) insertLocked(key, value string) {
	if len(value) >= s.valueCeiling {
		return
	}

	if len(s.data) >= s.cap {
		clear(s.data)
	}

	s.data[key] = kv.Entry{Key: key, Value: value, CreatedAt: s.now()}
}

func (s *MemoryStore) sortedLocked() []kv.Entry {
	entries := make([]kv.Entry, 0, len(s.data))
	for _, e := range s.data {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return kv.Newer(entries[i], entries[j])
	})
	return entries
}
