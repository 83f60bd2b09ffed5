package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hay-kot/kvpub/internal/core/kv"
)

var (
	entriesBucket = []byte("entries")
	createdBucket = []byte("entries_by_created")
)

var errCorruptRecord = errors.New("corrupt entry record")

// BoltStore implements kv.Store on an embedded bbolt file.
//
// Entries are kept in two buckets: key → created_at‖value, and a secondary
// index created_at‖key → nil whose byte order matches eviction order.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

var _ kv.Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt file at path.
func OpenBoltStore(path string, timeout time.Duration) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{entriesBucket, createdBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return &BoltStore{db: bdb, now: time.Now}, nil
}

// Find returns the value stored for key.
func (s *BoltStore) Find(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(entriesBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		_, v, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		value, found = v, true
		return nil
	})
	if err != nil {
		return "", false, kv.NewStorageError("find", key, err)
	}
	return value, found, nil
}

// Insert stores a new entry, replacing the index record of any previous one.
func (s *BoltStore) Insert(_ context.Context, key, value string) error {
	if key == "" {
		return kv.ErrKeyRequired
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := removeEntry(tx, key); err != nil {
			return err
		}
		return putEntry(tx, key, value, s.now())
	})
	return kv.NewStorageError("insert", key, err)
}

// Delete removes key and its index record.
func (s *BoltStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return removeEntry(tx, key)
	})
	return kv.NewStorageError("delete", key, err)
}

// Upsert deletes and re-inserts key in one update transaction.
func (s *BoltStore) Upsert(_ context.Context, key, value string) error {
	if key == "" {
		return kv.ErrKeyRequired
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := removeEntry(tx, key); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		if err := putEntry(tx, key, value, s.now()); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	return kv.NewStorageError("upsert", key, err)
}

// Count returns the number of entries.
func (s *BoltStore) Count(_ context.Context) (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(entriesBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, kv.NewStorageError("count", "", err)
	}
	return count, nil
}

// EvictTo walks the index newest first and deletes everything past retain.
func (s *BoltStore) EvictTo(_ context.Context, retain int) (int, error) {
	if retain < 0 {
		retain = 0
	}

	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		var (
			entries = tx.Bucket(entriesBucket)
			created = tx.Bucket(createdBucket)
			stale   [][]byte
			seen    int
		)

		c := created.Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			seen++
			if seen <= retain {
				continue
			}
			stale = append(stale, bytes.Clone(k))
		}

		for _, idx := range stale {
			if err := created.Delete(idx); err != nil {
				return err
			}
			if err := entries.Delete(idx[8:]); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, kv.NewStorageError("evict", "", err)
	}
	return removed, nil
}

// Entries returns every entry, newest first.
func (s *BoltStore) Entries(_ context.Context) ([]kv.Entry, error) {
	var out []kv.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(entriesBucket)
		c := tx.Bucket(createdBucket).Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			key := k[8:]
			ts, value, err := decodeRecord(entries.Get(key))
			if err != nil {
				return fmt.Errorf("key %q: %w", key, err)
			}
			out = append(out, kv.Entry{Key: string(key), Value: value, CreatedAt: ts})
		}
		return nil
	})
	if err != nil {
		return nil, kv.NewStorageError("list", "", err)
	}
	return out, nil
}

// Close closes the bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func putEntry(tx *bolt.Tx, key, value string, now time.Time) error {
	ts := uint64(now.UnixNano())
	if err := tx.Bucket(entriesBucket).Put([]byte(key), encodeRecord(ts, value)); err != nil {
		return err
	}
	return tx.Bucket(createdBucket).Put(indexKey(ts, key), nil)
}

func removeEntry(tx *bolt.Tx, key string) error {
	entries := tx.Bucket(entriesBucket)
	raw := entries.Get([]byte(key))
	if raw == nil {
		return nil
	}
	if len(raw) < 8 {
		return errCorruptRecord
	}

	ts := binary.BigEndian.Uint64(raw[:8])
	if err := tx.Bucket(createdBucket).Delete(indexKey(ts, key)); err != nil {
		return err
	}
	return entries.Delete([]byte(key))
}

func indexKey(ts uint64, key string) []byte {
	buf := make([]byte, 8+len(key))
	binary.BigEndian.PutUint64(buf[:8], ts)
	copy(buf[8:], key)
	return buf
}

func encodeRecord(ts uint64, value string) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], ts)
	copy(buf[8:], value)
	return buf
}

func decodeRecord(raw []byte) (time.Time, string, error) {
	if len(raw) < 8 {
		return time.Time{}, "", errCorruptRecord
	}
	ts := binary.BigEndian.Uint64(raw[:8])
	return time.Unix(0, int64(ts)), string(raw[8:]), nil
}
