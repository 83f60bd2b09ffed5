package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hay-kot/kvpub/internal/core/kv"
	"github.com/hay-kot/kvpub/internal/data/db"
)

// SQLStore implements kv.Store on the SQLite entries table. It holds no
// in-process lock; every call acquires one pooled connection.
type SQLStore struct {
	db  *db.DB
	now func() time.Time
}

var _ kv.Store = (*SQLStore)(nil)

// NewSQLStore creates a new SQLite-backed store.
func NewSQLStore(database *db.DB) *SQLStore {
	return &SQLStore{db: database, now: time.Now}
}

// DB returns the underlying connection pool.
func (s *SQLStore) DB() *db.DB {
	return s.db
}

// OpenSQLStore opens the database at path and wraps it in a SQLStore. When
// recoverCorrupt is set and the file is corrupted, the file is moved aside
// and a fresh database is created in its place.
func OpenSQLStore(path string, opts db.OpenOptions, recoverCorrupt bool) (*SQLStore, error) {
	database, err := db.Open(path, opts)
	if err != nil && recoverCorrupt && IsCorruptionError(err) {
		backup, rerr := RecoverFromCorruption(path)
		if rerr != nil {
			return nil, fmt.Errorf("recover corrupted database: %w", rerr)
		}
		log.Warn().Err(err).Str("backup", backup).Msg("database corrupted, starting fresh")
		database, err = db.Open(path, opts)
	}
	if err != nil {
		return nil, err
	}
	return NewSQLStore(database), nil
}

// Find returns the value stored for key.
func (s *SQLStore) Find(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.WithConn(ctx, func(q *db.Queries) error {
		v, err := q.EntryGet(ctx, key)
		if IsNotFoundError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		value, found = v, true
		return nil
	})
	if err != nil {
		return "", false, sqlStorageError("find", key, err)
	}
	return value, found, nil
}

// Insert adds a new row. Inserting an existing key fails with a storage error.
func (s *SQLStore) Insert(ctx context.Context, key, value string) error {
	if key == "" {
		return kv.ErrKeyRequired
	}
	err := s.db.WithConn(ctx, func(q *db.Queries) error {
		return q.EntryInsert(ctx, s.params(key, value))
	})
	return sqlStorageError("insert", key, err)
}

// Delete removes the row for key.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithConn(ctx, func(q *db.Queries) error {
		return q.EntryDelete(ctx, key)
	})
	return sqlStorageError("delete", key, err)
}

// Upsert deletes and re-inserts key in one transaction so concurrent writers
// to the same key cannot interleave.
func (s *SQLStore) Upsert(ctx context.Context, key, value string) error {
	if key == "" {
		return kv.ErrKeyRequired
	}
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		if err := q.EntryDelete(ctx, key); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		if err := q.EntryInsert(ctx, s.params(key, value)); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	return sqlStorageError("upsert", key, err)
}

// Count returns the number of rows.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithConn(ctx, func(q *db.Queries) error {
		var err error
		count, err = q.EntryCount(ctx)
		return err
	})
	if err != nil {
		return 0, sqlStorageError("count", "", err)
	}
	return int(count), nil
}

// EvictTo deletes every row outside the retain most recently created.
func (s *SQLStore) EvictTo(ctx context.Context, retain int) (int, error) {
	if retain < 0 {
		retain = 0
	}

	var removed int64
	err := s.db.WithConn(ctx, func(q *db.Queries) error {
		var err error
		removed, err = q.EntryEvict(ctx, int64(retain))
		return err
	})
	if err != nil {
		return 0, sqlStorageError("evict", "", err)
	}
	return int(removed), nil
}

// Entries returns every entry, newest first.
func (s *SQLStore) Entries(ctx context.Context) ([]kv.Entry, error) {
	var rows []db.Entry
	err := s.db.WithConn(ctx, func(q *db.Queries) error {
		var err error
		rows, err = q.EntryList(ctx)
		return err
	})
	if err != nil {
		return nil, sqlStorageError("list", "", err)
	}

	entries := make([]kv.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, kv.Entry{
			Key:       row.Key,
			Value:     row.Value,
			CreatedAt: time.Unix(0, row.CreatedAt),
		})
	}
	return entries, nil
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) params(key, value string) db.EntryInsertParams {
	return db.EntryInsertParams{
		Key:       key,
		Value:     value,
		CreatedAt: s.now().UnixNano(),
	}
}
