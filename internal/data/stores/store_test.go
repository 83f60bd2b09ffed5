package stores

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/kvpub/internal/core/kv"
	"github.com/hay-kot/kvpub/internal/data/db"
)

// testClock hands out strictly increasing timestamps, or a fixed one when
// step is zero.
type testClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newTestClock(step time.Duration) *testClock {
	return &testClock{t: time.Unix(1_700_000_000, 0), step: step}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

// entryLister is implemented by every store in this package.
type entryLister interface {
	kv.Store
	Entries(ctx context.Context) ([]kv.Entry, error)
}

type storeFactory struct {
	name string
	open func(t *testing.T, now func() time.Time) entryLister
}

func newTestSQLStore(t *testing.T, now func() time.Time) *SQLStore {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "kvpub.db"), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	s := NewSQLStore(database)
	if now != nil {
		s.now = now
	}
	return s
}

func newTestBoltStore(t *testing.T, now func() time.Time) *BoltStore {
	t.Helper()
	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "kvpub.bolt"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	if now != nil {
		s.now = now
	}
	return s
}

func newTestMemoryStore(t *testing.T, now func() time.Time, opts MemoryOptions) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(opts)
	if now != nil {
		s.now = now
	}
	return s
}

func factories() []storeFactory {
	return []storeFactory{
		{
			name: "memory",
			open: func(t *testing.T, now func() time.Time) entryLister {
				// Large cap so the full-clear policy stays out of the shared contract.
				return newTestMemoryStore(t, now, MemoryOptions{Cap: 1 << 20})
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T, now func() time.Time) entryLister {
				return newTestSQLStore(t, now)
			},
		},
		{
			name: "bolt",
			open: func(t *testing.T, now func() time.Time) entryLister {
				return newTestBoltStore(t, now)
			},
		},
	}
}

func TestStoreContract(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			t.Run("find missing key", func(t *testing.T) {
				ctx := context.Background()
				s := f.open(t, nil)

				v, ok, err := s.Find(ctx, "nope")
				require.NoError(t, err)
				assert.False(t, ok)
				assert.Empty(t, v)
			})

			t.Run("insert and find", func(t *testing.T) {
				ctx := context.Background()
				s := f.open(t, nil)

				require.NoError(t, s.Insert(ctx, "a", "1"))

				v, ok, err := s.Find(ctx, "a")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, "1", v)

				n, err := s.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 1, n)
			})

			t.Run("empty key is rejected", func(t *testing.T) {
				ctx := context.Background()
				s := f.open(t, nil)

				for name, write := range map[string]func() error{
					"insert": func() error { return s.Insert(ctx, "", "v") },
					"upsert": func() error { return s.Upsert(ctx, "", "v") },
				} {
					err := write()
					require.ErrorIs(t, err, kv.ErrKeyRequired, name)
					assert.NotErrorIs(t, err, kv.ErrStorageFailure, name)
				}

				_, ok, err := s.Find(ctx, "")
				require.NoError(t, err)
				assert.False(t, ok)

				n, err := s.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 0, n)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				ctx := context.Background()
				s := f.open(t, nil)

				require.NoError(t, s.Insert(ctx, "a", "1"))

				for i := 0; i < 2; i++ {
					require.NoError(t, s.Delete(ctx, "a"))

					_, ok, err := s.Find(ctx, "a")
					require.NoError(t, err)
					assert.False(t, ok, "delete %d", i+1)
				}

				n, err := s.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 0, n)
			})

			t.Run("delete then insert replaces", func(t *testing.T) {
				ctx := context.Background()
				s := f.open(t, nil)

				require.NoError(t, s.Insert(ctx, "a", "1"))
				require.NoError(t, s.Delete(ctx, "a"))
				require.NoError(t, s.Insert(ctx, "a", "2"))

				v, _, err := s.Find(ctx, "a")
				require.NoError(t, err)
				assert.Equal(t, "2", v)
			})

			t.Run("upsert replaces", func(t *testing.T) {
				ctx := context.Background()
				s := f.open(t, nil)

				require.NoError(t, s.Upsert(ctx, "a", "1"))
				require.NoError(t, s.Upsert(ctx, "a", "2"))

				v, ok, err := s.Find(ctx, "a")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, "2", v)

				n, err := s.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 1, n)
			})

			t.Run("upsert refreshes created_at", func(t *testing.T) {
				ctx := context.Background()
				s := f.open(t, newTestClock(time.Millisecond).Now)

				require.NoError(t, s.Upsert(ctx, "old", "1"))
				require.NoError(t, s.Upsert(ctx, "new", "1"))
				require.NoError(t, s.Upsert(ctx, "old", "2"))

				removed, err := s.EvictTo(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, 1, removed)

				v, ok, err := s.Find(ctx, "old")
				require.NoError(t, err)
				assert.True(t, ok, "rewritten key is the most recent entry")
				assert.Equal(t, "2", v)
			})

			t.Run("evict keeps most recent", func(t *testing.T) {
				ctx := context.Background()
				s := f.open(t, newTestClock(time.Microsecond).Now)

				for i := 0; i < 1000; i++ {
					require.NoError(t, s.Insert(ctx, fmt.Sprintf("key-%04d", i), "v"))
				}

				before, err := s.Entries(ctx)
				require.NoError(t, err)
				require.Len(t, before, 1000)

				removed, err := s.EvictTo(ctx, 100)
				require.NoError(t, err)
				assert.Equal(t, 900, removed)

				n, err := s.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 100, n)

				after, err := s.Entries(ctx)
				require.NoError(t, err)
				require.Len(t, after, 100)

				oldestKept := after[len(after)-1].CreatedAt
				for _, e := range before[100:] {
					assert.False(t, e.CreatedAt.After(oldestKept), "evicted %s is newer than a survivor", e.Key)
					_, ok, err := s.Find(ctx, e.Key)
					require.NoError(t, err)
					assert.False(t, ok, "%s should be evicted", e.Key)
				}
				assert.Equal(t, "key-0999", after[0].Key)
				assert.Equal(t, "key-0900", after[99].Key)
			})

			t.Run("evict breaks ties by key", func(t *testing.T) {
				ctx := context.Background()
				s := f.open(t, newTestClock(0).Now)

				for _, k := range []string{"b", "c", "a", "d"} {
					require.NoError(t, s.Insert(ctx, k, k))
				}

				removed, err := s.EvictTo(ctx, 2)
				require.NoError(t, err)
				assert.Equal(t, 2, removed)

				after, err := s.Entries(ctx)
				require.NoError(t, err)
				require.Len(t, after, 2)
				assert.Equal(t, "d", after[0].Key)
				assert.Equal(t, "c", after[1].Key)
			})

			t.Run("evict below retain is a no-op", func(t *testing.T) {
				ctx := context.Background()
				s := f.open(t, nil)

				require.NoError(t, s.Insert(ctx, "a", "1"))

				removed, err := s.EvictTo(ctx, 100)
				require.NoError(t, err)
				assert.Equal(t, 0, removed)

				n, err := s.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 1, n)
			})

			t.Run("evict to zero empties the store", func(t *testing.T) {
				ctx := context.Background()
				s := f.open(t, nil)

				require.NoError(t, s.Insert(ctx, "a", "1"))
				require.NoError(t, s.Insert(ctx, "b", "2"))

				removed, err := s.EvictTo(ctx, 0)
				require.NoError(t, err)
				assert.Equal(t, 2, removed)

				n, err := s.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 0, n)
			})

			t.Run("concurrent upserts keep one entry", func(t *testing.T) {
				ctx := context.Background()
				s := f.open(t, nil)

				var wg sync.WaitGroup
				for w := 0; w < 8; w++ {
					wg.Add(1)
					go func(w int) {
						defer wg.Done()
						for i := 0; i < 10; i++ {
							assert.NoError(t, s.Upsert(ctx, "shared", fmt.Sprintf("%d-%d", w, i)))
						}
					}(w)
				}
				wg.Wait()

				n, err := s.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 1, n)
			})
		})
	}
}
