package stores

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ValueCeiling(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(MemoryOptions{})

	require.NoError(t, s.Insert(ctx, "keep", "x"))
	require.NoError(t, s.Insert(ctx, "big", strings.Repeat("x", DefaultMemoryValueCeiling)))

	_, ok, err := s.Find(ctx, "big")
	require.NoError(t, err)
	assert.False(t, ok, "value at the ceiling should be dropped")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Insert(ctx, "fits", strings.Repeat("x", DefaultMemoryValueCeiling-1)))
	_, ok, err = s.Find(ctx, "fits")
	require.NoError(t, err)
	assert.True(t, ok, "value below the ceiling should be stored")
}

func TestMemoryStore_UpsertOversizedDropsOldValue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(MemoryOptions{ValueCeiling: 4})

	require.NoError(t, s.Upsert(ctx, "k", "abc"))
	require.NoError(t, s.Upsert(ctx, "k", "abcd"))

	_, ok, err := s.Find(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_CapClearsAll(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(MemoryOptions{})

	for i := 0; i < DefaultMemoryCap; i++ {
		require.NoError(t, s.Insert(ctx, fmt.Sprintf("k%d", i), "v"))
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, DefaultMemoryCap, n)

	require.NoError(t, s.Insert(ctx, "next", "v"))

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, ok, err := s.Find(ctx, "next")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok, err = s.Find(ctx, "k999")
	require.NoError(t, err)
	assert.False(t, ok, "most recent entries are cleared along with the oldest")
}

func TestMemoryStore_UpsertExistingKeyAtCap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(MemoryOptions{Cap: 3})

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Insert(ctx, k, "v"))
	}

	// Replacing a key frees its slot before the cap check.
	require.NoError(t, s.Upsert(ctx, "a", "w"))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMemoryStore_Close(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(MemoryOptions{})

	require.NoError(t, s.Insert(ctx, "a", "1"))
	require.NoError(t, s.Close())

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
