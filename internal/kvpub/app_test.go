package kvpub

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/kvpub/internal/core/config"
	"github.com/hay-kot/kvpub/internal/data/stores"
)

func TestOpenStore(t *testing.T) {
	tests := []struct {
		backend string
		want    any
	}{
		{backend: config.BackendMemory, want: &stores.MemoryStore{}},
		{backend: config.BackendSQLite, want: &stores.SQLStore{}},
		{backend: config.BackendBolt, want: &stores.BoltStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.DataDir = t.TempDir()
			cfg.Store.Backend = tt.backend

			store, err := OpenStore(&cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			assert.IsType(t, tt.want, store)

			app := NewApp(&cfg, store, zerolog.Nop())
			ctx := context.Background()
			require.NoError(t, app.Gateway.Add(ctx, "k", "v"))
			assert.Equal(t, Lookup{Status: Found, Value: "v"}, app.Gateway.Get(ctx, "k"))
		})
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Store.Backend = "postgres"

	store, err := OpenStore(&cfg)
	require.Error(t, err)
	assert.Nil(t, store)
}

func TestGatewayOptionsFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Limits.MaxKeyLen = 10
	cfg.Retention.Retain = 5

	opts := GatewayOptionsFrom(&cfg)
	assert.Equal(t, 10, opts.MaxKeyLen)
	assert.Equal(t, 4000, opts.MaxValueLen)
	assert.Equal(t, 1000, opts.Threshold)
	assert.Equal(t, 5, opts.Retain)
}
