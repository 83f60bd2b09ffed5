package kvpub

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hay-kot/kvpub/internal/core/config"
	"github.com/hay-kot/kvpub/internal/core/kv"
	"github.com/hay-kot/kvpub/internal/data/db"
	"github.com/hay-kot/kvpub/internal/data/stores"
)

// App is the central entry point for all kvpub operations.
// Commands and the HTTP server consume App instead of cherry-picking raw dependencies.
type App struct {
	Gateway *Gateway
	Store   kv.Store
	Config  *config.Config
}

// NewApp constructs an App from explicit dependencies.
func NewApp(cfg *config.Config, store kv.Store, log zerolog.Logger) *App {
	return &App{
		Gateway: NewGateway(store, GatewayOptionsFrom(cfg), log),
		Store:   store,
		Config:  cfg,
	}
}

// Close releases the underlying store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// GatewayOptionsFrom maps the limits and retention sections of cfg.
func GatewayOptionsFrom(cfg *config.Config) GatewayOptions {
	return GatewayOptions{
		MaxKeyLen:   cfg.Limits.MaxKeyLen,
		MaxValueLen: cfg.Limits.MaxValueLen,
		Threshold:   cfg.Retention.Threshold,
		Retain:      cfg.Retention.Retain,
	}
}

// OpenStore opens the backend selected by cfg.Store.Backend.
func OpenStore(cfg *config.Config) (kv.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return stores.NewMemoryStore(stores.MemoryOptions{
			Cap:          cfg.Memory.Cap,
			ValueCeiling: cfg.Memory.ValueCeiling,
		}), nil
	case config.BackendSQLite:
		opts := db.OpenOptions{
			MaxOpenConns:   cfg.Database.MaxOpenConns,
			MaxIdleConns:   cfg.Database.MaxIdleConns,
			BusyTimeout:    cfg.Database.BusyTimeout,
			AcquireTimeout: cfg.Database.AcquireTimeout,
		}
		s, err := stores.OpenSQLStore(cfg.DatabasePath(), opts, cfg.Database.RecoverCorrupt)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.BackendBolt:
		s, err := stores.OpenBoltStore(cfg.BoltPath(), cfg.Bolt.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
