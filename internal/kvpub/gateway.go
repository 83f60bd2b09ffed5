// Package kvpub holds the application services that sit between the HTTP
// surface and the key/value store.
package kvpub

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"

	"github.com/hay-kot/kvpub/internal/core/kv"
	"github.com/hay-kot/kvpub/internal/core/validate"
)

// Status classifies the outcome of a read.
type Status int

const (
	Absent Status = iota
	Found
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Unavailable:
		return "unavailable"
	default:
		return "absent"
	}
}

// Lookup is the result of Gateway.Get.
type Lookup struct {
	Status Status
	Value  string
}

// GatewayOptions holds the write limits and the retention policy.
type GatewayOptions struct {
	MaxKeyLen   int // keys must be shorter than this, in bytes
	MaxValueLen int // values must be shorter than this, in bytes
	Threshold   int // entry count that triggers eviction
	Retain      int // entries kept by an eviction
}

// DefaultGatewayOptions returns the stock limits: keys under 1000 bytes,
// values under 4000 bytes, evict to 100 once 1000 entries are stored.
func DefaultGatewayOptions() GatewayOptions {
	return GatewayOptions{
		MaxKeyLen:   1000,
		MaxValueLen: 4000,
		Threshold:   1000,
		Retain:      100,
	}
}

// Gateway validates writes, enforces retention before mutating the store and
// classifies reads. It is safe for concurrent use when the store is.
type Gateway struct {
	store kv.Store
	opts  GatewayOptions
	log   zerolog.Logger
}

// NewGateway creates a gateway over store.
func NewGateway(store kv.Store, opts GatewayOptions, log zerolog.Logger) *Gateway {
	return &Gateway{
		store: store,
		opts:  opts,
		log:   log,
	}
}

// Get looks up key. Storage failures are logged and reported as Unavailable
// rather than Absent.
func (g *Gateway) Get(ctx context.Context, key string) Lookup {
	value, ok, err := g.store.Find(ctx, key)
	if err != nil {
		g.log.Error().Ctx(ctx).Err(err).Str("key", key).Msg("lookup failed")
		return Lookup{Status: Unavailable}
	}
	if !ok {
		return Lookup{Status: Absent}
	}
	return Lookup{Status: Found, Value: value}
}

// GetValue is Get collapsed to a plain optional: Unavailable reads as absent.
func (g *Gateway) GetValue(ctx context.Context, key string) (string, bool) {
	l := g.Get(ctx, key)
	return l.Value, l.Status == Found
}

// Add validates the pair, runs the retention check and replaces any existing
// entry for key.
func (g *Gateway) Add(ctx context.Context, key, value string) error {
	if err := g.Validate(key, value); err != nil {
		return err
	}

	if _, err := g.Enforce(ctx); err != nil {
		return &WriteError{Step: StepRetention, Err: err}
	}

	if err := g.store.Upsert(ctx, key, value); err != nil {
		return &WriteError{Step: StepUpsert, Err: err}
	}

	g.log.Debug().Ctx(ctx).Str("key", key).Int("value_len", len(value)).Msg("entry stored")
	return nil
}

// Validate rejects a blank key with ErrInvalidKey, then checks the key and
// value lengths. Length failures match ErrPayloadTooLarge. Both wrap the
// per-field criterio errors.
func (g *Gateway) Validate(key, value string) error {
	if err := criterio.Run("key", key, validate.NonBlank); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	err := criterio.ValidateStruct(
		criterio.Run("key", key, validate.ShorterThan(g.opts.MaxKeyLen)),
		criterio.Run("value", value, validate.ShorterThan(g.opts.MaxValueLen)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadTooLarge, err)
	}
	return nil
}

// Enforce evicts down to the retain count when the store holds at least
// the threshold, and returns how many entries were removed.
func (g *Gateway) Enforce(ctx context.Context) (int, error) {
	count, err := g.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count < g.opts.Threshold {
		return 0, nil
	}

	removed, err := g.store.EvictTo(ctx, g.opts.Retain)
	if err != nil {
		return 0, err
	}

	g.log.Info().Ctx(ctx).
		Int("count", count).
		Int("retain", g.opts.Retain).
		Int("removed", removed).
		Msg("evicted entries")
	return removed, nil
}

// EvictTo runs an eviction with an explicit retain count, bypassing the
// threshold.
func (g *Gateway) EvictTo(ctx context.Context, retain int) (int, error) {
	return g.store.EvictTo(ctx, retain)
}

// ErrListUnsupported is returned by List when the store cannot enumerate entries.
var ErrListUnsupported = errors.New("store does not support listing")

// List returns every entry, newest first.
func (g *Gateway) List(ctx context.Context) ([]kv.Entry, error) {
	l, ok := g.store.(kv.Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	return l.Entries(ctx)
}

// Count returns the number of stored entries.
func (g *Gateway) Count(ctx context.Context) (int, error) {
	return g.store.Count(ctx)
}
