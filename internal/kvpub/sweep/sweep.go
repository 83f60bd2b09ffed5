// Package sweep runs the retention check on a timer, independent of writes.
package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Enforcer is satisfied by *kvpub.Gateway.
type Enforcer interface {
	Enforce(ctx context.Context) (int, error)
}

// Start runs the retention check every interval until ctx is cancelled.
// A non-positive interval disables the sweep and returns immediately.
func Start(ctx context.Context, e Enforcer, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := e.Enforce(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("retention sweep failed")
				continue
			}
			if removed > 0 {
				log.Debug().Int("removed", removed).Msg("retention sweep")
			}
		}
	}
}
