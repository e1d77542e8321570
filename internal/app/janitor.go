package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/domain"
)

// Janitor periodically evicts sessions that have had no devices for TTL.
type Janitor struct {
	Interval time.Duration
	TTL      time.Duration
	Sweep    func(idle time.Duration) []domain.SessionID
}

// Run blocks until ctx is done.
func (j Janitor) Run(ctx context.Context) {
	if j.Interval <= 0 || j.TTL <= 0 || j.Sweep == nil {
		log.Info().Str("module", "app.janitor").Msg("idle sweeping disabled")
		return
	}
	t := time.NewTicker(j.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if removed := j.Sweep(j.TTL); len(removed) > 0 {
				log.Debug().Str("module", "app.janitor").Int("removed", len(removed)).Msg("sweep")
			}
		}
	}
}
