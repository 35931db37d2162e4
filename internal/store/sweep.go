package store

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

// RunSweeper purges expired keys every interval until ctx is done.
// Sweep failures are logged and retried on the next tick.
func RunSweeper(ctx context.Context, s Sweeper, clock quartz.Clock, every time.Duration, logger zerolog.Logger) error {
	if every <= 0 {
		return nil
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	log := logger.With().Str("component", "sweeper").Logger()
	ticker := clock.NewTicker(every, "sweeper")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("sweep expired keys")
				continue
			}
			if n > 0 {
				log.Debug().Int("removed", n).Msg("swept expired keys")
			}
		}
	}
}
