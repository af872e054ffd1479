package syncer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler triggers SyncAll on a fixed cadence. Manual triggers racing
// with a tick are harmless: the orchestrator's single-flight lock turns
// the loser into a skipped result.
type Scheduler struct {
	orch     *Orchestrator
	interval time.Duration
	log      zerolog.Logger
}

// NewScheduler builds a scheduler over an orchestrator.
func NewScheduler(orch *Orchestrator, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{
		orch:     orch,
		interval: interval,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Run syncs once immediately, then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("sync scheduler starting")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.orch.SyncAll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sync scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.orch.SyncAll(ctx)
		}
	}
}
