package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Pinger is implemented by components that expose a liveness probe.
// HealthPing must return nil when the component is healthy.
type Pinger interface {
	HealthPing(ctx context.Context) error
}

// Checker is a component-level health checker polled by the service
// aggregate.
type Checker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// PingChecker polls a Pinger on an interval and caches the result.
type PingChecker struct {
	name    string
	pinger  Pinger
	timeout time.Duration
	healthy atomic.Int32
	log     zerolog.Logger
}

// NewPingChecker wraps a Pinger as a Checker. The probe gets its own
// timeout so a hung dependency cannot stall the poll loop.
func NewPingChecker(name string, p Pinger, timeout time.Duration, log zerolog.Logger) *PingChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PingChecker{
		name:    name,
		pinger:  p,
		timeout: timeout,
		log:     log.With().Str("component", "health").Str("target", name).Logger(),
	}
}

func (c *PingChecker) Name() string    { return c.name }
func (c *PingChecker) IsHealthy() bool { return c.healthy.Load() == 1 }

// Start probes immediately, then on every tick until ctx is cancelled.
func (c *PingChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.pinger.HealthPing(pctx)
		cancel()
		prev := c.healthy.Load()
		if err != nil {
			c.healthy.Store(0)
			if prev == 1 {
				c.log.Error().Err(err).Msg("dependency became unhealthy")
			}
			return
		}
		c.healthy.Store(1)
		if prev == 0 {
			c.log.Info().Msg("dependency healthy")
		}
	}

	probe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}

// ServiceChecker aggregates component checkers into one service flag.
type ServiceChecker struct {
	healthy atomic.Int32
	deps    []Checker
	log     zerolog.Logger
}

func NewServiceChecker(log zerolog.Logger, deps ...Checker) *ServiceChecker {
	s := &ServiceChecker{deps: deps, log: log.With().Str("component", "health").Logger()}
	s.healthy.Store(0)
	return s
}

// IsHealthy returns the cached service health.
func (s *ServiceChecker) IsHealthy() bool { return s.healthy.Load() == 1 }

// Components reports per-dependency health by name.
func (s *ServiceChecker) Components() map[string]bool {
	out := make(map[string]bool, len(s.deps))
	for _, c := range s.deps {
		out[c.Name()] = c.IsHealthy()
	}
	return out
}

// Start periodically folds dependency health into the service flag and
// logs transitions.
func (s *ServiceChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := int32(0)
	eval := func() {
		all := int32(1)
		for _, c := range s.deps {
			if !c.IsHealthy() {
				all = 0
			}
		}
		s.healthy.Store(all)
		if all != prev {
			if all == 1 {
				s.log.Info().Msg("service health: UP")
			} else {
				s.log.Error().Msg("service health: DOWN")
			}
			prev = all
		}
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
