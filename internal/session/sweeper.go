package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSweepInterval is how often the sweeper checks voting deadlines.
const DefaultSweepInterval = time.Second

// Sweeper closes expired polls on a fixed interval so a poll ends even if
// no client sends another request.
type Sweeper struct {
	registry *Registry
	clock    Clock
	interval time.Duration
	log      *logrus.Entry
}

// NewSweeper returns a sweeper over registry. interval <= 0 uses DefaultSweepInterval.
func NewSweeper(registry *Registry, clock Clock, interval time.Duration, logger *logrus.Logger) *Sweeper {
	if clock == nil {
		clock = SystemClock()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sweeper{
		registry: registry,
		clock:    clock,
		interval: interval,
		log:      logger.WithField("component", "expiry_sweeper"),
	}
}

// Run sweeps until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	sw.log.WithField("interval", sw.interval.String()).Info("Expiry sweeper running")

	for {
		select {
		case <-ctx.Done():
			sw.log.Info("Expiry sweeper stopped")
			return nil
		case <-ticker.C:
			sw.Sweep()
		}
	}
}

// Sweep ticks every voting session once and returns how many polls it closed.
func (sw *Sweeper) Sweep() int {
	now := sw.clock.Now()
	closed := 0
	for _, s := range sw.registry.Active() {
		if !s.Voting() {
			continue
		}
		if s.Tick(now) {
			closed++
		}
	}
	if closed > 0 {
		sw.log.WithField("closed", closed).Debug("Expired polls closed")
	}
	return closed
}
