package repository

import (
	"context"
	"time"

	portal "github.com/goliatone/go-portal"
)

// Purger deletes expired session records.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// DefaultSweepInterval is how often expired sessions are purged.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically purges expired sessions until its context ends.
type Sweeper struct {
	store    Purger
	interval time.Duration
	logger   portal.Logger
}

func NewSweeper(store Purger, interval time.Duration, logger portal.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = portal.DefaultLogger()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled. It sweeps once on start.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.store.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("session sweep failed", "error", err)
		}
		return
	}
	if n > 0 {
		s.logger.Debug("purged expired sessions", "count", n)
	}
}
