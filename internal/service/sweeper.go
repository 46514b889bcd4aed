package service

import (
	"context"
	"log/slog"
	"time"
)

// ExpirySweeper is the operation a Sweeper drives.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically expires games whose expiry has passed
type Sweeper struct {
	games  ExpirySweeper
	logger *slog.Logger
	now    func() time.Time
}

// NewSweeper creates a sweeper using the wall clock
func NewSweeper(games ExpirySweeper, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		games:  games,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce performs a single sweep and returns the number of games expired
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.games.SweepExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired games", "count", n)
	} else {
		s.logger.Debug("sweep found no expired games")
	}
	return n, nil
}

// Run sweeps immediately and then every interval until ctx is done. Sweep
// failures are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
