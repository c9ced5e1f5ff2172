package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DripRunner is the unit of work the scheduler repeats.
type DripRunner interface {
	Run(ctx context.Context) (*DripRunResult, error)
}

// DripScheduler triggers drip runs in-process on a fixed interval. The
// cron endpoint remains available; the claim in Run keeps both safe.
type DripScheduler struct {
	runner   DripRunner
	interval time.Duration
	logger   *zap.Logger
}

func NewDripScheduler(runner DripRunner, interval time.Duration, logger *zap.Logger) *DripScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DripScheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

func (s *DripScheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *DripScheduler) runOnce(ctx context.Context) {
	result, err := s.runner.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled drip run failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled drip run finished",
		zap.String("status", string(result.Status)),
		zap.Int("processed", result.Processed()),
	)
}
