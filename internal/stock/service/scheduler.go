package service

import (
	"context"
	"time"

	"github.com/restoflow/restoflow-backend/pkg/actor"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/restoflow/restoflow-backend/pkg/lock"
	"github.com/restoflow/restoflow-backend/pkg/logger"
)

const sweepLockKey = "stock:sweep"

// SweepScheduler runs the expiry and low stock sweep periodically.
// A shared lock keeps concurrent instances from sweeping at the same time.
type SweepScheduler struct {
	monitor    *Monitor
	aggregator *Aggregator
	locker     lock.Locker
	interval   time.Duration
	lockTTL    time.Duration
	logger     *logger.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewSweepScheduler creates a new sweep scheduler
func NewSweepScheduler(monitor *Monitor, aggregator *Aggregator, locker lock.Locker, interval, lockTTL time.Duration, log *logger.Logger) *SweepScheduler {
	if lockTTL <= 0 {
		lockTTL = interval
	}
	return &SweepScheduler{
		monitor:    monitor,
		aggregator: aggregator,
		locker:     locker,
		interval:   interval,
		lockTTL:    lockTTL,
		logger:     log.WithComponent("sweep"),
	}
}

// Start starts the scheduler in a background goroutine
func (s *SweepScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("sweep scheduler started")

		// Run an initial sweep immediately
		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("sweep scheduler stopped")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine and waits for a running cycle to finish
func (s *SweepScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *SweepScheduler) runCycle(ctx context.Context) {
	ctx = actor.WithActor(ctx, actor.SystemActor())
	if _, err := s.RunOnce(ctx); err != nil && !errors.IsRetryable(err) {
		s.logger.Error().Err(err).Msg("sweep failed")
	}
}

// RunOnce runs one sweep: reclassification, expiring soon alerts and low stock alerts.
// It fails with a conflict when another sweep holds the lock.
func (s *SweepScheduler) RunOnce(ctx context.Context) (*SweepResult, error) {
	lk, err := s.locker.Obtain(ctx, sweepLockKey, s.lockTTL)
	if errors.Is(err, lock.ErrNotObtained) {
		s.logger.Debug().Msg("sweep already running elsewhere, skipping")
		return nil, errors.Conflict("sweep already running")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to obtain sweep lock", 500)
	}
	defer func() {
		// The lock expires on its own if release fails.
		if err := lk.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release sweep lock")
		}
	}()

	start := time.Now()
	result, err := s.monitor.Sweep(ctx)
	if err != nil {
		return result, err
	}

	raised, resolved, err := s.aggregator.ScanLowStock(ctx)
	result.LowStock = raised
	result.ResolvedAlerts += resolved
	if err != nil {
		return result, err
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("reclassified", len(result.Reclassified)).
		Int("expiring_soon_alerts", result.ExpiringSoon).
		Int("low_stock_alerts", result.LowStock).
		Int("resolved_alerts", result.ResolvedAlerts).
		Msg("sweep completed")

	return result, nil
}
