package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/renderscope/pkg/config"
	"github.com/nicktill/renderscope/pkg/retention"
	"github.com/nicktill/renderscope/pkg/server/monitor"
	"github.com/nicktill/renderscope/pkg/storage"
)

// Retry schedule for a failed retention pass: 30s, 60s, 120s
const (
	retentionMaxRetries = 3
	retentionBaseDelay  = 30 * time.Second
)

// gcDiscardRatio reclaims a value log file once half of it is garbage
const gcDiscardRatio = 0.5

// GarbageCollector is implemented by stores that reclaim disk space in the
// background (badger).
type GarbageCollector interface {
	RunGC(discardRatio float64) (bool, error)
}

// RetentionTask runs the retention runner on a schedule and reports to the monitor.
type RetentionTask struct {
	Runner   *retention.Runner
	Monitor  *monitor.RetentionMonitor
	Logger   *zap.Logger
	Interval time.Duration

	// BaseDelay is the first retry delay, doubled per attempt
	BaseDelay time.Duration
}

// Run runs a pass immediately and then every Interval until ctx is done.
func (t *RetentionTask) Run(ctx context.Context) {
	interval := t.Interval
	if interval <= 0 {
		interval = config.RetentionInterval
	}

	t.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Logger.Debug("scheduled retention started")
			t.RunOnce(ctx)
		case <-ctx.Done():
			t.Logger.Info("stopping retention scheduler")
			return
		}
	}
}

// RunOnce applies the policy, retrying with exponential backoff on failure.
// It reports whether a pass eventually succeeded.
func (t *RetentionTask) RunOnce(ctx context.Context) bool {
	baseDelay := t.BaseDelay
	if baseDelay <= 0 {
		baseDelay = retentionBaseDelay
	}

	for attempt := 0; attempt <= retentionMaxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1))
			t.Logger.Info("retrying retention",
				zap.Duration("delay", delay),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", retentionMaxRetries+1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false
			}
		}

		removed, err := t.Runner.Run(ctx)
		if err == nil {
			t.Monitor.RecordSuccess(removed)
			return true
		}

		t.Monitor.RecordFailure(err)
		t.Logger.Error("retention failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if streak := t.Monitor.ConsecutiveErrors(); streak > monitor.MaxConsecutiveFailures {
			t.Logger.Warn("retention keeps failing", zap.Int("consecutive_errors", streak))
		}
	}

	t.Logger.Error("retention failed on every attempt, will retry on next schedule",
		zap.Int("attempts", retentionMaxRetries+1))
	return false
}

// RunBadgerGC runs value log garbage collection periodically to reclaim the
// disk space of records dropped by retention. Stores without a GC are skipped.
func RunBadgerGC(ctx context.Context, store storage.Store, logger *zap.Logger) {
	gc, ok := store.(GarbageCollector)
	if !ok {
		logger.Debug("storage has no value log, skipping GC")
		return
	}

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	logger.Info("badger GC scheduler started", zap.Duration("interval", config.BadgerGCInterval))

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			reclaimed, err := gc.RunGC(gcDiscardRatio)
			if err != nil {
				logger.Error("badger GC failed", zap.Error(err))
				continue
			}
			logger.Debug("badger GC completed",
				zap.Bool("reclaimed", reclaimed),
				zap.Duration("took", time.Since(start).Round(time.Millisecond)))
		case <-ctx.Done():
			logger.Info("stopping badger GC scheduler")
			return
		}
	}
}
