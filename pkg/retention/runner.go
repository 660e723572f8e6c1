package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/renderscope/pkg/storage"
)

// Runner applies one policy to one store
type Runner struct {
	store  storage.Store
	policy storage.RetentionPolicy
	logger *zap.Logger
}

// New creates a runner. A nil policy means storage.KeepAll.
func New(store storage.Store, policy storage.RetentionPolicy, logger *zap.Logger) *Runner {
	if policy == nil {
		policy = storage.KeepAll
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{store: store, policy: policy, logger: logger}
}

// PolicyFor maps the configured record limit to a policy. maxRecords <= 0
// keeps everything.
func PolicyFor(maxRecords int64) storage.RetentionPolicy {
	if maxRecords <= 0 {
		return storage.KeepAll
	}
	return storage.KeepLast(maxRecords)
}

// Policy returns the policy this runner applies
func (r *Runner) Policy() storage.RetentionPolicy {
	return r.policy
}

// Run performs a single retention pass and returns the number of records removed
func (r *Runner) Run(ctx context.Context) (int, error) {
	start := time.Now()
	removed, err := r.store.ApplyRetention(ctx, r.policy)
	if err != nil {
		return 0, fmt.Errorf("retention %s: %w", r.policy.Name(), err)
	}

	r.logger.Info("retention pass completed",
		zap.String("policy", r.policy.Name()),
		zap.Int("removed", removed),
		zap.Duration("took", time.Since(start).Round(time.Millisecond)))
	return removed, nil
}
