package scorer

import (
	"context"
	"errors"
	"time"

	"github.com/nicktill/renderscope/pkg/record"
)

// Retrying retries failed Score calls with exponential backoff. Timeouts and
// cancellations are returned at once; a slow model will not get faster.
type Retrying struct {
	Scorer   Scorer
	Attempts int           // total attempts, values < 1 mean 1
	Backoff  time.Duration // delay before the second attempt, doubled after each failure
}

// Score calls the wrapped scorer until it succeeds or attempts run out.
func (r *Retrying) Score(ctx context.Context, features record.FeatureVector) (string, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := r.Backoff
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", lastErr
			}
			delay *= 2
		}

		suggestion, err := r.Scorer.Score(ctx, features)
		if err == nil {
			return suggestion, nil
		}
		lastErr = err

		if errors.Is(err, ErrTimeout) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return "", err
		}
	}
	return "", lastErr
}
