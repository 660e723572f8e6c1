package transport

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/nicktill/renderscope/pkg/record"
)

// Breaker stops calling the wrapped transport once the service looks down,
// so a producer does not spend its rate budget on doomed requests. While
// open, Send fails fast with a *NetworkError wrapping gobreaker.ErrOpenState.
type Breaker struct {
	next Transport
	cb   *gobreaker.CircuitBreaker
}

// BreakerSettings configures a Breaker
type BreakerSettings struct {
	// Failures is the number of consecutive outage errors that open the breaker (default 5)
	Failures uint32
	// OpenFor is how long the breaker stays open before probing again (default 30s)
	OpenFor time.Duration
	Logger  *zap.Logger
}

// NewBreaker wraps next. Only outages count as failures: requests that
// never got a response or got a 5xx. A 4xx means the service is up and
// rejected that one record.
func NewBreaker(next Transport, s BreakerSettings) *Breaker {
	if s.Failures == 0 {
		s.Failures = 5
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 30 * time.Second
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        LogPerformancePath,
			MaxRequests: 1,
			Timeout:     s.OpenFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= s.Failures
			},
			IsSuccessful: func(err error) bool {
				return !isOutage(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Info("ingestion circuit breaker state changed",
					zap.String("endpoint", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

// Send forwards rec unless the breaker is open.
func (b *Breaker) Send(ctx context.Context, rec record.PerformanceRecord) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, rec)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &NetworkError{Endpoint: LogPerformancePath, Err: err}
	}
	return err
}

// Unwrap returns the wrapped transport
func (b *Breaker) Unwrap() Transport {
	return b.next
}

// State returns the breaker state ("closed", "open" or "half-open").
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func isOutage(err error) bool {
	if err == nil {
		return false
	}
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		return false
	}
	return netErr.StatusCode == 0 || netErr.StatusCode >= 500
}
