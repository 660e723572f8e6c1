package sdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nicktill/renderscope/pkg/config"
	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/sdk/transport"
)

// ErrStopped is returned by Start on a reporter that was already stopped.
var ErrStopped = errors.New("reporter stopped")

// Config holds configuration for the Reporter
type Config struct {
	// ServerURL of the ingestion service (default http://localhost:5001)
	ServerURL string

	// Optimizations labels records per component; components not listed
	// report record.NoOptimization.
	Optimizations map[string]string

	// QueueSize bounds pending records; overflow is dropped (default 1024)
	QueueSize int

	// RatePerSecond and Burst cap delivery (defaults 200 and 50)
	RatePerSecond float64
	Burst         int

	// BreakerFailures consecutive outages stop delivery for BreakerOpenFor
	// before one probe is let through (defaults 5 and 30s). Applies to the
	// default HTTP transport only.
	BreakerFailures uint32
	BreakerOpenFor  time.Duration

	// Transport overrides the HTTP transport, mainly for tests
	Transport transport.Transport

	Logger *zap.Logger
}

// Stats counts what happened to reported records
type Stats struct {
	Queued  int64 `json:"queued"`
	Sent    int64 `json:"sent"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

// Reporter delivers render measurements to the ingestion service in the
// background. Reporting never blocks and never returns delivery errors to the
// instrumented code.
type Reporter struct {
	config    Config
	transport transport.Transport
	limiter   *rate.Limiter
	logger    *zap.Logger

	queue chan record.PerformanceRecord
	done  chan struct{}

	mu      sync.RWMutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc

	queued  atomic.Int64
	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// New creates a new Reporter
func New(cfg Config) (*Reporter, error) {
	if cfg.ServerURL == "" {
		cfg.ServerURL = config.DefaultServerURL
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = config.SDKQueueSize
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = config.SDKRatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = config.SDKRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	trans := cfg.Transport
	if trans == nil {
		httpTransport, err := transport.NewHTTP(cfg.ServerURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		trans = transport.NewBreaker(httpTransport, transport.BreakerSettings{
			Failures: cfg.BreakerFailures,
			OpenFor:  cfg.BreakerOpenFor,
			Logger:   cfg.Logger,
		})
	}

	return &Reporter{
		config:    cfg,
		transport: trans,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:    cfg.Logger,
		queue:     make(chan record.PerformanceRecord, cfg.QueueSize),
		done:      make(chan struct{}),
	}, nil
}

// Start begins background delivery. Cancelling ctx abandons pending records.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}
	if r.started {
		return fmt.Errorf("reporter already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.started = true

	go r.deliverLoop()
	return nil
}

// Stop stops accepting records and waits until the queue is delivered or ctx ends.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	started := r.started
	close(r.queue)
	r.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-r.done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-r.done
		return fmt.Errorf("failed to flush records: %w", ctx.Err())
	}
}

// OnRender reports one commit of a profiled component. Its arguments mirror a
// UI profiler callback; renderTime repeats actualDuration and the per-render
// counters default to one state update and one fully used prop.
func (r *Reporter) OnRender(id string, phase record.Phase, actualDuration, baseDuration, startTime, commitTime float64) {
	optimization := r.config.Optimizations[id]
	if optimization == "" {
		optimization = record.NoOptimization
	}

	r.Report(record.PerformanceRecord{
		Component:           id,
		Phase:               phase,
		ActualDuration:      actualDuration,
		BaseDuration:        baseDuration,
		StartTime:           startTime,
		CommitTime:          commitTime,
		RenderTime:          actualDuration,
		StateUpdates:        1,
		PropsReceived:       1,
		PropsUsed:           record.Int64(1),
		OptimizationApplied: optimization,
	})
}

// Report queues rec for delivery and reports whether it was accepted. Invalid
// records and records arriving on a full queue are dropped.
func (r *Reporter) Report(rec record.PerformanceRecord) bool {
	if err := record.Validate(rec); err != nil {
		r.dropped.Add(1)
		r.logger.Warn("dropping invalid record", zap.Error(err))
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		r.dropped.Add(1)
		return false
	}

	select {
	case r.queue <- rec:
		r.queued.Add(1)
		return true
	default:
		r.dropped.Add(1)
		r.logger.Debug("queue full, dropping record", zap.String("component", rec.Component))
		return false
	}
}

// Stats returns delivery counters
func (r *Reporter) Stats() Stats {
	return Stats{
		Queued:  r.queued.Load(),
		Sent:    r.sent.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
	}
}

func (r *Reporter) deliverLoop() {
	defer close(r.done)

	for rec := range r.queue {
		r.deliver(rec)
	}
}

func (r *Reporter) deliver(rec record.PerformanceRecord) {
	if err := r.limiter.Wait(r.ctx); err != nil {
		r.dropped.Add(1)
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, config.SDKSendTimeout)
	defer cancel()

	if err := r.transport.Send(ctx, rec); err != nil {
		r.failed.Add(1)
		if errors.Is(err, transport.ErrNetwork) {
			r.logger.Warn("failed to send performance record",
				zap.String("component", rec.Component), zap.Error(err))
			return
		}
		r.logger.Error("failed to send performance record",
			zap.String("component", rec.Component), zap.Error(err))
		return
	}
	r.sent.Add(1)
}
