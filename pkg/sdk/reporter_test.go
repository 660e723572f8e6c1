package sdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/sdk/transport"
)

// fakeTransport collects sent records; Send blocks while gate is held
type fakeTransport struct {
	mu      sync.Mutex
	records []record.PerformanceRecord
	err     error
	gate    chan struct{}
}

func (f *fakeTransport) Send(ctx context.Context, rec record.PerformanceRecord) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeTransport) sent() []record.PerformanceRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]record.PerformanceRecord(nil), f.records...)
}

func TestReporter_OnRenderBuildsRecord(t *testing.T) {
	ft := &fakeTransport{}
	r, err := New(Config{
		Transport:     ft,
		Optimizations: map[string]string{"FastComponent": "memoization"},
	})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	r.OnRender("FastComponent", record.PhaseUpdate, 0.4, 0.3, 100, 100.5)
	r.OnRender("ExpensiveComponent", record.PhaseMount, 52.1, 50, 101, 153.2)

	require.NoError(t, r.Stop(context.Background()))

	sent := ft.sent()
	require.Len(t, sent, 2)

	fast := sent[0]
	assert.Equal(t, "FastComponent", fast.Component)
	assert.Equal(t, record.PhaseUpdate, fast.Phase)
	assert.Equal(t, 0.4, fast.RenderTime, "renderTime repeats actualDuration")
	assert.Equal(t, int64(1), fast.StateUpdates)
	assert.Equal(t, int64(1), fast.PropsReceived)
	require.NotNil(t, fast.PropsUsed)
	assert.Equal(t, int64(1), *fast.PropsUsed)
	assert.Equal(t, "memoization", fast.OptimizationApplied)

	assert.Equal(t, record.NoOptimization, sent[1].OptimizationApplied)

	stats := r.Stats()
	assert.Equal(t, int64(2), stats.Queued)
	assert.Equal(t, int64(2), stats.Sent)
	assert.Zero(t, stats.Dropped)
}

func TestReporter_DropsWhenQueueFull(t *testing.T) {
	ft := &fakeTransport{gate: make(chan struct{})}
	r, err := New(Config{Transport: ft, QueueSize: 2})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	accepted := 0
	for i := 0; i < 20; i++ {
		if r.Report(record.PerformanceRecord{Component: "A", ActualDuration: float64(i)}) {
			accepted++
		}
	}

	// At most one record in flight plus a full queue
	assert.LessOrEqual(t, accepted, 3)
	assert.Equal(t, int64(20-accepted), r.Stats().Dropped)

	close(ft.gate)
	require.NoError(t, r.Stop(context.Background()))
	assert.Len(t, ft.sent(), accepted)
}

func TestReporter_NetworkErrorsAreSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"storage append failed"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	r, err := New(Config{ServerURL: server.URL, Logger: zap.New(core)})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	r.OnRender("A", record.PhaseUpdate, 1, 1, 0, 1)
	require.NoError(t, r.Stop(context.Background()))

	assert.Equal(t, int64(1), r.Stats().Failed)
	entries := logs.FilterMessage("failed to send performance record").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "A", entries[0].ContextMap()["component"])
}

func TestReporter_RejectsInvalidRecords(t *testing.T) {
	ft := &fakeTransport{}
	r, err := New(Config{Transport: ft})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	assert.False(t, r.Report(record.PerformanceRecord{Component: ""}))
	assert.False(t, r.Report(record.PerformanceRecord{Component: "A", ActualDuration: -1}))

	require.NoError(t, r.Stop(context.Background()))
	assert.Empty(t, ft.sent())
	assert.Equal(t, int64(2), r.Stats().Dropped)
}

func TestReporter_Lifecycle(t *testing.T) {
	r, err := New(Config{Transport: &fakeTransport{}})
	require.NoError(t, err)

	require.NoError(t, r.Start(context.Background()))
	assert.Error(t, r.Start(context.Background()), "double start")

	require.NoError(t, r.Stop(context.Background()))
	require.NoError(t, r.Stop(context.Background()), "stop is idempotent")

	assert.False(t, r.Report(record.PerformanceRecord{Component: "A"}), "reports after stop are dropped")
	assert.True(t, errors.Is(r.Start(context.Background()), ErrStopped))
}

func TestReporter_StopHonoursDeadline(t *testing.T) {
	ft := &fakeTransport{gate: make(chan struct{})}
	r, err := New(Config{Transport: ft})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	r.Report(record.PerformanceRecord{Component: "A"})
	r.Report(record.PerformanceRecord{Component: "B"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = r.Stop(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_DefaultsAndValidation(t *testing.T) {
	r, err := New(Config{})
	require.NoError(t, err)
	breaker, ok := r.transport.(*transport.Breaker)
	require.True(t, ok)
	assert.Equal(t, "closed", breaker.State())
	assert.Equal(t, "http://localhost:5001", breaker.Unwrap().(*transport.HTTPTransport).BaseURL())
	assert.Equal(t, 1024, cap(r.queue))

	_, err = New(Config{ServerURL: "localhost:5001"})
	assert.Error(t, err)
}
