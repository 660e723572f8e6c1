package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nicktill/renderscope/pkg/config"
	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/sdk"
)

type render struct {
	id    string
	phase record.Phase
}

type recorder struct {
	mu      sync.Mutex
	renders []render
}

func (r *recorder) OnRender(id string, phase record.Phase, actual, base, start, commit float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = append(r.renders, render{id, phase})
}

func (r *recorder) Stats() sdk.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sdk.Stats{Sent: int64(len(r.renders))}
}

func (r *recorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rr := range r.renders {
		if rr.id == id {
			n++
		}
	}
	return n
}

func TestApp_MountsBothComponents(t *testing.T) {
	rec := &recorder{}
	newApp(rec, 10)

	assert.Equal(t, []render{
		{fastComponent, record.PhaseMount},
		{expensiveComponent, record.PhaseMount},
	}, rec.renders)
}

func TestApp_MemoizedComponentSkipsUnrelatedUpdates(t *testing.T) {
	rec := &recorder{}
	a := newApp(rec, 10)

	a.IncrementOtherCount()
	a.IncrementOtherCount()
	assert.Equal(t, 1, rec.count(fastComponent))
	assert.Equal(t, 3, rec.count(expensiveComponent))

	a.IncrementCount()
	assert.Equal(t, 2, rec.count(fastComponent))
	assert.Equal(t, 4, rec.count(expensiveComponent))
	assert.Equal(t, render{fastComponent, record.PhaseUpdate}, rec.renders[len(rec.renders)-2])
}

func TestApp_ReportedRecordsAreValid(t *testing.T) {
	var got []record.PerformanceRecord
	var mu sync.Mutex
	reporter := reporterFunc(func(rec record.PerformanceRecord) {
		mu.Lock()
		got = append(got, rec)
		mu.Unlock()
	})

	a := newApp(reporter, 1000)
	a.IncrementCount()

	require.Len(t, got, 3)
	for _, rec := range got {
		assert.NoError(t, record.Validate(rec))
		assert.GreaterOrEqual(t, rec.CommitTime, rec.StartTime)
	}
	assert.Equal(t, "memoization", got[0].OptimizationApplied)
	assert.Equal(t, record.NoOptimization, got[1].OptimizationApplied)
}

// reporterFunc builds records the way sdk.Reporter.OnRender does
type reporterFunc func(record.PerformanceRecord)

func (f reporterFunc) OnRender(id string, phase record.Phase, actual, base, start, commit float64) {
	opt := optimizations[id]
	if opt == "" {
		opt = record.NoOptimization
	}
	f(record.PerformanceRecord{
		Component: id, Phase: phase,
		ActualDuration: actual, BaseDuration: base,
		StartTime: start, CommitTime: commit, RenderTime: actual,
		StateUpdates: 1, PropsReceived: 1, PropsUsed: record.Int64(1),
		OptimizationApplied: opt,
	})
}

func TestHandlers(t *testing.T) {
	rec := &recorder{}
	a := newApp(rec, 10)
	mux := http.NewServeMux()
	setupHandlers(mux, a, rec)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/count", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"value":1}`, w.Body.String())

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/other-count", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	var state map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, 1.0, state["count"])
	assert.Equal(t, 0.0, state["otherCount"])

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Contains(t, w.Body.String(), `"sent":4`)
}

func TestTrafficSimulator_Clicks(t *testing.T) {
	rec := &recorder{}
	a := newApp(rec, 10)
	mux := http.NewServeMux()
	setupHandlers(mux, a, rec)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		startTrafficSimulator(ctx, srv.URL, 10*time.Millisecond, zaptest.NewLogger(t))
		close(done)
	}()

	require.Eventually(t, func() bool {
		count, other, _ := a.Snapshot()
		return count >= 2 && other >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestLoadConfig(t *testing.T) {
	cfg := loadConfig(config.FromMap(zaptest.NewLogger(t), map[string]string{
		"RENDERSCOPE_EXAMPLE_INTERVAL": "500ms",
	}))
	assert.Equal(t, config.DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, ":3001", cfg.Addr)
	assert.Equal(t, 500*time.Millisecond, cfg.Interval)
	assert.Equal(t, 20_000_000, cfg.Workload)
}
