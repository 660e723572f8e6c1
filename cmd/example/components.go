package main

import (
	"math"
	"sync"
	"time"

	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/sdk/httpx"
)

// Component names reported by the demo app.
const (
	fastComponent      = "FastComponent"
	expensiveComponent = "ExpensiveComponent"
)

// optimizations mirrors the techniques applied in the demo app.
var optimizations = map[string]string{
	fastComponent: "memoization",
}

// app is a tiny component tree with two counters. Every state change
// re-renders the tree; FastComponent is memoized on its prop while
// ExpensiveComponent recomputes on every render.
type app struct {
	mu         sync.Mutex
	reporter   httpx.RenderReporter
	workload   int
	origin     time.Time
	count      int
	otherCount int

	fast      *profiled
	expensive *profiled

	memoCount   int
	memoPrimed  bool
	lastCompute float64
}

// profiled tracks the per-component profiler state.
type profiled struct {
	id      string
	mounted bool
	base    float64
}

func newApp(reporter httpx.RenderReporter, workload int) *app {
	a := &app{
		reporter:  reporter,
		workload:  workload,
		origin:    time.Now(),
		fast:      &profiled{id: fastComponent},
		expensive: &profiled{id: expensiveComponent},
	}
	a.mu.Lock()
	a.renderLocked()
	a.mu.Unlock()
	return a
}

// IncrementCount bumps the counter FastComponent depends on.
func (a *app) IncrementCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count++
	a.renderLocked()
	return a.count
}

// IncrementOtherCount bumps the counter ExpensiveComponent depends on.
func (a *app) IncrementOtherCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.otherCount++
	a.renderLocked()
	return a.otherCount
}

// Snapshot returns both counters and the last computed value.
func (a *app) Snapshot() (count, otherCount int, computed float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count, a.otherCount, a.lastCompute
}

func (a *app) renderLocked() {
	if !a.memoPrimed || a.memoCount != a.count {
		a.profile(a.fast, func() {
			a.memoCount = a.count
			a.memoPrimed = true
		})
	}

	a.profile(a.expensive, func() {
		a.lastCompute = expensiveComputation(a.workload)
	})
}

func (a *app) profile(p *profiled, render func()) {
	phase := record.PhaseUpdate
	if !p.mounted {
		phase = record.PhaseMount
		p.mounted = true
	}

	start := time.Now()
	render()
	actual := millis(time.Since(start))

	if p.base == 0 || actual < p.base {
		p.base = actual
	}

	startTime := millis(start.Sub(a.origin))
	a.reporter.OnRender(p.id, phase, actual, p.base, startTime, startTime+actual)
}

// expensiveComputation is deliberately wasteful render work.
func expensiveComputation(n int) float64 {
	var result float64
	for i := 0; i < n; i++ {
		result += math.Sqrt(float64(i))
	}
	return result
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
