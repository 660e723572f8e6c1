package httpx

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/renderscope/pkg/record"
)

type render struct {
	id     string
	phase  record.Phase
	actual float64
	base   float64
	start  float64
	commit float64
}

// mockReporter records every render for assertions
type mockReporter struct {
	mu      sync.Mutex
	renders []render
}

func (m *mockReporter) OnRender(id string, phase record.Phase, actual, base, start, commit float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders = append(m.renders, render{id, phase, actual, base, start, commit})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func TestMiddleware_BasicRequest(t *testing.T) {
	reporter := &mockReporter{}
	wrapped := Middleware(reporter)(okHandler())

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/api/users", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	require.Len(t, reporter.renders, 1)
	r := reporter.renders[0]
	assert.Equal(t, "GET /api/users", r.id)
	assert.Equal(t, record.PhaseMount, r.phase)
	assert.GreaterOrEqual(t, r.actual, 0.0)
	assert.Equal(t, r.actual, r.base)
	assert.GreaterOrEqual(t, r.commit, r.start)
}

func TestMiddleware_MountThenUpdate(t *testing.T) {
	reporter := &mockReporter{}
	wrapped := Middleware(reporter)(okHandler())

	for i := 0; i < 5; i++ {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/users/"+string(rune('1'+i)), nil))
	}

	require.Len(t, reporter.renders, 5)
	assert.Equal(t, record.PhaseMount, reporter.renders[0].phase)
	for _, r := range reporter.renders[1:] {
		assert.Equal(t, record.PhaseUpdate, r.phase)
		assert.Equal(t, "GET /api/users/{id}", r.id)
		assert.LessOrEqual(t, r.base, r.actual)
	}
}

func TestMiddleware_DifferentRoutes(t *testing.T) {
	reporter := &mockReporter{}
	wrapped := Middleware(reporter)(okHandler())

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/users", nil))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/users", nil))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/posts", nil))

	require.Len(t, reporter.renders, 3)
	for _, r := range reporter.renders {
		assert.Equal(t, record.PhaseMount, r.phase, r.id)
	}
}

func TestMiddleware_ErrorStatusStillReported(t *testing.T) {
	reporter := &mockReporter{}
	wrapped := Middleware(reporter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/fail", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, reporter.renders, 1)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/users", "/api/users"},
		{"/api/users/123", "/api/users/{id}"},
		{"/posts/456/comments", "/posts/{id}/comments"},
		{"/api/users/2b1c9a2e-7d1f-4c1a-9a53-5f8e2d7c4b10", "/api/users/{id}"},
		{"/api/users/abc", "/api/users/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}
