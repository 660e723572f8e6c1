package httpx

import (
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/nicktill/renderscope/pkg/record"
)

var (
	numericID = regexp.MustCompile(`/\d+`)
	uuidID    = regexp.MustCompile(`/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
)

// RenderReporter receives one measurement per handled request.
// *sdk.Reporter implements it.
type RenderReporter interface {
	OnRender(id string, phase record.Phase, actualDuration, baseDuration, startTime, commitTime float64)
}

// Middleware returns HTTP middleware that reports each request as a render of
// its route. Timings are in milliseconds:
//   - actualDuration: time spent in the handler
//   - baseDuration: fastest handler time seen so far for the route
//   - startTime, commitTime: offsets since the middleware was created
//
// Usage:
//
//	reporter, _ := sdk.New(sdk.Config{...})
//	reporter.Start(ctx)
//	defer reporter.Stop(context.Background())
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/", handler)
//	http.ListenAndServe(":8000", httpx.Middleware(reporter)(mux))
func Middleware(reporter RenderReporter) func(http.Handler) http.Handler {
	origin := time.Now()

	var mu sync.Mutex
	fastest := make(map[string]float64)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			commit := time.Now()
			actual := millis(commit.Sub(start))
			component := r.Method + " " + normalizePath(r.URL.Path)

			mu.Lock()
			base, seen := fastest[component]
			phase := record.PhaseUpdate
			if !seen {
				phase = record.PhaseMount
				base = actual
			}
			if actual < base {
				base = actual
			}
			fastest[component] = base
			mu.Unlock()

			reporter.OnRender(component, phase, actual, base,
				millis(start.Sub(origin)), millis(commit.Sub(origin)))
		})
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// normalizePath collapses ids so every request to a route reports as one component.
// Examples:
//   - /api/users/123 → /api/users/{id}
//   - /posts/456/comments → /posts/{id}/comments
//   - /api/users/2b1c9a2e-7d1f-4c1a-9a53-5f8e2d7c4b10 → /api/users/{id}
func normalizePath(path string) string {
	// UUIDs first: one starting with a digit would otherwise be split
	path = uuidID.ReplaceAllString(path, "/{id}")
	return numericID.ReplaceAllString(path, "/{id}")
}
