package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nicktill/renderscope/pkg/sdk"
)

// statsSource is satisfied by *sdk.Reporter
type statsSource interface {
	Stats() sdk.Stats
}

// setupHandlers configures all HTTP handlers
func setupHandlers(mux *http.ServeMux, a *app, stats statsSource) {
	mux.HandleFunc("/", handleIndex(a))

	// Buttons of the demo app. Each click re-renders the component tree.
	mux.HandleFunc("/count", handleIncrement(a.IncrementCount))
	mux.HandleFunc("/other-count", handleIncrement(a.IncrementOtherCount))

	mux.HandleFunc("/api/stats", handleStats(stats))
	mux.HandleFunc("/health", handleHealth())
}

// handleIndex shows the current state of the component tree
func handleIndex(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		count, otherCount, computed := a.Snapshot()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":         count,
			"otherCount":    otherCount,
			"computedValue": computed,
		})
	}
}

// handleIncrement turns a counter into a POST endpoint
func handleIncrement(increment func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"value": increment()})
	}
}

// handleStats reports the reporter's delivery counters
func handleStats(stats statsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := stats.Stats()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"queued":  s.Queued,
			"sent":    s.Sent,
			"dropped": s.Dropped,
			"failed":  s.Failed,
			"uptime":  time.Since(startTime).Round(time.Second).String(),
		})
	}
}

// handleHealth handles /health endpoint
func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "healthy",
			"uptime":    time.Since(startTime).Round(time.Second).String(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
