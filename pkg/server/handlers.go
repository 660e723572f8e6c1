package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nicktill/renderscope/pkg/httpx"
	"github.com/nicktill/renderscope/pkg/server/monitor"
	"github.com/nicktill/renderscope/pkg/storage"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

var startTime = time.Now()

// StorageUsage represents current storage usage stats.
type StorageUsage struct {
	UsedBytes int64 `json:"used_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
	OverLimit bool  `json:"over_limit"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version"`
	Uptime    string                  `json:"uptime"`
	Retention monitor.RetentionStatus `json:"retention"`
}

// handleHealth returns service health status.
func handleHealth(retentionMonitor *monitor.RetentionMonitor, policy storage.RetentionPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overallStatus := "healthy"
		statusCode := http.StatusOK

		if !retentionMonitor.IsHealthy() {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		status := retentionMonitor.Status()
		if policy != nil {
			status.Policy = policy.Name()
		}

		httpx.RespondJSON(w, statusCode, HealthResponse{
			Status:    overallStatus,
			Version:   Version,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Retention: status,
		})
	}
}

// handleStorageUsage returns current storage usage.
func handleStorageUsage(monitor *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usedBytes, err := monitor.GetUsage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		limit := monitor.GetLimit()
		httpx.RespondJSON(w, http.StatusOK, StorageUsage{
			UsedBytes: usedBytes,
			MaxBytes:  limit,
			OverLimit: limit > 0 && usedBytes > limit,
		})
	}
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(router *mux.Router, h *Handlers, allowedOrigins []string) {
	router.Use(requestIDMiddleware)
	router.Use(corsMiddleware(allowedOrigins))

	// Paths the instrumented app and the analyzer already use
	router.HandleFunc("/log-performance", h.Ingest.HandleLogPerformance).Methods("POST")
	router.HandleFunc("/get-performance-data", h.Ingest.HandleGetPerformanceData).Methods("GET")

	api := router.PathPrefix("/v1").Subrouter()

	api.HandleFunc("/components", h.Ingest.HandleComponents).Methods("GET")
	api.HandleFunc("/components/{component}/latest", h.Ingest.HandleLatest).Methods("GET")
	api.HandleFunc("/stats", h.Ingest.HandleStats).Methods("GET")
	api.HandleFunc("/storage", handleStorageUsage(h.Storage)).Methods("GET")
	api.HandleFunc("/health", handleHealth(h.Retention, h.Policy)).Methods("GET")

	// WebSocket for live records
	api.HandleFunc("/ws", h.Hub.HandleWebSocket).Methods("GET")

	// Export/import
	api.HandleFunc("/export", h.Export.HandleExport).Methods("GET")
	api.HandleFunc("/import", h.Export.HandleImport).Methods("POST")

	router.Handle("/metrics", promhttp.HandlerFor(h.Registry, promhttp.HandlerOpts{})).Methods("GET")

	// Preflight for every path; corsMiddleware answers it
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})
}

// requestIDMiddleware echoes a caller supplied X-Request-ID or mints one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware lets the instrumented UI, served from another port, call the service.
// A "*" entry allows any origin.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAny := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAny = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && (allowAny || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
