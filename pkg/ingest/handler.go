package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nicktill/renderscope/pkg/config"
	"github.com/nicktill/renderscope/pkg/httpx"
	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/storage"
)

// SuccessMessage acknowledges an accepted record.
const SuccessMessage = "Performance logged successfully!"

// Handler serves the ingestion and retrieval endpoints
type Handler struct {
	store   storage.Store
	hub     *RecordHub
	metrics *Metrics
	logger  *zap.Logger
}

// NewHandler creates a new ingest handler
func NewHandler(store storage.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// SetHub enables live broadcasting of accepted records
func (h *Handler) SetHub(hub *RecordHub) {
	h.hub = hub
}

// SetMetrics enables Prometheus instrumentation
func (h *Handler) SetMetrics(m *Metrics) {
	h.metrics = m
}

// ComponentsResponse lists distinct component identifiers
type ComponentsResponse struct {
	Components []string `json:"components"`
	Count      int      `json:"count"`
}

// HandleLogPerformance handles POST /log-performance: one record per request
func (h *Handler) HandleLogPerformance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	rec, err := decodeRecord(w, r)
	if err != nil {
		h.metrics.observeIngest(resultRejected, start)
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.IngestTimeout)
	defer cancel()

	if err := h.store.Append(ctx, rec); err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			h.metrics.observeIngest(resultRejected, start)
		} else {
			h.metrics.observeIngest(resultFailed, start)
			h.logger.Error("failed to append record",
				zap.String("component", rec.Component), zap.Error(err))
		}
		httpx.RespondError(w, status, err)
		return
	}

	h.metrics.observeIngest(resultAccepted, start)
	if h.hub != nil {
		h.hub.Publish(rec.Normalize())
	}

	httpx.RespondMessage(w, http.StatusOK, SuccessMessage)
}

// HandleGetPerformanceData handles GET /get-performance-data: the whole log, verbatim
func (h *Handler) HandleGetPerformanceData(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.RetrieveTimeout)
	defer cancel()

	records, err := h.store.ReadAll(ctx)
	if err != nil {
		h.logger.Error("failed to read log", zap.Error(err))
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	h.metrics.observeRetrieve()

	if records == nil {
		records = []record.PerformanceRecord{}
	}
	httpx.RespondJSON(w, http.StatusOK, records)
}

// HandleComponents handles GET /v1/components
func (h *Handler) HandleComponents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.RetrieveTimeout)
	defer cancel()

	components, err := h.store.Components(ctx)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	if components == nil {
		components = []string{}
	}

	httpx.RespondJSON(w, http.StatusOK, ComponentsResponse{
		Components: components,
		Count:      len(components),
	})
}

// HandleLatest handles GET /v1/components/{component}/latest
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	component := mux.Vars(r)["component"]
	if component == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "component is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.RetrieveTimeout)
	defer cancel()

	rec, ok, err := h.store.Latest(ctx, component)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	if !ok {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("no data found for %s", component))
		return
	}

	httpx.RespondJSON(w, http.StatusOK, rec)
}

// HandleStats handles GET /v1/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.StatsTimeout)
	defer cancel()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		httpx.RespondError(w, statusFor(err), err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, stats)
}

// decodeRecord reads exactly one JSON object from the request body
func decodeRecord(w http.ResponseWriter, r *http.Request) (record.PerformanceRecord, error) {
	var rec record.PerformanceRecord

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, config.MaxRecordBodyBytes))
	if err := dec.Decode(&rec); err != nil {
		var vErr *record.ValidationError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &vErr):
			return rec, err
		case errors.As(err, &maxErr):
			return rec, fmt.Errorf("request body too large (max %d bytes)", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return rec, errors.New("request body is empty")
		default:
			return rec, fmt.Errorf("invalid JSON: %v", err)
		}
	}
	if dec.More() {
		return rec, errors.New("request body must contain a single record")
	}
	return rec, nil
}

// statusFor maps the error taxonomy to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, record.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
