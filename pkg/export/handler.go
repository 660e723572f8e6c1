package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/renderscope/pkg/config"
	"github.com/nicktill/renderscope/pkg/httpx"
	"github.com/nicktill/renderscope/pkg/storage"
)

// Handler handles export/import HTTP endpoints
type Handler struct {
	exporter *Exporter
	importer *Importer
	logger   *zap.Logger

	maxImportBytes int64
}

// NewHandler creates a new export/import handler
func NewHandler(store storage.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		exporter: NewExporter(store),
		importer: NewImporter(store),
		logger:   logger,

		maxImportBytes: config.MaxImportBodyBytes,
	}
}

// HandleExport handles GET /v1/export
// Query params:
//   - format: "json" or "csv" (default: json)
//   - component: component filter (optional, repeatable)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()

	format := strings.ToLower(query.Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid format, must be 'json' or 'csv'")
		return
	}

	opts := ExportOptions{
		Components: query["component"],
		Format:     format,
	}

	extendDeadlines(w, config.ExportTimeout)
	ctx, cancel := context.WithTimeout(r.Context(), config.ExportTimeout)
	defer cancel()

	// Read before writing headers so a corrupt log still yields a 500
	records, err := h.exporter.collect(ctx, opts)
	if err != nil {
		h.logger.Error("export failed", zap.Error(err))
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	timestamp := time.Now().Format("20060102-150405")
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=renderscope-export-%s.json", timestamp))
	} else {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=renderscope-export-%s.csv", timestamp))
	}

	var result *ExportResult
	if format == "json" {
		result, err = WriteJSON(w, records, opts)
	} else {
		result, err = WriteCSV(w, records)
	}
	if err != nil {
		// Headers are already out; all that is left is to log
		h.logger.Error("export write failed", zap.String("format", format), zap.Error(err))
		return
	}

	h.logger.Info("exported performance log",
		zap.Int("records", result.RecordsExported),
		zap.String("format", format))
}

// HandleImport handles POST /v1/import
// Accepts JSON backup files and appends their records to the log
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		httpx.RespondErrorString(w, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImportBytes)
	extendDeadlines(w, config.ImportTimeout)
	ctx, cancel := context.WithTimeout(r.Context(), config.ImportTimeout)
	defer cancel()

	result, err := h.importer.ImportFromJSON(ctx, r.Body)
	if err != nil {
		h.logger.Error("import failed", zap.Error(err))
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, ErrImportTooLarge):
			status = http.StatusRequestEntityTooLarge
		case result != nil:
			// Partial import: the store failed mid-way
			status = http.StatusInternalServerError
		}
		httpx.RespondError(w, status, err)
		return
	}

	if len(result.Errors) > 0 {
		h.logger.Warn("import completed with validation errors",
			zap.Int("errors", len(result.Errors)),
			zap.Strings("first", firstN(result.Errors, 10)))
	}
	h.logger.Info("imported performance records",
		zap.Int("records", result.RecordsImported),
		zap.Int("batches", result.BatchesWritten))

	httpx.RespondJSON(w, http.StatusOK, result)
}

// extendDeadlines lifts the server-wide read and write timeouts for a
// long-running transfer. Writers without deadline support are left alone.
func extendDeadlines(w http.ResponseWriter, d time.Duration) {
	rc := http.NewResponseController(w)
	deadline := time.Now().Add(d + 5*time.Second)
	_ = rc.SetReadDeadline(deadline)
	_ = rc.SetWriteDeadline(deadline)
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
