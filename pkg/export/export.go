package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/storage"
)

// FormatVersion is written to the metadata of every JSON export.
const FormatVersion = "1.0"

// CSVHeader lists the CSV columns in output order.
var CSVHeader = []string{
	"component", "phase", "actualDuration", "baseDuration", "startTime", "commitTime",
	"renderTime", "stateUpdates", "propsReceived", "propsUsed", "optimizationApplied",
}

// Exporter handles exporting the log to various formats
type Exporter struct {
	store storage.Store
}

// NewExporter creates a new exporter
func NewExporter(store storage.Store) *Exporter {
	return &Exporter{store: store}
}

// ExportOptions configures the export operation
type ExportOptions struct {
	// Filter by component (nil = every record)
	Components []string

	// Format: "json" or "csv"
	Format string
}

// ExportResult contains stats about the export
type ExportResult struct {
	RecordsExported int       `json:"records_exported"`
	Format          string    `json:"format"`
	ExportedAt      time.Time `json:"exported_at"`
}

// Metadata describes a JSON export.
type Metadata struct {
	ExportedAt  time.Time `json:"exported_at"`
	RecordCount int       `json:"record_count"`
	Components  []string  `json:"components,omitempty"`
	Format      string    `json:"format"`
	Version     string    `json:"version"`
}

// Document is the JSON export layout, also accepted by the importer.
type Document struct {
	Metadata Metadata                   `json:"metadata"`
	Records  []record.PerformanceRecord `json:"records"`
}

// ExportToJSON exports the log as JSON to the given writer
func (e *Exporter) ExportToJSON(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	records, err := e.collect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return WriteJSON(w, records, opts)
}

// WriteJSON encodes already collected records as an export document
func WriteJSON(w io.Writer, records []record.PerformanceRecord, opts ExportOptions) (*ExportResult, error) {
	doc := Document{
		Metadata: Metadata{
			ExportedAt:  time.Now().UTC(),
			RecordCount: len(records),
			Components:  opts.Components,
			Format:      "json",
			Version:     FormatVersion,
		},
		Records: records,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &ExportResult{
		RecordsExported: len(records),
		Format:          "json",
		ExportedAt:      doc.Metadata.ExportedAt,
	}, nil
}

// ExportToCSV exports the log as CSV to the given writer
func (e *Exporter) ExportToCSV(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	records, err := e.collect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return WriteCSV(w, records)
}

// WriteCSV writes already collected records as CSV rows under CSVHeader
func WriteCSV(w io.Writer, records []record.PerformanceRecord) (*ExportResult, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range records {
		if err := writer.Write(csvRow(rec)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return &ExportResult{
		RecordsExported: len(records),
		Format:          "csv",
		ExportedAt:      time.Now().UTC(),
	}, nil
}

func (e *Exporter) collect(ctx context.Context, opts ExportOptions) ([]record.PerformanceRecord, error) {
	records, err := e.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	if len(opts.Components) == 0 {
		if records == nil {
			records = []record.PerformanceRecord{}
		}
		return records, nil
	}

	wanted := make(map[string]bool, len(opts.Components))
	for _, c := range opts.Components {
		wanted[c] = true
	}

	filtered := make([]record.PerformanceRecord, 0, len(records))
	for _, rec := range records {
		if wanted[rec.Component] {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

func csvRow(rec record.PerformanceRecord) []string {
	propsUsed := ""
	if rec.PropsUsed != nil {
		propsUsed = strconv.FormatInt(*rec.PropsUsed, 10)
	}
	return []string{
		rec.Component,
		string(rec.Phase),
		formatFloat(rec.ActualDuration),
		formatFloat(rec.BaseDuration),
		formatFloat(rec.StartTime),
		formatFloat(rec.CommitTime),
		formatFloat(rec.RenderTime),
		strconv.FormatInt(rec.StateUpdates, 10),
		strconv.FormatInt(rec.PropsReceived, 10),
		propsUsed,
		rec.OptimizationApplied,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
