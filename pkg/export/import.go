package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/storage"
)

const (
	// MaxImportRecords caps a single import request.
	MaxImportRecords = 100000

	// MaxImportBatchSize is the maximum number of records written at once
	MaxImportBatchSize = 5000
)

// ErrImportTooLarge is returned when the import body exceeds the request limit.
var ErrImportTooLarge = errors.New("import body too large")

// Importer handles importing records from backup files
type Importer struct {
	store storage.Store
}

// NewImporter creates a new importer
func NewImporter(store storage.Store) *Importer {
	return &Importer{store: store}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	RecordsImported int       `json:"records_imported"`
	RecordsSkipped  int       `json:"records_skipped"`
	BatchesWritten  int       `json:"batches_written"`
	ImportedAt      time.Time `json:"imported_at"`
	Errors          []string  `json:"errors,omitempty"`
}

// ImportFromJSON appends the valid records of an export document in file
// order, MaxImportBatchSize at a time. A bare JSON array of records (the file
// backend's layout) is accepted too. Invalid entries are skipped and listed
// in the result. When the store fails part-way the partial result is
// returned with the error.
func (im *Importer) ImportFromJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w (limit %d bytes)", ErrImportTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("failed to read import: %w", err)
	}

	entries, err := decodeEntries(raw)
	if err != nil {
		return nil, err
	}
	if len(entries) > MaxImportRecords {
		return nil, fmt.Errorf("too many records: %d (max %d)", len(entries), MaxImportRecords)
	}

	result := &ImportResult{ImportedAt: time.Now().UTC()}
	valid := make([]record.PerformanceRecord, 0, len(entries))
	for i, entry := range entries {
		var rec record.PerformanceRecord
		if err := json.Unmarshal(entry, &rec); err != nil {
			result.skip(i, err)
			continue
		}
		rec = rec.Normalize()
		if err := record.Validate(rec); err != nil {
			result.skip(i, err)
			continue
		}
		valid = append(valid, rec)
	}

	for start := 0; start < len(valid); start += MaxImportBatchSize {
		end := min(start+MaxImportBatchSize, len(valid))
		if err := im.store.AppendBatch(ctx, valid[start:end]); err != nil {
			return result, fmt.Errorf("failed to append batch %d: %w", result.BatchesWritten+1, err)
		}
		result.RecordsImported += end - start
		result.BatchesWritten++
	}

	return result, nil
}

func (r *ImportResult) skip(i int, err error) {
	r.RecordsSkipped++
	r.Errors = append(r.Errors, fmt.Sprintf("record %d: %v", i, err))
}

// decodeEntries splits the input into raw records so one bad entry does not
// sink the whole import.
func decodeEntries(raw []byte) ([]json.RawMessage, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}

	var doc struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return doc.Records, nil
}
