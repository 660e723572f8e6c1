package storage

import (
	"context"

	"github.com/nicktill/renderscope/pkg/record"
)

// Store is the append-only performance log.
// Implementations: memory (testing), file (JSON array on disk), badger (transactional log)
type Store interface {
	// Append validates rec and adds it as the new last element
	Append(ctx context.Context, rec record.PerformanceRecord) error

	// AppendBatch validates all of recs, then appends them in order in as few
	// writes as the backend allows. An invalid record aborts the whole batch.
	AppendBatch(ctx context.Context, recs []record.PerformanceRecord) error

	// ReadAll returns every record in append order (empty, never nil, when nothing was written)
	ReadAll(ctx context.Context) ([]record.PerformanceRecord, error)

	// Latest returns the last appended record for component
	Latest(ctx context.Context, component string) (record.PerformanceRecord, bool, error)

	// Components returns distinct component identifiers in first-seen order
	Components(ctx context.Context) ([]string, error)

	// ApplyRetention drops the records the policy does not keep
	ApplyRetention(ctx context.Context, policy RetentionPolicy) (int, error)

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)

	// Close cleanly shuts down the storage
	Close() error
}

// Stats provides storage health and usage info
type Stats struct {
	// Total records stored
	TotalRecords uint64 `json:"total_records"`

	// Distinct component identifiers
	TotalComponents uint64 `json:"total_components"`

	// Storage size in bytes
	SizeBytes uint64 `json:"size_bytes"`

	// Backend name
	Backend string `json:"backend"`
}

// NormalizeBatch normalizes and validates recs, stopping at the first invalid one.
func NormalizeBatch(recs []record.PerformanceRecord) ([]record.PerformanceRecord, error) {
	out := make([]record.PerformanceRecord, len(recs))
	for i, rec := range recs {
		rec = rec.Normalize()
		if err := record.Validate(rec); err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}
