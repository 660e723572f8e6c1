package memory

import (
	"context"
	"sync"

	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/storage"
)

// Storage stores records in memory. Data is lost on restart.
// Useful for testing and development.
type Storage struct {
	records []record.PerformanceRecord
	mu      sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		records: make([]record.PerformanceRecord, 0, 1024),
	}
}

// Append validates and stores a record
func (s *Storage) Append(ctx context.Context, rec record.PerformanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec = rec.Normalize()
	if err := record.Validate(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	return nil
}

// AppendBatch validates every record and then stores them in order. Nothing
// is stored when a record is invalid.
func (s *Storage) AppendBatch(ctx context.Context, recs []record.PerformanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := storage.NormalizeBatch(recs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, normalized...)
	return nil
}

// ReadAll returns a copy of every record in append order
func (s *Storage) ReadAll(ctx context.Context) ([]record.PerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.PerformanceRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Latest returns the last record appended for component
func (s *Storage) Latest(ctx context.Context, component string) (record.PerformanceRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := storage.LatestFor(s.records, component)
	return rec, ok, nil
}

// Components returns distinct component identifiers in first-seen order
func (s *Storage) Components(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return storage.DistinctComponents(s.records), nil
}

// ApplyRetention drops the records the policy does not keep
func (s *Storage) ApplyRetention(ctx context.Context, policy storage.RetentionPolicy) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := storage.Select(policy, s.records)
	removed := len(s.records) - len(kept)
	s.records = kept
	return removed, nil
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &storage.Stats{
		TotalRecords:    uint64(len(s.records)),
		TotalComponents: uint64(len(storage.DistinctComponents(s.records))),
		// Rough size estimate (each record ~200 bytes of JSON)
		SizeBytes: uint64(len(s.records)) * 200,
		Backend:   "memory",
	}, nil
}
