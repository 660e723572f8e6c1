package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/storage"
)

// Storage implements storage.Store as a single JSON array file.
//
// Every append rewrites the whole array, so writers are serialised twice:
// a mutex for goroutines in this process and an OS lock on a sibling
// ".lock" file for other processes sharing the path. The new array is
// written to a temp file and renamed over the old one, so readers never
// observe a partial write and need no lock.
type Storage struct {
	path string
	lock *os.File
	mu   sync.Mutex
}

// Config holds file storage configuration
type Config struct {
	// Path of the JSON array file. Parent directories are created.
	Path string
}

// New opens (without creating) the log at cfg.Path
func New(cfg Config) (*Storage, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file storage: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, storage.Wrap("open", cfg.Path, err)
	}

	lock, err := os.OpenFile(cfg.Path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, storage.Wrap("open", cfg.Path, err)
	}

	return &Storage{path: cfg.Path, lock: lock}, nil
}

// Path returns the log file location
func (s *Storage) Path() string {
	return s.path
}

// Append validates rec and writes it as the new last element
func (s *Storage) Append(ctx context.Context, rec record.PerformanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec = rec.Normalize()
	if err := record.Validate(rec); err != nil {
		return err
	}

	return s.withWriteLock("append", func() error {
		records, err := s.load()
		if err != nil {
			return err
		}
		return s.write(append(records, rec))
	})
}

// AppendBatch validates every record and then writes them all with a single
// rewrite of the file. Nothing is written when a record is invalid.
func (s *Storage) AppendBatch(ctx context.Context, recs []record.PerformanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := storage.NormalizeBatch(recs)
	if err != nil {
		return err
	}
	if len(normalized) == 0 {
		return nil
	}

	return s.withWriteLock("append", func() error {
		records, err := s.load()
		if err != nil {
			return err
		}
		return s.write(append(records, normalized...))
	})
}

// ReadAll returns every record in append order
func (s *Storage) ReadAll(ctx context.Context) ([]record.PerformanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.load()
}

// Latest returns the last record appended for component
func (s *Storage) Latest(ctx context.Context, component string) (record.PerformanceRecord, bool, error) {
	records, err := s.ReadAll(ctx)
	if err != nil {
		return record.PerformanceRecord{}, false, err
	}
	rec, ok := storage.LatestFor(records, component)
	return rec, ok, nil
}

// Components returns distinct component identifiers in first-seen order
func (s *Storage) Components(ctx context.Context) ([]string, error) {
	records, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return storage.DistinctComponents(records), nil
}

// ApplyRetention rewrites the file with only the records policy keeps
func (s *Storage) ApplyRetention(ctx context.Context, policy storage.RetentionPolicy) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var removed int
	err := s.withWriteLock("retention", func() error {
		records, err := s.load()
		if err != nil {
			return err
		}
		kept := storage.Select(policy, records)
		removed = len(records) - len(kept)
		if removed == 0 {
			return nil
		}
		return s.write(kept)
	})
	return removed, err
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	records, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &storage.Stats{
		TotalRecords:    uint64(len(records)),
		TotalComponents: uint64(len(storage.DistinctComponents(records))),
		Backend:         "file",
	}
	if info, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = uint64(info.Size())
	}
	return stats, nil
}

// Close releases the lock file handle
func (s *Storage) Close() error {
	return s.lock.Close()
}

func (s *Storage) withWriteLock(op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := lockFile(s.lock); err != nil {
		return storage.Wrap(op, s.path, fmt.Errorf("acquire lock: %w", err))
	}
	defer unlockFile(s.lock)

	return storage.Wrap(op, s.path, fn())
}

// load reads the whole array. A missing or blank file is an empty log.
func (s *Storage) load() ([]record.PerformanceRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []record.PerformanceRecord{}, nil
	}
	if err != nil {
		return nil, storage.Wrap("read", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []record.PerformanceRecord{}, nil
	}

	var records []record.PerformanceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &storage.StorageError{Op: "read", Path: s.path, Corrupt: true, Err: err}
	}
	if records == nil {
		records = []record.PerformanceRecord{}
	}
	return records, nil
}

// write replaces the file atomically via temp file + rename
func (s *Storage) write(records []record.PerformanceRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
