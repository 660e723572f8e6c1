package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/storage"
)

// Key layout:
//
//	r<seq>                    record JSON, seq is 8 bytes big-endian
//	c<hash><seq>              per-component index, empty value
//	n<hash><component>        first sequence the component was seen at
//
// hash is xxhash64 of the component identifier.
const (
	prefixRecord    = 'r'
	prefixIndex     = 'c'
	prefixComponent = 'n'
)

var sequenceKey = []byte("!seq")

// Storage implements storage.Store using BadgerDB as an append-only log
type Storage struct {
	db  *badger.DB
	seq *badger.Sequence

	// mu covers sequence allocation and commit so append order equals key order
	mu sync.Mutex
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = use defaults based on environment)
	// Recommended: 32-64 MB for local dev
	MaxMemoryMB int64
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// BadgerDB defaults: 64 MB memtable, 5 x 64 MB = 320 MB total
	// Telemetry records are tiny, 16 MB memtable is plenty
	var memTableSize int64
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3 // ~33% for memtable
	} else {
		memTableSize = 16 * 1024 * 1024
	}

	// CRITICAL MEMORY LIMITS: BadgerDB has multiple unbounded memory consumers
	blockCacheSize := memTableSize / 2 // Block cache: 50% of memtable
	indexCacheSize := memTableSize / 4 // Index cache: 25% of memtable

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(blockCacheSize).
		WithIndexCacheSize(indexCacheSize).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024). // Records stay in the LSM tree
		WithNumCompactors(2).
		WithValueLogFileSize(64 << 20). // 64 MB value log files instead of default 2GB
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.Wrap("open", cfg.Path, fmt.Errorf("failed to open badger: %w", err))
	}

	seq, err := db.GetSequence(sequenceKey, 128)
	if err != nil {
		db.Close()
		return nil, storage.Wrap("open", cfg.Path, fmt.Errorf("failed to lease sequence: %w", err))
	}

	return &Storage{db: db, seq: seq}, nil
}

// Append writes rec under the next sequence number. Cancellation is only
// honoured before the write starts: once the transaction is committing the
// record is stored and Append reports the commit result.
func (s *Storage) Append(ctx context.Context, rec record.PerformanceRecord) error {
	return s.AppendBatch(ctx, []record.PerformanceRecord{rec})
}

// batchTxnRecords bounds the records written per transaction
const batchTxnRecords = 1000

// AppendBatch validates every record, then writes them in order, up to
// batchTxnRecords per transaction. Nothing is written when a record is invalid.
func (s *Storage) AppendBatch(ctx context.Context, recs []record.PerformanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	values := make([][]byte, len(recs))
	normalized := make([]record.PerformanceRecord, len(recs))
	for i, rec := range recs {
		rec = rec.Normalize()
		if err := record.Validate(rec); err != nil {
			return err
		}
		value, err := encodeRecord(rec)
		if err != nil {
			return storage.Wrap("append", "", fmt.Errorf("failed to encode record: %w", err))
		}
		normalized[i], values[i] = rec, value
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("append operation cancelled: %w", err)
	}

	for start := 0; start < len(normalized); start += batchTxnRecords {
		end := min(start+batchTxnRecords, len(normalized))
		if err := s.writeChunk(normalized[start:end], values[start:end]); err != nil {
			return storage.Wrap("append", "", err)
		}
	}
	return nil
}

// writeChunk commits recs in one transaction. Callers hold s.mu.
func (s *Storage) writeChunk(recs []record.PerformanceRecord, values [][]byte) error {
	seqs := make([]uint64, len(recs))
	for i := range recs {
		seq, err := s.seq.Next()
		if err != nil {
			return err
		}
		seqs[i] = seq
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for i, rec := range recs {
			seq := seqs[i]
			hash := xxhash.Sum64String(rec.Component)

			if err := txn.Set(recordKey(seq), values[i]); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
			if err := txn.Set(indexKey(hash, seq), nil); err != nil {
				return fmt.Errorf("failed to write index: %w", err)
			}

			ck := componentKey(hash, rec.Component)
			if _, err := txn.Get(ck); err == badger.ErrKeyNotFound {
				if err := txn.Set(ck, encodeSeq(seq)); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadAll scans the record prefix in sequence order
// CRITICAL: Enforces context timeout/cancellation to prevent indefinite blocking
func (s *Storage) ReadAll(ctx context.Context) ([]record.PerformanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type readResult struct {
		records []record.PerformanceRecord
		err     error
	}
	done := make(chan readResult, 1)

	go func() {
		var res readResult
		res.records, _, res.err = s.scan(ctx)
		done <- res
	}()

	select {
	case res := <-done:
		return res.records, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("read operation cancelled: %w", ctx.Err())
	}
}

// scan returns all records with their sequence numbers
func (s *Storage) scan(ctx context.Context) ([]record.PerformanceRecord, []uint64, error) {
	records := make([]record.PerformanceRecord, 0)
	var seqs []uint64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100
		opts.Prefix = []byte{prefixRecord}

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			// Check for context cancellation every 1000 iterations
			if iterCount%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			item := it.Item()
			err := item.Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err != nil {
					return &storage.StorageError{Op: "read", Corrupt: true, Err: err}
				}
				records = append(records, rec)
				seqs = append(seqs, decodeSeq(item.Key()[1:]))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, storage.Wrap("read", "", err)
	}
	return records, seqs, nil
}

// Latest seeks the component index backwards from the newest sequence
func (s *Storage) Latest(ctx context.Context, component string) (record.PerformanceRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return record.PerformanceRecord{}, false, err
	}

	var (
		found  record.PerformanceRecord
		exists bool
	)
	hash := xxhash.Sum64String(component)
	prefix := indexPrefix(hash)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the largest key <= seek key
		seek := append(append([]byte{}, prefix...), bytes.Repeat([]byte{0xff}, 8)...)
		for it.Seek(seek); it.Valid(); it.Next() {
			seq := decodeSeq(it.Item().Key()[len(prefix):])
			item, err := txn.Get(recordKey(seq))
			if err == badger.ErrKeyNotFound {
				continue // removed by retention
			}
			if err != nil {
				return err
			}

			var rec record.PerformanceRecord
			if err := item.Value(func(val []byte) error {
				var decodeErr error
				rec, decodeErr = decodeRecord(val)
				return decodeErr
			}); err != nil {
				return &storage.StorageError{Op: "read", Corrupt: true, Err: err}
			}

			// Hash collision: keep walking
			if rec.Component != component {
				continue
			}
			found, exists = rec, true
			return nil
		}
		return nil
	})
	if err != nil {
		return record.PerformanceRecord{}, false, storage.Wrap("read", "", err)
	}
	return found, exists, nil
}

// Components returns identifiers ordered by the sequence they were first seen at
func (s *Storage) Components(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type seen struct {
		name string
		seq  uint64
	}
	var all []seen

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixComponent}

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(item.Key()[9:])
			err := item.Value(func(val []byte) error {
				all = append(all, seen{name: name, seq: decodeSeq(val)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storage.Wrap("read", "", err)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	components := make([]string, len(all))
	for i, c := range all {
		components[i] = c.name
	}
	return components, nil
}

// ApplyRetention deletes records the policy drops and rebuilds the component table
func (s *Storage) ApplyRetention(ctx context.Context, policy storage.RetentionPolicy) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, seqs, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}

	if policy == nil {
		policy = storage.KeepAll
	}
	keep := make(map[int]bool, len(records))
	for _, i := range policy.Keep(records) {
		keep[i] = true
	}
	removed := len(records) - len(keep)
	if removed <= 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	firstSeen := make(map[string]uint64)
	for i, rec := range records {
		hash := xxhash.Sum64String(rec.Component)
		if keep[i] {
			if _, ok := firstSeen[rec.Component]; !ok {
				firstSeen[rec.Component] = seqs[i]
			}
			continue
		}
		if err := wb.Delete(recordKey(seqs[i])); err != nil {
			return 0, storage.Wrap("retention", "", err)
		}
		if err := wb.Delete(indexKey(hash, seqs[i])); err != nil {
			return 0, storage.Wrap("retention", "", err)
		}
	}

	for _, name := range storage.DistinctComponents(records) {
		ck := componentKey(xxhash.Sum64String(name), name)
		seq, ok := firstSeen[name]
		if !ok {
			err = wb.Delete(ck)
		} else {
			err = wb.Set(ck, encodeSeq(seq))
		}
		if err != nil {
			return 0, storage.Wrap("retention", "", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return 0, storage.Wrap("retention", "", err)
	}
	return removed, nil
}

// Close releases the sequence lease and shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection
// This reclaims disk space from records dropped by retention
// discardRatio: run GC if this fraction of file can be discarded (0.5 = 50%)
// Reports whether a value log file was rewritten; nothing to collect is not an error
func (s *Storage) RunGC(discardRatio float64) (bool, error) {
	err := s.db.RunValueLogGC(discardRatio)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected):
		return false, nil
	default:
		return false, storage.Wrap("gc", "", err)
	}
}

// Stats counts records and components without loading values
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &storage.Stats{Backend: "badger"}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			switch it.Item().Key()[0] {
			case prefixRecord:
				stats.TotalRecords++
			case prefixComponent:
				stats.TotalComponents++
			}
		}
		return nil
	})
	if err != nil {
		return nil, storage.Wrap("stats", "", err)
	}

	lsmSize, vlogSize := s.db.Size()
	stats.SizeBytes = uint64(lsmSize + vlogSize)
	return stats, nil
}

func recordKey(seq uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefixRecord
	binary.BigEndian.PutUint64(key[1:], seq)
	return key
}

func indexPrefix(hash uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefixIndex
	binary.BigEndian.PutUint64(key[1:], hash)
	return key
}

func indexKey(hash, seq uint64) []byte {
	key := make([]byte, 17)
	copy(key, indexPrefix(hash))
	binary.BigEndian.PutUint64(key[9:], seq)
	return key
}

func componentKey(hash uint64, component string) []byte {
	key := make([]byte, 9, 9+len(component))
	key[0] = prefixComponent
	binary.BigEndian.PutUint64(key[1:], hash)
	return append(key, component...)
}

func encodeSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func decodeSeq(b []byte) uint64 {
	return binary.BigEndian.Uint64(b[:8])
}

// encodeRecord serializes a record to bytes
func encodeRecord(r record.PerformanceRecord) ([]byte, error) {
	return json.Marshal(r)
}

// decodeRecord deserializes bytes to a record
func decodeRecord(data []byte) (record.PerformanceRecord, error) {
	var r record.PerformanceRecord
	err := json.Unmarshal(data, &r)
	return r, err
}
