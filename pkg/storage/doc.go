/*
Package storage provides the pluggable log store abstraction for renderscope.

# Store Interface

The performance log is an ordered, append-only sequence of record.PerformanceRecord.
Every backend implements the Store interface:

	type Store interface {
	    Append(ctx context.Context, rec record.PerformanceRecord) error
	    ReadAll(ctx context.Context) ([]record.PerformanceRecord, error)
	    Latest(ctx context.Context, component string) (record.PerformanceRecord, bool, error)
	    Components(ctx context.Context) ([]string, error)
	    ApplyRetention(ctx context.Context, policy RetentionPolicy) (int, error)
	    Stats(ctx context.Context) (*Stats, error)
	    Close() error
	}

Backends:
  - memory: slice behind a RWMutex, for tests and throwaway runs
  - file: a single JSON array file, the layout the UI tooling and scorer training read
  - badger: BadgerDB log keyed by a monotonically increasing sequence

# Ordering

Append order is the only order. "Latest record for component C" is the last
record in append order whose Component equals C, so every backend serialises
appends: N concurrent Append calls with valid records always leave exactly N
new records behind.

# Errors

Append returns a *record.ValidationError when the record breaks an invariant
and a *StorageError when the medium cannot be written. ReadAll on a missing
medium returns an empty slice; on a corrupt one it returns a *StorageError
with Corrupt set.

	if errors.Is(err, record.ErrInvalidRecord) { ... } // reject with 400
	if errors.Is(err, storage.ErrStorage) { ... }      // reject with 500

# Retention

The log has no retention by default (KeepAll). ApplyRetention takes any
RetentionPolicy so a policy can be introduced later without touching callers:

	removed, err := store.ApplyRetention(ctx, storage.KeepLast(100000))

# Usage Example

	store, err := file.New(file.Config{Path: "./data/performance_logs.json"})
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	err = store.Append(ctx, record.PerformanceRecord{
	    Component:      "ExpensiveComponent",
	    Phase:          record.PhaseUpdate,
	    ActualDuration: 52.1,
	    RenderTime:     52.1,
	    StateUpdates:   1,
	    PropsReceived:  1,
	})

	latest, ok, err := store.Latest(ctx, "ExpensiveComponent")
*/
package storage
