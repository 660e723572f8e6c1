// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/storage"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.Store

// Record builds a valid record for tests.
func Record(component string, actual float64) record.PerformanceRecord {
	return record.PerformanceRecord{
		Component:           component,
		Phase:               record.PhaseUpdate,
		ActualDuration:      actual,
		BaseDuration:        actual,
		StartTime:           100,
		CommitTime:          100 + actual,
		RenderTime:          actual,
		StateUpdates:        1,
		PropsReceived:       1,
		PropsUsed:           record.Int64(1),
		OptimizationApplied: record.NoOptimization,
	}
}

// Run executes the conformance suite against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("EmptyReadAll", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		all, err := store.ReadAll(context.Background())
		require.NoError(t, err)
		require.NotNil(t, all)
		assert.Empty(t, all)

		components, err := store.Components(context.Background())
		require.NoError(t, err)
		assert.Empty(t, components)
	})

	t.Run("AppendThenReadRoundTrip", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		first := Record("FastComponent", 1.5)
		second := Record("ExpensiveComponent", 52.25)
		second.PropsUsed = nil

		require.NoError(t, store.Append(ctx, first))
		require.NoError(t, store.Append(ctx, second))

		all, err := store.ReadAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, first, all[0])
		assert.Equal(t, second, all[1])
	})

	t.Run("AppendBatchKeepsOrderAndIsAllOrNothing", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		require.NoError(t, store.Append(ctx, Record("ComponentA", 1)))

		batch := make([]record.PerformanceRecord, 0, 2500)
		for i := 0; i < 2500; i++ {
			batch = append(batch, Record(fmt.Sprintf("C%d", i%3), float64(i)))
		}
		require.NoError(t, store.AppendBatch(ctx, batch))

		all, err := store.ReadAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2501)
		assert.Equal(t, "ComponentA", all[0].Component)
		for i, rec := range all[1:] {
			assert.Equal(t, float64(i), rec.ActualDuration)
		}

		latest, ok, err := store.Latest(ctx, "C0")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 2499.0, latest.ActualDuration)

		components, err := store.Components(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"ComponentA", "C0", "C1", "C2"}, components)

		bad := Record("", 1)
		err = store.AppendBatch(ctx, []record.PerformanceRecord{Record("D", 1), bad})
		assert.ErrorIs(t, err, record.ErrInvalidRecord)

		all, err = store.ReadAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2501)

		require.NoError(t, store.AppendBatch(ctx, nil))
	})

	t.Run("AppendNormalizesOptimizationLabel", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		r := Record("A", 1)
		r.OptimizationApplied = ""
		require.NoError(t, store.Append(ctx, r))

		latest, ok, err := store.Latest(ctx, "A")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, record.NoOptimization, latest.OptimizationApplied)
	})

	t.Run("AppendRejectsInvalid", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		bad := Record("", 1)
		err := store.Append(ctx, bad)
		require.Error(t, err)
		assert.True(t, errors.Is(err, record.ErrInvalidRecord), "got %v", err)

		negative := Record("A", -4)
		require.ErrorIs(t, store.Append(ctx, negative), record.ErrInvalidRecord)

		all, err := store.ReadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all, "rejected records must not be stored")
	})

	t.Run("LatestAndComponents", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		for _, r := range []record.PerformanceRecord{
			Record("B", 1), Record("A", 50), Record("B", 2), Record("A", 80), Record("C", 3),
		} {
			require.NoError(t, store.Append(ctx, r))
		}

		components, err := store.Components(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A", "C"}, components)

		for i := 0; i < 3; i++ {
			latest, ok, err := store.Latest(ctx, "A")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, float64(80), latest.ActualDuration)
		}

		_, ok, err := store.Latest(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), stats.TotalRecords)
		assert.Equal(t, uint64(3), stats.TotalComponents)
	})

	t.Run("ConcurrentAppendsLoseNothing", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		const writers = 50
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- store.Append(ctx, Record(fmt.Sprintf("Component%02d", i), float64(i)))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		all, err := store.ReadAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, writers)

		seen := make(map[string]bool)
		for _, r := range all {
			seen[r.Component] = true
		}
		assert.Len(t, seen, writers)
	})

	t.Run("RetentionDefaultKeepsEverything", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			require.NoError(t, store.Append(ctx, Record("A", float64(i))))
		}

		removed, err := store.ApplyRetention(ctx, storage.KeepAll)
		require.NoError(t, err)
		assert.Equal(t, 0, removed)

		removed, err = store.ApplyRetention(ctx, storage.KeepLast(2))
		require.NoError(t, err)
		assert.Equal(t, 3, removed)

		all, err := store.ReadAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, float64(3), all[0].ActualDuration)
		assert.Equal(t, float64(4), all[1].ActualDuration)

		// Order survives retention: new appends still land last
		require.NoError(t, store.Append(ctx, Record("A", 9)))
		latest, ok, err := store.Latest(ctx, "A")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, float64(9), latest.ActualDuration)
	})
}
