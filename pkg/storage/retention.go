package storage

import "github.com/nicktill/renderscope/pkg/record"

// RetentionPolicy decides which records survive a retention pass.
// Keep receives the full log in append order and returns the indexes to keep,
// ascending. Returning nil keeps nothing.
type RetentionPolicy interface {
	Name() string
	Keep(records []record.PerformanceRecord) []int
}

// KeepAll is the default policy: the log grows without bound.
var KeepAll RetentionPolicy = keepAll{}

type keepAll struct{}

func (keepAll) Name() string { return "keep-all" }

func (keepAll) Keep(records []record.PerformanceRecord) []int {
	idx := make([]int, len(records))
	for i := range records {
		idx[i] = i
	}
	return idx
}

// KeepLast keeps the newest n records overall. n <= 0 behaves like KeepAll.
type KeepLast int

func (n KeepLast) Name() string { return "keep-last" }

func (n KeepLast) Keep(records []record.PerformanceRecord) []int {
	start := 0
	if n > 0 && len(records) > int(n) {
		start = len(records) - int(n)
	}
	idx := make([]int, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		idx = append(idx, i)
	}
	return idx
}

// Select applies policy to records and returns the survivors in order.
func Select(policy RetentionPolicy, records []record.PerformanceRecord) []record.PerformanceRecord {
	if policy == nil {
		policy = KeepAll
	}
	keep := policy.Keep(records)
	out := make([]record.PerformanceRecord, 0, len(keep))
	for _, i := range keep {
		if i >= 0 && i < len(records) {
			out = append(out, records[i])
		}
	}
	return out
}
