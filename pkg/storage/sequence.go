package storage

import "github.com/nicktill/renderscope/pkg/record"

// DistinctComponents returns component identifiers in first-seen order.
func DistinctComponents(records []record.PerformanceRecord) []string {
	seen := make(map[string]struct{})
	components := make([]string, 0)
	for _, r := range records {
		if _, ok := seen[r.Component]; ok {
			continue
		}
		seen[r.Component] = struct{}{}
		components = append(components, r.Component)
	}
	return components
}

// LatestFor returns the last record in records whose component matches.
func LatestFor(records []record.PerformanceRecord, component string) (record.PerformanceRecord, bool) {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Component == component {
			return records[i], true
		}
	}
	return record.PerformanceRecord{}, false
}
