package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Phase is the render phase reported by the profiler. Producers may send
// other values; the pipeline treats it as an opaque label.
type Phase string

const (
	PhaseMount        Phase = "mount"
	PhaseUpdate       Phase = "update"
	PhaseNestedUpdate Phase = "nested-update"
)

// NoOptimization is the label used when no technique was applied.
const NoOptimization = "none"

// PerformanceRecord is one observation of a single component render.
type PerformanceRecord struct {
	Component string `json:"component"`
	Phase     Phase  `json:"phase"`

	// Timings in milliseconds
	ActualDuration float64 `json:"actualDuration"`
	BaseDuration   float64 `json:"baseDuration"`
	StartTime      float64 `json:"startTime"`
	CommitTime     float64 `json:"commitTime"`
	RenderTime     float64 `json:"renderTime"`

	StateUpdates  int64 `json:"stateUpdates"`
	PropsReceived int64 `json:"propsReceived"`

	// PropsUsed is nil when the producer does not track prop usage.
	PropsUsed *int64 `json:"propsUsed,omitempty"`

	OptimizationApplied string `json:"optimizationApplied"`
}

// Int64 returns a pointer to v, for filling PropsUsed.
func Int64(v int64) *int64 {
	return &v
}

// wireRecord accepts any JSON number for the count fields so fractional
// values can be reported as validation failures instead of type errors.
type wireRecord struct {
	Component           string   `json:"component"`
	Phase               Phase    `json:"phase"`
	ActualDuration      float64  `json:"actualDuration"`
	BaseDuration        float64  `json:"baseDuration"`
	StartTime           float64  `json:"startTime"`
	CommitTime          float64  `json:"commitTime"`
	RenderTime          float64  `json:"renderTime"`
	StateUpdates        float64  `json:"stateUpdates"`
	PropsReceived       float64  `json:"propsReceived"`
	PropsUsed           *float64 `json:"propsUsed"`
	OptimizationApplied string   `json:"optimizationApplied"`
}

// UnmarshalJSON decodes a record, rejecting mistyped and non-integral fields
// with a *ValidationError. A null propsUsed is treated as absent.
func (r *PerformanceRecord) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if typeErr.Field == "" {
				return &ValidationError{Reason: fmt.Sprintf("body must be a JSON object, got %s", typeErr.Value)}
			}
			return &ValidationError{Field: typeErr.Field, Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)}
		}
		return err
	}

	stateUpdates, err := toCount("stateUpdates", w.StateUpdates)
	if err != nil {
		return err
	}
	propsReceived, err := toCount("propsReceived", w.PropsReceived)
	if err != nil {
		return err
	}

	*r = PerformanceRecord{
		Component:           w.Component,
		Phase:               w.Phase,
		ActualDuration:      w.ActualDuration,
		BaseDuration:        w.BaseDuration,
		StartTime:           w.StartTime,
		CommitTime:          w.CommitTime,
		RenderTime:          w.RenderTime,
		StateUpdates:        stateUpdates,
		PropsReceived:       propsReceived,
		OptimizationApplied: w.OptimizationApplied,
	}
	if w.PropsUsed != nil {
		propsUsed, err := toCount("propsUsed", *w.PropsUsed)
		if err != nil {
			return err
		}
		r.PropsUsed = &propsUsed
	}
	return nil
}

func toCount(field string, v float64) (int64, error) {
	if v != math.Trunc(v) {
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("must be an integer, got %v", v)}
	}
	// float64(math.MaxInt64) rounds up to 1<<63, which int64 cannot hold.
	if v >= math.MaxInt64 || v < math.MinInt64 {
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("out of range, got %v", v)}
	}
	return int64(v), nil
}

// Normalize fills defaults that producers are allowed to leave empty.
func (r PerformanceRecord) Normalize() PerformanceRecord {
	if r.OptimizationApplied == "" {
		r.OptimizationApplied = NoOptimization
	}
	return r
}
