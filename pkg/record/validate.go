package record

import (
	"errors"
	"fmt"
	"math"
)

// Validation limits
const (
	MaxComponentLength    = 256  // Maximum component identifier length
	MaxPhaseLength        = 64   // Maximum phase label length
	MaxOptimizationLength = 1024 // Maximum optimizationApplied label length
)

// ErrInvalidRecord matches any *ValidationError via errors.Is.
var ErrInvalidRecord = errors.New("invalid performance record")

// ValidationError reports a record that violates a data model invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid performance record: %s", e.Reason)
	}
	return fmt.Sprintf("invalid performance record: %s %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidRecord) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRecord
}

// Validate checks the invariants every stored record must satisfy.
func Validate(r PerformanceRecord) error {
	if r.Component == "" {
		return &ValidationError{Field: "component", Reason: "must not be empty"}
	}
	if len(r.Component) > MaxComponentLength {
		return &ValidationError{Field: "component", Reason: fmt.Sprintf("too long (%d chars, max %d)", len(r.Component), MaxComponentLength)}
	}
	if len(r.Phase) > MaxPhaseLength {
		return &ValidationError{Field: "phase", Reason: fmt.Sprintf("too long (max %d chars)", MaxPhaseLength)}
	}
	if len(r.OptimizationApplied) > MaxOptimizationLength {
		return &ValidationError{Field: "optimizationApplied", Reason: fmt.Sprintf("too long (max %d chars)", MaxOptimizationLength)}
	}

	timings := []struct {
		name  string
		value float64
	}{
		{"actualDuration", r.ActualDuration},
		{"baseDuration", r.BaseDuration},
		{"startTime", r.StartTime},
		{"commitTime", r.CommitTime},
		{"renderTime", r.RenderTime},
	}
	for _, t := range timings {
		if math.IsNaN(t.value) || math.IsInf(t.value, 0) {
			return &ValidationError{Field: t.name, Reason: "must be finite"}
		}
		if t.value < 0 {
			return &ValidationError{Field: t.name, Reason: fmt.Sprintf("must be >= 0, got %v", t.value)}
		}
	}

	if r.StateUpdates < 0 {
		return &ValidationError{Field: "stateUpdates", Reason: fmt.Sprintf("must be >= 0, got %d", r.StateUpdates)}
	}
	if r.PropsReceived < 0 {
		return &ValidationError{Field: "propsReceived", Reason: fmt.Sprintf("must be >= 0, got %d", r.PropsReceived)}
	}
	if r.PropsUsed != nil && *r.PropsUsed < 0 {
		return &ValidationError{Field: "propsUsed", Reason: fmt.Sprintf("must be >= 0, got %d", *r.PropsUsed)}
	}

	return nil
}
