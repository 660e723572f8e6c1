// Package scorer invokes the external predictive model that turns a
// component's feature vector into an optimization suggestion.
//
// The model is a separate process: it receives one argument, the feature
// vector as a JSON array, and prints the suggestion on stdout. Anything it
// writes to stderr is treated as diagnostics.
//
//	s := scorer.NewProcessScorer("python3 ai_model/predict.py", 30*time.Second)
//	suggestion, err := s.Score(ctx, record.FeatureVector{80, 80, 1, 2, -1})
//	if errors.Is(err, scorer.ErrTimeout) { ... }
package scorer

import (
	"context"
	"errors"
	"fmt"

	"github.com/nicktill/renderscope/pkg/record"
)

var (
	// ErrScorer matches any *ScorerError via errors.Is.
	ErrScorer = errors.New("scorer error")

	// ErrTimeout matches a scorer that did not answer within its deadline.
	ErrTimeout = errors.New("scorer timed out")
)

// Scorer produces an optimization suggestion for a feature vector.
type Scorer interface {
	Score(ctx context.Context, features record.FeatureVector) (string, error)
}

// Func adapts an ordinary function to the Scorer interface.
type Func func(ctx context.Context, features record.FeatureVector) (string, error)

// Score calls f(ctx, features).
func (f Func) Score(ctx context.Context, features record.FeatureVector) (string, error) {
	return f(ctx, features)
}

// ScorerError reports a scorer that failed, timed out or answered with nothing.
type ScorerError struct {
	Command  string
	ExitCode int    // -1 when the process did not exit normally
	Stderr   string // trimmed diagnostics
	Reason   string
	Timeout  bool
	Err      error
}

func (e *ScorerError) Error() string {
	msg := "scorer"
	if e.Command != "" {
		msg += " " + e.Command
	}
	switch {
	case e.Timeout:
		msg += ": timed out"
	case e.Reason != "":
		msg += ": " + e.Reason
	default:
		msg += ": failed"
	}
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil && !e.Timeout {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ScorerError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrScorer always and ErrTimeout for timeouts.
func (e *ScorerError) Is(target error) bool {
	switch target {
	case ErrScorer:
		return true
	case ErrTimeout:
		return e.Timeout
	}
	return false
}
