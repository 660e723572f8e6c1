// Package analyzer picks a component from the performance log and asks the
// predictive scorer how to optimize it.
//
// One run is: load the log, list components in first-seen order, let the
// operator choose one, take that component's latest record, build its
// feature vector and score it.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/renderscope/pkg/record"
	"github.com/nicktill/renderscope/pkg/scorer"
	"github.com/nicktill/renderscope/pkg/storage"
)

// Question is shown above the component list.
const Question = "Select a component to analyze:"

// ErrNoSelection is returned when the operator aborts the prompt.
var ErrNoSelection = errors.New("no component selected")

// Selector asks the operator to choose exactly one of choices.
type Selector interface {
	Select(question string, choices []string) (string, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(question string, choices []string) (string, error)

// Select calls f(question, choices).
func (f SelectorFunc) Select(question string, choices []string) (string, error) {
	return f(question, choices)
}

// Result is the outcome of a successful run.
type Result struct {
	Component  string                   `json:"component"`
	Record     record.PerformanceRecord `json:"record"`
	Features   record.FeatureVector     `json:"features"`
	Suggestion string                   `json:"suggestion"`
}

// Analyzer wires a source, a selector and a scorer together.
type Analyzer struct {
	Source   Source
	Selector Selector
	Scorer   scorer.Scorer
	Logger   *zap.Logger
}

// Run performs one analysis. An empty log or a component without records
// yields a *NoDataError and the scorer is never called.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	records, err := a.Source.Load(ctx)
	if err != nil {
		return nil, err
	}

	components := storage.DistinctComponents(records)
	logger.Debug("performance log loaded",
		zap.Int("records", len(records)),
		zap.Int("components", len(components)))
	if len(components) == 0 {
		return nil, &NoDataError{}
	}

	component, err := a.Selector.Select(Question, components)
	if err != nil {
		return nil, err
	}

	latest, ok := storage.LatestFor(records, component)
	if !ok {
		return nil, &NoDataError{Component: component}
	}

	features := record.Features(latest)
	logger.Debug("scoring component",
		zap.String("component", component),
		zap.Float64s("features", features[:]))

	start := time.Now()
	suggestion, err := a.Scorer.Score(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("failed to score %s: %w", component, err)
	}
	logger.Debug("scorer answered", zap.Duration("took", time.Since(start).Round(time.Millisecond)))

	return &Result{
		Component:  component,
		Record:     latest,
		Features:   features,
		Suggestion: suggestion,
	}, nil
}
