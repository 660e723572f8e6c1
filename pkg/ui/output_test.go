package ui

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nicktill/renderscope/pkg/analyzer"
	"github.com/nicktill/renderscope/pkg/record"
)

func TestPrinter_Suggestion(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Suggestion(&analyzer.Result{
		Component:  "ComponentA",
		Features:   record.FeatureVector{80, 80, 1, 2, -1},
		Suggestion: "memoization",
	})

	out := buf.String()
	assert.Contains(t, out, "Apply: memoization\n")
	assert.Contains(t, out, "ComponentA")
	assert.Contains(t, out, "actualDuration=80")
	assert.Contains(t, out, "propsUsed=-1")
}

func TestPrinter_ErrorIsSingleLine(t *testing.T) {
	var buf bytes.Buffer
	err := fmt.Errorf("failed to score ComponentA: %w", errors.New("Traceback\n  File predict.py\n"))
	NewPrinter(&buf).Error(err)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.True(t, strings.HasPrefix(out, "Error: failed to score ComponentA"))
}

func TestPrinter_NoData(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).NoData(&analyzer.NoDataError{})
	assert.Equal(t, "no performance logs found\n", buf.String())
}
