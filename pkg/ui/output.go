package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nicktill/renderscope/pkg/analyzer"
	"github.com/nicktill/renderscope/pkg/record"
)

// Printer writes analyzer outcomes to a terminal.
type Printer struct {
	w      io.Writer
	styles styles
}

// NewPrinter creates a printer; colours are used only when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styles: newStyles(lipgloss.NewRenderer(w))}
}

// Suggestion prints the scorer's answer. The "Apply: <suggestion>" line is
// the contract scripts rely on.
func (p *Printer) Suggestion(result *analyzer.Result) {
	fmt.Fprintf(p.w, "\n%s %s\n",
		p.styles.title.Render("Suggestion for "+result.Component),
		p.styles.muted.Render(formatFeatures(result.Features)))
	fmt.Fprintf(p.w, "%s %s\n\n", p.styles.success.Render("Apply:"), result.Suggestion)
}

// NoData prints the normal "nothing to analyze" outcome.
func (p *Printer) NoData(err error) {
	fmt.Fprintln(p.w, p.styles.warning.Render(err.Error()))
}

// Error prints a failure as a single line.
func (p *Printer) Error(err error) {
	msg := strings.ReplaceAll(strings.TrimSpace(err.Error()), "\n", " ")
	fmt.Fprintln(p.w, p.styles.err.Render("Error: "+msg))
}

func formatFeatures(f record.FeatureVector) string {
	parts := make([]string, len(f))
	for i, v := range f {
		parts[i] = fmt.Sprintf("%s=%g", record.FeatureNames[i], v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
