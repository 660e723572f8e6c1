// Command renderscope-analyze asks the predictive scorer how to optimize one
// component from the performance log and prints "Apply: <suggestion>".
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicktill/renderscope/pkg/analyzer"
	"github.com/nicktill/renderscope/pkg/config"
	"github.com/nicktill/renderscope/pkg/scorer"
	"github.com/nicktill/renderscope/pkg/storage/file"
	"github.com/nicktill/renderscope/pkg/ui"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitAborted = 130
)

// deps are the pieces tests replace.
type deps struct {
	env      config.Env
	in       io.Reader
	out      io.Writer
	selector analyzer.Selector // nil means the interactive prompt
	scorer   scorer.Scorer     // nil means the configured process scorer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(&deps{
		env: config.FromOS(nil),
		in:  os.Stdin,
		out: os.Stdout,
	})
	err := cmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func newRootCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:           "renderscope-analyze",
		Short:         "Suggest an optimization for a component from the performance log",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd.Context(), d)
		},
	}
}

func runAnalyze(ctx context.Context, d *deps) error {
	cfg := LoadConfig(d.env)

	logger := zap.NewNop()
	if cfg.Debug {
		l, err := config.NewLogger(true)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer l.Sync() //nolint:errcheck
		logger = l
	}

	printer := ui.NewPrinter(d.out)

	source, closeSource, err := openSource(cfg)
	if err != nil {
		printer.Error(err)
		return err
	}
	defer closeSource()

	a := &analyzer.Analyzer{
		Source:   source,
		Selector: d.selector,
		Scorer:   d.scorer,
		Logger:   logger,
	}
	if a.Selector == nil {
		a.Selector = ui.Prompt{In: d.in, Out: d.out}
	}
	if a.Scorer == nil {
		a.Scorer = newScorer(cfg, logger)
	}

	logger.Debug("analyzer starting",
		zap.String("source", cfg.Source),
		zap.String("scorer", cfg.Scorer),
		zap.Duration("scorer_timeout", cfg.ScorerTimeout))

	result, err := a.Run(ctx)
	switch {
	case err == nil:
		printer.Suggestion(result)
		return nil
	case errors.Is(err, analyzer.ErrNoData):
		printer.NoData(err)
		return nil
	case errors.Is(err, analyzer.ErrNoSelection):
		return err
	default:
		printer.Error(err)
		return err
	}
}

func openSource(cfg Config) (analyzer.Source, func(), error) {
	if cfg.Source == sourceFile {
		store, err := file.New(file.Config{Path: cfg.LogFile})
		if err != nil {
			return nil, nil, err
		}
		return analyzer.StoreSource{Store: store}, func() { store.Close() }, nil
	}

	src, err := analyzer.NewHTTPSource(cfg.ServerURL)
	if err != nil {
		return nil, nil, err
	}
	return src, func() {}, nil
}

func newScorer(cfg Config, logger *zap.Logger) scorer.Scorer {
	ps := scorer.NewProcessScorer(cfg.Scorer, cfg.ScorerTimeout)
	ps.Logger = logger
	if cfg.ScorerAttempts <= 1 {
		return ps
	}
	return &scorer.Retrying{
		Scorer:   ps,
		Attempts: cfg.ScorerAttempts,
		Backoff:  config.ScorerRetryBackoff,
	}
}

// exitCode maps a run error to the process status. No data is a normal
// outcome; an aborted prompt is reported like an interrupt.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, analyzer.ErrNoData):
		return exitOK
	case errors.Is(err, analyzer.ErrNoSelection):
		return exitAborted
	default:
		return exitFailure
	}
}
