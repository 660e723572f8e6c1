package scorer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/renderscope/pkg/record"
)

// maxStderr bounds the diagnostics carried on a ScorerError.
const maxStderr = 2048

// waitDelay is how long Score waits for the scorer's pipes to close after
// the process was killed, in case it left children holding them.
const waitDelay = 2 * time.Second

// ProcessScorer runs an external program once per Score call.
type ProcessScorer struct {
	Command string
	Args    []string
	Timeout time.Duration // 0 disables the deadline
	Dir     string        // working directory, "" for the current one
	Env     []string      // extra KEY=VALUE entries on top of the process environment
	Logger  *zap.Logger
}

// NewProcessScorer splits a command line such as "python3 ai_model/predict.py"
// into program and leading arguments.
func NewProcessScorer(commandLine string, timeout time.Duration) *ProcessScorer {
	fields := strings.Fields(commandLine)
	s := &ProcessScorer{Timeout: timeout}
	if len(fields) > 0 {
		s.Command = fields[0]
		s.Args = fields[1:]
	}
	return s
}

// String returns the command line without the feature argument.
func (s *ProcessScorer) String() string {
	return strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
}

// Score runs the scorer with the encoded features as its final argument and
// returns the first non-empty stdout line.
func (s *ProcessScorer) Score(ctx context.Context, features record.FeatureVector) (string, error) {
	if s.Command == "" {
		return "", &ScorerError{Reason: "no scorer command configured"}
	}

	arg, err := features.Encode()
	if err != nil {
		return "", &ScorerError{Command: s.String(), Reason: "cannot encode features", Err: err}
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, s.Args...), arg)
	cmd := exec.CommandContext(ctx, s.Command, args...)
	cmd.Dir = s.Dir
	cmd.WaitDelay = waitDelay
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := s.logger()
	start := time.Now()
	logger.Debug("invoking scorer", zap.String("command", s.String()), zap.String("features", arg))

	runErr := cmd.Run()
	diagnostics := truncate(strings.TrimSpace(stderr.String()), maxStderr)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return "", &ScorerError{Command: s.String(), ExitCode: -1, Timeout: true, Stderr: diagnostics, Err: ErrTimeout}
		}
		return "", &ScorerError{Command: s.String(), ExitCode: -1, Reason: "cancelled", Err: ctxErr}
	}

	if runErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		// Some scorers report their failure on stdout.
		if diagnostics == "" {
			diagnostics = truncate(strings.TrimSpace(stdout.String()), maxStderr)
		}
		return "", &ScorerError{Command: s.String(), ExitCode: exitCode, Stderr: diagnostics, Reason: "process failed", Err: runErr}
	}

	if diagnostics != "" {
		logger.Debug("scorer diagnostics", zap.String("stderr", diagnostics))
	}

	suggestion := firstLine(stdout.String())
	if suggestion == "" {
		return "", &ScorerError{Command: s.String(), Stderr: diagnostics, Reason: "empty output"}
	}

	logger.Debug("scorer answered",
		zap.String("suggestion", suggestion),
		zap.Duration("took", time.Since(start).Round(time.Millisecond)))
	return suggestion, nil
}

func (s *ProcessScorer) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

func firstLine(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
