package main

import (
	"time"

	"github.com/nicktill/renderscope/pkg/config"
)

const (
	sourceHTTP = "http"
	sourceFile = "file"
)

// Config holds the analyzer's environment settings. The command takes no
// flags; everything comes from RENDERSCOPE_* variables.
type Config struct {
	ServerURL      string
	Source         string
	LogFile        string
	Scorer         string
	ScorerTimeout  time.Duration
	ScorerAttempts int
	Debug          bool
}

// LoadConfig reads the analyzer settings from env.
func LoadConfig(env config.Env) Config {
	cfg := Config{
		ServerURL:      env.String("RENDERSCOPE_SERVER_URL", config.DefaultServerURL),
		Source:         env.String("RENDERSCOPE_SOURCE", config.DefaultSource),
		LogFile:        env.String("RENDERSCOPE_LOG_FILE", config.DefaultLogFile),
		Scorer:         env.String("RENDERSCOPE_SCORER", config.DefaultScorerCommand),
		ScorerTimeout:  env.Duration("RENDERSCOPE_SCORER_TIMEOUT", config.DefaultScorerTimeout),
		ScorerAttempts: int(env.Int64("RENDERSCOPE_SCORER_ATTEMPTS", config.DefaultScorerAttempts)),
		Debug:          env.Bool("RENDERSCOPE_DEBUG"),
	}
	if cfg.Source != sourceHTTP && cfg.Source != sourceFile {
		if env.Logger != nil {
			env.Logger.Sugar().Warnf("unknown RENDERSCOPE_SOURCE %q, using %q", cfg.Source, sourceHTTP)
		}
		cfg.Source = sourceHTTP
	}
	if cfg.ScorerAttempts < 1 {
		cfg.ScorerAttempts = 1
	}
	return cfg
}
