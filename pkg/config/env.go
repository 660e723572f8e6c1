package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Env reads configuration from environment variables. Invalid values are
// logged and replaced by the default.
type Env struct {
	Logger *zap.Logger
	lookup func(string) (string, bool)
}

// FromOS returns an Env backed by the process environment.
func FromOS(logger *zap.Logger) Env {
	return Env{Logger: logger, lookup: os.LookupEnv}
}

// FromMap returns an Env backed by vars, for tests.
func FromMap(logger *zap.Logger, vars map[string]string) Env {
	return Env{Logger: logger, lookup: func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}}
}

func (e Env) get(key string) string {
	if e.lookup == nil {
		return ""
	}
	v, _ := e.lookup(key)
	return strings.TrimSpace(v)
}

func (e Env) invalid(key, val string, def interface{}) {
	if e.Logger != nil {
		e.Logger.Warn("invalid environment value, using default",
			zap.String("key", key), zap.String("value", val), zap.Any("default", def))
	}
}

// String returns the value of key or def when unset
func (e Env) String(key, def string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return def
}

// Int64 gets an int64 from key or returns def
func (e Env) Int64(key string, def int64) int64 {
	val := e.get(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		e.invalid(key, val, def)
		return def
	}
	return parsed
}

// Duration gets a time.Duration ("30s", "2m") from key or returns def
func (e Env) Duration(key string, def time.Duration) time.Duration {
	val := e.get(key)
	if val == "" {
		return def
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		e.invalid(key, val, def)
		return def
	}
	return parsed
}

// Bool reports whether key is set to a true value ("1", "true", ...)
func (e Env) Bool(key string) bool {
	val := e.get(key)
	if val == "" {
		return false
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		e.invalid(key, val, false)
		return false
	}
	return b
}

// List splits a comma separated value, dropping empty entries
func (e Env) List(key, def string) []string {
	var out []string
	for _, part := range strings.Split(e.String(key, def), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
