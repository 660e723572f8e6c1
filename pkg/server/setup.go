package server

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/nicktill/renderscope/pkg/config"
	"github.com/nicktill/renderscope/pkg/export"
	"github.com/nicktill/renderscope/pkg/ingest"
	"github.com/nicktill/renderscope/pkg/retention"
	"github.com/nicktill/renderscope/pkg/server/monitor"
	"github.com/nicktill/renderscope/pkg/storage"
	"github.com/nicktill/renderscope/pkg/storage/badger"
	"github.com/nicktill/renderscope/pkg/storage/file"
	"github.com/nicktill/renderscope/pkg/storage/memory"
)

// Storage backends
const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Config holds server configuration.
type Config struct {
	Backend             string
	LogFile             string
	DataDir             string
	MaxStorageMB        int64
	MaxMemoryMB         int64
	RetentionMaxRecords int64
	AllowedOrigins      []string
	Port                string
	Debug               bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig(env config.Env) Config {
	return Config{
		Backend:             strings.ToLower(env.String("RENDERSCOPE_BACKEND", config.DefaultBackend)),
		LogFile:             env.String("RENDERSCOPE_LOG_FILE", config.DefaultLogFile),
		DataDir:             env.String("RENDERSCOPE_DATA_DIR", config.DefaultDataDir),
		MaxStorageMB:        env.Int64("RENDERSCOPE_MAX_STORAGE_MB", config.DefaultMaxStorageMB),
		MaxMemoryMB:         env.Int64("RENDERSCOPE_MAX_MEMORY_MB", config.DefaultMaxMemoryMB),
		RetentionMaxRecords: env.Int64("RENDERSCOPE_RETENTION_MAX_RECORDS", 0),
		AllowedOrigins:      env.List("RENDERSCOPE_ALLOWED_ORIGINS", config.DefaultAllowedOrigin),
		Port:                env.String("PORT", config.DefaultPort),
		Debug:               env.Bool("RENDERSCOPE_DEBUG"),
	}
}

// StoragePath is the on-disk location the storage monitor measures.
func (c Config) StoragePath() string {
	switch c.Backend {
	case BackendFile:
		return filepath.Dir(c.LogFile)
	case BackendBadger:
		return c.DataDir
	default:
		return ""
	}
}

// InitializeStorage opens the configured log store backend.
func InitializeStorage(cfg Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case BackendFile:
		store, err := file.New(file.Config{Path: cfg.LogFile})
		if err != nil {
			return nil, err
		}
		logger.Info("file storage initialized", zap.String("path", cfg.LogFile))
		return store, nil

	case BackendBadger:
		store, err := badger.New(badger.Config{
			Path:        cfg.DataDir,
			MaxMemoryMB: cfg.MaxMemoryMB,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("badger storage initialized",
			zap.String("path", cfg.DataDir),
			zap.Int64("max_memory_mb", cfg.MaxMemoryMB))
		return store, nil

	case BackendMemory:
		logger.Warn("memory storage initialized, records are lost on exit")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q (want %s, %s or %s)",
			cfg.Backend, BackendFile, BackendBadger, BackendMemory)
	}
}

// Handlers bundles every request handler the router needs.
type Handlers struct {
	Ingest    *ingest.Handler
	Export    *export.Handler
	Hub       *ingest.RecordHub
	Storage   *monitor.StorageMonitor
	Retention *monitor.RetentionMonitor
	Registry  *prometheus.Registry
	Policy    storage.RetentionPolicy
}

// InitializeHandlers creates and configures all request handlers.
func InitializeHandlers(cfg Config, store storage.Store, logger *zap.Logger) *Handlers {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := ingest.NewRecordHub(logger.Named("ws"), cfg.AllowedOrigins...)

	ingestHandler := ingest.NewHandler(store, logger.Named("ingest"))
	ingestHandler.SetMetrics(ingest.NewMetrics(reg, store))
	ingestHandler.SetHub(hub)

	storageMonitor := monitor.NewStorageMonitor(cfg.StoragePath(), cfg.MaxStorageMB*1024*1024)

	logger.Debug("handlers created",
		zap.String("backend", cfg.Backend),
		zap.Int64("max_storage_mb", cfg.MaxStorageMB))

	return &Handlers{
		Ingest:    ingestHandler,
		Export:    export.NewHandler(store, logger.Named("export")),
		Hub:       hub,
		Storage:   storageMonitor,
		Retention: &monitor.RetentionMonitor{},
		Registry:  reg,
		Policy:    retention.PolicyFor(cfg.RetentionMaxRecords),
	}
}

// InitializeRetention creates the retention runner for the configured policy.
func InitializeRetention(store storage.Store, policy storage.RetentionPolicy, logger *zap.Logger) *retention.Runner {
	runner := retention.New(store, policy, logger.Named("retention"))
	logger.Info("retention runner ready",
		zap.String("policy", runner.Policy().Name()),
		zap.Duration("interval", config.RetentionInterval))
	return runner
}
