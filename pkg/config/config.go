package config

import "time"

// Server defaults
const (
	DefaultPort          = "5001"
	DefaultBackend       = "file"
	DefaultLogFile       = "./data/performance_logs.json"
	DefaultDataDir       = "./data/badger"
	DefaultMaxStorageMB  = 512
	DefaultMaxMemoryMB   = 48
	DefaultAllowedOrigin = "http://localhost:3000,http://localhost:5173"
)

// Background task intervals
const (
	RetentionInterval = 1 * time.Hour
	BadgerGCInterval  = 10 * time.Minute
)

// HTTP server limits
const (
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
	ShutdownTimeout    = 30 * time.Second
	MaxRecordBodyBytes = 1 << 20
)

// Ingest timeouts
const (
	IngestTimeout   = 5 * time.Second
	RetrieveTimeout = 10 * time.Second
	StatsTimeout    = 5 * time.Second
	ExportTimeout   = 30 * time.Second
	ImportTimeout   = 60 * time.Second
)

// MaxImportBodyBytes bounds a POST /v1/import body
const MaxImportBodyBytes = 64 << 20

// Analyzer defaults
const (
	DefaultServerURL      = "http://localhost:5001"
	DefaultSource         = "http"
	DefaultScorerCommand  = "python3 ai_model/predict.py"
	DefaultScorerTimeout  = 30 * time.Second
	DefaultScorerAttempts = 1
	ScorerRetryBackoff    = 2 * time.Second
	FetchTimeout          = 15 * time.Second
)

// Producer SDK defaults
const (
	SDKQueueSize     = 1024
	SDKSendTimeout   = 5 * time.Second
	SDKRatePerSecond = 200
	SDKRateBurst     = 50
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)
