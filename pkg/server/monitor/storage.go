package monitor

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultCacheDuration bounds how often the storage path is walked.
const DefaultCacheDuration = 10 * time.Second

// StorageMonitor tracks on-disk usage of the log store with caching to
// avoid a filesystem walk per request.
type StorageMonitor struct {
	path          string
	maxBytes      int64
	cachedUsage   int64
	lastCheck     time.Time
	cacheDuration time.Duration
	mu            sync.RWMutex
}

// NewStorageMonitor creates a storage monitor for path, which may be a
// directory (badger) or a single file (file backend). An empty path reports
// zero usage, which is what the memory backend has on disk.
func NewStorageMonitor(path string, maxBytes int64) *StorageMonitor {
	return &StorageMonitor{
		path:          path,
		maxBytes:      maxBytes,
		cacheDuration: DefaultCacheDuration,
	}
}

// GetUsage returns current storage usage in bytes (cached).
func (sm *StorageMonitor) GetUsage() (int64, error) {
	if sm.path == "" {
		return 0, nil
	}

	sm.mu.RLock()
	if !sm.lastCheck.IsZero() && time.Since(sm.lastCheck) < sm.cacheDuration {
		usage := sm.cachedUsage
		sm.mu.RUnlock()
		return usage, nil
	}
	sm.mu.RUnlock()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	// Another goroutine may have refreshed while we waited
	if !sm.lastCheck.IsZero() && time.Since(sm.lastCheck) < sm.cacheDuration {
		return sm.cachedUsage, nil
	}

	usage, err := calculateSize(sm.path)
	if err != nil {
		return 0, err
	}

	sm.cachedUsage = usage
	sm.lastCheck = time.Now()
	return usage, nil
}

// GetLimit returns the configured storage limit in bytes.
func (sm *StorageMonitor) GetLimit() int64 {
	return sm.maxBytes
}

// OverLimit reports whether usage exceeds the limit. A limit <= 0 disables the check.
func (sm *StorageMonitor) OverLimit() (bool, error) {
	if sm.maxBytes <= 0 {
		return false, nil
	}
	usage, err := sm.GetUsage()
	if err != nil {
		return false, err
	}
	return usage > sm.maxBytes, nil
}

// calculateSize sums actual disk usage (not logical size) below path, so
// sparse files and preallocated value logs are counted correctly.
func calculateSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += diskUsage(filePath, info)
		}
		return nil
	})
	return size, err
}
