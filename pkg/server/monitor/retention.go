package monitor

import (
	"sync"
	"time"

	"github.com/nicktill/renderscope/pkg/config"
)

// MaxConsecutiveFailures is how many failed retention passes in a row are
// tolerated before the service reports itself degraded.
const MaxConsecutiveFailures = 3

// RetentionMonitor tracks retention health and failures.
// The zero value is ready to use.
type RetentionMonitor struct {
	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	lastRemoved       int
	totalRemoved      int64
	consecutiveErrors int
	lastError         string

	// StaleAfter is how long a success stays fresh (default 2x the retention interval)
	StaleAfter time.Duration
}

// RecordSuccess records a successful retention pass that removed n records.
func (rm *RetentionMonitor) RecordSuccess(removed int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	now := time.Now()
	rm.lastSuccess = now
	rm.lastAttempt = now
	rm.lastRemoved = removed
	rm.totalRemoved += int64(removed)
	rm.consecutiveErrors = 0
	rm.lastError = ""
}

// RecordFailure records a failed retention pass.
func (rm *RetentionMonitor) RecordFailure(err error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.lastAttempt = time.Now()
	rm.consecutiveErrors++
	if err != nil {
		rm.lastError = err.Error()
	}
}

// ConsecutiveErrors returns the current failure streak.
func (rm *RetentionMonitor) ConsecutiveErrors() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.consecutiveErrors
}

// IsHealthy returns true if retention is working properly.
// Unhealthy conditions:
//   - Never succeeded
//   - No success within StaleAfter
//   - More than MaxConsecutiveFailures consecutive failures
func (rm *RetentionMonitor) IsHealthy() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.healthyLocked()
}

func (rm *RetentionMonitor) healthyLocked() bool {
	if rm.lastSuccess.IsZero() {
		return false
	}
	if time.Since(rm.lastSuccess) > rm.staleAfter() {
		return false
	}
	return rm.consecutiveErrors <= MaxConsecutiveFailures
}

func (rm *RetentionMonitor) staleAfter() time.Duration {
	if rm.StaleAfter > 0 {
		return rm.StaleAfter
	}
	return 2 * config.RetentionInterval
}

// RetentionStatus is the retention section of the health response.
type RetentionStatus struct {
	Healthy           bool   `json:"healthy"`
	Policy            string `json:"policy,omitempty"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	LastRemoved       int    `json:"last_removed"`
	TotalRemoved      int64  `json:"total_removed"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns current retention status for health checks.
func (rm *RetentionMonitor) Status() RetentionStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	status := RetentionStatus{
		Healthy:      rm.healthyLocked(),
		LastRemoved:  rm.lastRemoved,
		TotalRemoved: rm.totalRemoved,
	}

	if !rm.lastSuccess.IsZero() {
		status.LastSuccess = rm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(rm.lastSuccess).Round(time.Second).String()
	}

	if !rm.lastAttempt.IsZero() {
		status.LastAttempt = rm.lastAttempt.Format(time.RFC3339)
	}

	if rm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = rm.consecutiveErrors
		status.LastError = rm.lastError
	}

	return status
}
