package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetentionMonitor_RecordSuccess(t *testing.T) {
	rm := &RetentionMonitor{}
	rm.RecordSuccess(3)
	rm.RecordSuccess(2)

	status := rm.Status()
	assert.True(t, status.Healthy)
	assert.Equal(t, 0, status.ConsecutiveErrors)
	assert.Empty(t, status.LastError)
	assert.Equal(t, 2, status.LastRemoved)
	assert.Equal(t, int64(5), status.TotalRemoved)
}

func TestRetentionMonitor_RecordFailure(t *testing.T) {
	rm := &RetentionMonitor{}
	rm.RecordFailure(errors.New("disk full"))

	status := rm.Status()
	assert.Equal(t, 1, status.ConsecutiveErrors)
	assert.Equal(t, "disk full", status.LastError)
	assert.Equal(t, 1, rm.ConsecutiveErrors())
}

func TestRetentionMonitor_IsHealthy(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*RetentionMonitor)
		expected bool
	}{
		{
			name:     "never succeeded",
			setup:    func(*RetentionMonitor) {},
			expected: false,
		},
		{
			name: "recent success",
			setup: func(rm *RetentionMonitor) {
				rm.RecordSuccess(0)
			},
			expected: true,
		},
		{
			name: "stale success",
			setup: func(rm *RetentionMonitor) {
				rm.mu.Lock()
				rm.lastSuccess = time.Now().Add(-3 * time.Hour)
				rm.mu.Unlock()
			},
			expected: false,
		},
		{
			name: "custom staleness window",
			setup: func(rm *RetentionMonitor) {
				rm.StaleAfter = 6 * time.Hour
				rm.mu.Lock()
				rm.lastSuccess = time.Now().Add(-3 * time.Hour)
				rm.mu.Unlock()
			},
			expected: true,
		},
		{
			name: "failures within tolerance",
			setup: func(rm *RetentionMonitor) {
				rm.RecordSuccess(0)
				for i := 0; i < MaxConsecutiveFailures; i++ {
					rm.RecordFailure(errors.New("transient"))
				}
			},
			expected: true,
		},
		{
			name: "too many consecutive errors",
			setup: func(rm *RetentionMonitor) {
				rm.RecordSuccess(0)
				for i := 0; i <= MaxConsecutiveFailures; i++ {
					rm.RecordFailure(errors.New("persistent"))
				}
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := &RetentionMonitor{}
			tt.setup(rm)
			assert.Equal(t, tt.expected, rm.IsHealthy())
		})
	}
}

func TestRetentionMonitor_Status(t *testing.T) {
	rm := &RetentionMonitor{}
	rm.RecordSuccess(0)

	status := rm.Status()
	assert.True(t, status.Healthy)
	assert.NotEmpty(t, status.LastSuccess)
	assert.NotEmpty(t, status.TimeSinceSuccess)
	assert.NotEmpty(t, status.LastAttempt)
}
