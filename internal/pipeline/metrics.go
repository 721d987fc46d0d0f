package pipeline

import (
	"sync"
	"time"

	"github.com/conneroisu/blockpipe/internal/scheduler"
)

// Metrics counts the runs of a session.
type Metrics struct {
	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64
	TasksRun       int64
	TasksSkipped   int64
	TotalDuration  time.Duration
	LastRun        time.Time
	LastError      string

	mutex sync.RWMutex
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRun adds a finished run.
func (m *Metrics) RecordRun(s *scheduler.Summary) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRuns++
	m.TotalDuration += s.Duration
	m.TasksRun += int64(s.Succeeded + s.Failed)
	m.TasksSkipped += int64(s.Skipped)
	m.LastRun = time.Now()

	if s.Err != nil {
		m.FailedRuns++
		m.LastError = s.Err.Error()
	} else {
		m.SuccessfulRuns++
		m.LastError = ""
	}
}

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() Metrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return Metrics{
		TotalRuns:      m.TotalRuns,
		SuccessfulRuns: m.SuccessfulRuns,
		FailedRuns:     m.FailedRuns,
		TasksRun:       m.TasksRun,
		TasksSkipped:   m.TasksSkipped,
		TotalDuration:  m.TotalDuration,
		LastRun:        m.LastRun,
		LastError:      m.LastError,
	}
}

// AverageDuration is the mean wall time of a run.
func (m *Metrics) AverageDuration() time.Duration {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.TotalRuns == 0 {
		return 0
	}
	return m.TotalDuration / time.Duration(m.TotalRuns)
}

// Status is the health view of the metrics.
func (m *Metrics) Status() map[string]interface{} {
	s := m.Snapshot()
	status := map[string]interface{}{
		"runs":             s.TotalRuns,
		"failed_runs":      s.FailedRuns,
		"average_duration": m.AverageDuration().String(),
	}
	if !s.LastRun.IsZero() {
		status["last_run"] = s.LastRun.Format(time.RFC3339)
	}
	if s.LastError != "" {
		status["last_error"] = s.LastError
	}
	return status
}
