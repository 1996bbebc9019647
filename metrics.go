package qproc

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

/*
Metrics tracks what a process has sent to its executor. Latencies of the most
recent submissions are kept in a sliding window for the percentiles.
*/
type Metrics struct {
	mu sync.RWMutex

	Submissions int64
	Failures    int64
	Primitives  int64
	Ancillas    int64

	TotalExecutionTime time.Duration
	LastExecutionTime  time.Duration
	P95ExecutionTime   time.Duration

	latencies  []float64
	windowSize int
}

func newMetrics() *Metrics {
	return &Metrics{
		latencies:  make([]float64, 0, 256),
		windowSize: 256,
	}
}

// recordSubmission accounts one executor call.
func (m *Metrics) recordSubmission(start time.Time, primitives, ancillas int, success bool) {
	duration := time.Since(start)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Submissions++
	if !success {
		m.Failures++
	}
	m.Primitives += int64(primitives)
	m.Ancillas += int64(ancillas)
	m.TotalExecutionTime += duration
	m.LastExecutionTime = duration

	m.latencies = append(m.latencies, float64(duration))
	if len(m.latencies) > m.windowSize {
		m.latencies = m.latencies[len(m.latencies)-m.windowSize:]
	}

	sorted := append([]float64(nil), m.latencies...)
	sort.Float64s(sorted)
	m.P95ExecutionTime = time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil))
}

// ExportMetrics returns a snapshot of the counters.
func (m *Metrics) ExportMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"submissions":          m.Submissions,
		"failures":             m.Failures,
		"primitives":           m.Primitives,
		"ancillas":             m.Ancillas,
		"total_execution_time": m.TotalExecutionTime,
		"last_execution_time":  m.LastExecutionTime,
		"p95_execution_time":   m.P95ExecutionTime,
	}
}
