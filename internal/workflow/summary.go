package workflow

import (
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const latencyWindowSize = 4096

// LatencyStats summarizes the most recent latency observations.
type LatencyStats struct {
	Count uint64
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Summary is the outcome of one session.
type Summary struct {
	Status
	History          []Transition
	FrameLatency     LatencyStats
	InferenceLatency LatencyStats
	DrainAborted     bool
}

// Clean reports whether the session ended without a fault.
func (s Summary) Clean() bool {
	return s.State == StateStopped && s.LastError == nil
}

func (m *Manager) summary() Summary {
	return Summary{
		Status:           m.Status(),
		History:          m.History(),
		FrameLatency:     m.frameLat.stats(),
		InferenceLatency: m.inferLat.stats(),
		DrainAborted:     m.counters.drainAborted.Load(),
	}
}

// latencyWindow keeps the last observations in a ring. Max and Count cover
// the whole session.
type latencyWindow struct {
	mu      sync.Mutex
	samples []float64
	next    int
	count   uint64
	max     time.Duration
}

func newLatencyWindow(size int) *latencyWindow {
	return &latencyWindow{samples: make([]float64, 0, size)}
}

func (w *latencyWindow) add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.samples) < cap(w.samples) {
		w.samples = append(w.samples, float64(d))
	} else {
		w.samples[w.next] = float64(d)
		w.next = (w.next + 1) % len(w.samples)
	}
	w.count++
	w.max = max(w.max, d)
}

func (w *latencyWindow) stats() LatencyStats {
	w.mu.Lock()
	sorted := slices.Clone(w.samples)
	out := LatencyStats{Count: w.count, Max: w.max}
	w.mu.Unlock()

	if len(sorted) == 0 {
		return out
	}
	slices.Sort(sorted)
	out.P50 = quantile(0.50, sorted)
	out.P95 = quantile(0.95, sorted)
	out.P99 = quantile(0.99, sorted)
	return out
}

func quantile(p float64, sorted []float64) time.Duration {
	return time.Duration(stat.Quantile(p, stat.Empirical, sorted, nil))
}
