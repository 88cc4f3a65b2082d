package workflow

import (
	"sync/atomic"
	"time"

	"oakpipe/internal/stage"
)

type counters struct {
	framesProcessed atomic.Uint64
	framesAnnotated atomic.Uint64
	framesRejected  atomic.Uint64
	frameTimeouts   atomic.Uint64

	inferenceRuns     atomic.Uint64
	inferenceTimeouts atomic.Uint64
	inferenceSkipped  atomic.Uint64
	inferenceErrors   atomic.Uint64

	samplesForwarded atomic.Uint64
	samplesRejected  atomic.Uint64

	sensorLost      atomic.Bool
	recordingFailed atomic.Bool
	drainAborted    atomic.Bool
}

// Status represents lightweight session diagnostics.
type Status struct {
	State     RunState
	Uptime    time.Duration
	LastError error

	FramesProcessed uint64
	FramesAnnotated uint64
	FramesRejected  uint64
	FrameTimeouts   uint64

	InferenceRuns     uint64
	InferenceTimeouts uint64
	InferenceSkipped  uint64
	InferenceErrors   uint64

	SamplesForwarded uint64
	SamplesRejected  uint64
	SensorLost       bool

	Recorder        stage.RecorderStats
	RecordingFailed bool
	StageHealth     []stage.Health
}

// Status returns the latest session information. It is safe to call from any
// goroutine while Run is in progress.
func (m *Manager) Status() Status {
	m.mu.RLock()
	state := m.state
	lastErr := m.lastErr
	uptime := m.uptimeLocked()
	display := m.stages.Display
	m.mu.RUnlock()

	c := &m.counters
	rec := m.stages.Recorder.Stats()
	status := Status{
		State:             state,
		Uptime:            uptime,
		LastError:         lastErr,
		FramesProcessed:   c.framesProcessed.Load(),
		FramesAnnotated:   c.framesAnnotated.Load(),
		FramesRejected:    c.framesRejected.Load(),
		FrameTimeouts:     c.frameTimeouts.Load(),
		InferenceRuns:     c.inferenceRuns.Load(),
		InferenceTimeouts: c.inferenceTimeouts.Load(),
		InferenceSkipped:  c.inferenceSkipped.Load(),
		InferenceErrors:   c.inferenceErrors.Load(),
		SamplesForwarded:  c.samplesForwarded.Load(),
		SamplesRejected:   c.samplesRejected.Load(),
		SensorLost:        c.sensorLost.Load(),
		Recorder:          rec,
		RecordingFailed:   c.recordingFailed.Load() || rec.VideoFailed || rec.SensorFailed,
	}
	status.StageHealth = m.health(status, display)
	return status
}
