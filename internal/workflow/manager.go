package workflow

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"oakpipe/internal/capture"
	"oakpipe/internal/logging"
)

// Manager orchestrates one capture session. It is single use: build a new
// Manager for every session.
type Manager struct {
	settings Settings
	stages   StageSet
	logger   *slog.Logger
	clock    capture.Clock

	mu      sync.RWMutex
	state   RunState
	history []Transition
	lastErr error
	// runningAt is the session clock reading when Running was entered.
	runningAt time.Duration
	reached   bool

	started   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	forceOnce sync.Once
	forceCh   chan struct{}
	stopCalls atomic.Int32

	counters counters
	frameLat *latencyWindow
	inferLat *latencyWindow
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock sets the session clock used for transition timestamps. Pass the
// clock shared with the frame source and sensor stream.
func WithClock(clock capture.Clock) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager constructs a manager for one session.
func NewManager(settings Settings, stages StageSet, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		settings: settings.withDefaults(),
		stages:   stages.withDefaults(),
		logger:   logging.NewComponentLogger(logger, "orchestrator"),
		clock:    capture.NewMonotonicClock(),
		state:    StateIdle,
		stopCh:   make(chan struct{}),
		forceCh:  make(chan struct{}),
		frameLat: newLatencyWindow(latencyWindowSize),
		inferLat: newLatencyWindow(latencyWindowSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stop requests a cooperative stop. The run loop finishes the current cycle,
// then drains. A second call forces the drain to give up on queued writes.
func (m *Manager) Stop() {
	if m.stopCalls.Add(1) == 1 {
		m.requestStop("stop requested")
		return
	}
	m.ForceStop()
}

// ForceStop aborts draining: queued writes are discarded and devices are
// released without waiting on a write still in flight. The final segment may
// be truncated.
func (m *Manager) ForceStop() {
	m.requestStop("forced stop")
	m.forceOnce.Do(func() {
		m.logger.Warn("forced stop requested",
			logging.String(logging.FieldEventType, "force_stop"),
			logging.String(logging.FieldImpact, "queued frames and samples are discarded"),
			logging.String(logging.FieldErrorHint, "allow draining to finish to keep the whole recording"),
		)
		close(m.forceCh)
	})
}

func (m *Manager) requestStop(reason string) {
	m.stopOnce.Do(func() {
		m.logger.Info("stop requested",
			logging.String("reason", reason),
			logging.String(logging.FieldState, m.State().String()),
			logging.String(logging.FieldEventType, "stop_requested"),
		)
		close(m.stopCh)
	})
}

func (m *Manager) stopRequested() bool {
	select {
	case <-m.stopCh:
		return true
	default:
		return false
	}
}

// State returns the current run state.
func (m *Manager) State() RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// History returns a copy of the transitions taken so far.
func (m *Manager) History() []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Transition(nil), m.history...)
}

// transition moves the state machine. Disallowed moves are logged and ignored.
func (m *Manager) transition(to RunState, reason string) bool {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, to) {
		m.mu.Unlock()
		m.logger.Error("invalid state transition ignored",
			logging.String("from", from.String()),
			logging.String("to", to.String()),
			logging.String(logging.FieldEventType, "invalid_transition"),
		)
		return false
	}
	m.state = to
	tr := Transition{From: from, To: to, At: m.clock.Now(), Wall: time.Now(), Reason: reason}
	m.history = append(m.history, tr)
	if to == StateRunning {
		m.runningAt = tr.At
		m.reached = true
	}
	m.mu.Unlock()

	attrs := []logging.Attr{
		logging.String("from", from.String()),
		logging.String(logging.FieldState, to.String()),
		logging.String(logging.FieldEventType, "state_transition"),
	}
	if reason != "" {
		attrs = append(attrs, logging.String("reason", reason))
	}
	m.logger.Info("pipeline state changed", logging.Args(attrs...)...)
	return true
}

// whileRunning runs fn only if the state is Running, holding the state read
// lock so no transition can interleave.
func (m *Manager) whileRunning(fn func()) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateRunning {
		return false
	}
	fn()
	return true
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) runningSince() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runningAt
}

// uptimeLocked is the time spent Running. Callers hold mu.
func (m *Manager) uptimeLocked() time.Duration {
	if !m.reached {
		return 0
	}
	end := m.clock.Now()
	for _, tr := range m.history {
		if tr.From == StateRunning {
			end = tr.At
			break
		}
	}
	return end - m.runningAt
}
