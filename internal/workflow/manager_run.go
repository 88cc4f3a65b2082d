package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"oakpipe/internal/logging"
	"oakpipe/internal/services"
	"oakpipe/internal/stage"
)

// ErrAlreadyRun is returned when Run is called on a used Manager.
var ErrAlreadyRun = errors.New("workflow: manager already ran")

type resource struct {
	name    string
	release func() error
}

// Run executes one session: it acquires every stage, runs the frame loop until
// a stop request, context cancellation or a fatal device error, drains the
// recorder and releases everything in reverse acquisition order. The returned
// error carries the originating services marker; a clean stop returns nil.
func (m *Manager) Run(ctx context.Context) (Summary, error) {
	if !m.started.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRun
	}
	m.transition(StateInitializing, "start requested")

	resources, err := m.acquire(ctx)
	if err != nil {
		m.fail(err)
		m.releaseAll(resources)
		m.transition(StateStopped, "initialization failed")
		return m.summary(), err
	}
	m.transition(StateRunning, "")

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	go func() {
		select {
		case <-m.stopCh:
			cancelLoop()
		case <-loopCtx.Done():
		}
	}()

	inference := newInferenceWorker(m.stages.Detector, m.settings.InferenceTimeout, m.inferLat)
	inference.start(loopCtx)

	var wg sync.WaitGroup
	pumpCtx, cancelPump := context.WithCancel(loopCtx)
	defer cancelPump()
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.pumpSamples(pumpCtx)
	}()
	if m.settings.HeartbeatInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.heartbeat(pumpCtx, m.settings.HeartbeatInterval)
		}()
	}

	runErr := m.runFrames(loopCtx, inference)

	// The pump finishes its in-hand sample before Draining so every sample
	// delivered while Running reaches the recorder.
	cancelPump()
	wg.Wait()

	reason := "stop requested"
	if runErr != nil {
		reason = services.Kind(runErr)
	}
	m.transition(StateDraining, reason)
	cancelLoop()
	if !inference.stop(m.settings.DrainGrace) {
		logging.WarnWithContext(m.logger, "inference call still running at shutdown", "inference_stuck",
			logging.String(logging.FieldImpact, "detector is released while a call may still be running"),
			logging.String(logging.FieldErrorHint, "lower inference.timeout_ms or use a lighter model"),
		)
	}
	m.drain(ctx)
	m.releaseAll(resources)

	if runErr != nil {
		m.fail(runErr)
		m.transition(StateStopped, "fault handled")
		return m.summary(), runErr
	}
	m.transition(StateStopped, "")
	return m.summary(), nil
}

// acquire opens the stages in dependency order. On failure the returned slice
// holds what was already acquired so the caller can release it.
func (m *Manager) acquire(ctx context.Context) ([]resource, error) {
	if m.stages.Source == nil {
		return nil, services.Wrap(services.ErrConfigInvalid, "orchestrator", "initialize", "no frame source configured", nil)
	}
	steps := []struct {
		name    string
		open    func(context.Context) error
		release func() error
	}{
		{"camera", m.stages.Source.Open, m.stages.Source.Close},
		{"imu", m.stages.Sensor.Open, m.stages.Sensor.Close},
		{"detector", m.stages.Detector.Validate, m.stages.Detector.Close},
		{"recorder", m.stages.Recorder.Open, m.stages.Recorder.Close},
	}

	acquired := make([]resource, 0, len(steps)+1)
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return acquired, fmt.Errorf("initialization interrupted before %s: %w", step.name, err)
		}
		if err := step.open(ctx); err != nil {
			logging.ErrorWithContext(m.logger, "stage initialization failed", "stage_init_failed",
				logging.String(logging.FieldStage, step.name),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, initHint(err)),
			)
			return acquired, err
		}
		m.logger.Debug("stage ready", logging.String(logging.FieldStage, step.name))
		acquired = append(acquired, resource{name: step.name, release: step.release})
	}

	if err := m.stages.Display.Open(ctx); err != nil {
		logging.WarnWithContext(m.logger, "live view unavailable; continuing headless", "live_view_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no live view window for this session"),
			logging.String(logging.FieldErrorHint, "set DISPLAY or run with --headless"),
		)
		m.mu.Lock()
		m.stages.Display = stage.DisabledDisplay{}
		m.mu.Unlock()
	} else {
		acquired = append(acquired, resource{name: "display", release: m.stages.Display.Close})
	}
	return acquired, nil
}

func initHint(err error) string {
	switch {
	case errors.Is(err, services.ErrConfigInvalid):
		return "fix the configuration and run oakpipe config validate"
	case errors.Is(err, services.ErrDeviceUnavailable):
		return "check the device is connected and not claimed by another process"
	default:
		return "run oakpipe preflight for details"
	}
}

// releaseAll closes resources in reverse acquisition order. Release errors
// are logged; every resource is attempted. A release still blocked after the
// drain grace period is left to finish on its own so the remaining devices
// are still released.
func (m *Manager) releaseAll(resources []resource) {
	for i := len(resources) - 1; i >= 0; i-- {
		res := resources[i]
		if err := m.release(res); err != nil {
			logging.WarnWithContext(m.logger, "stage release failed", "stage_release_failed",
				logging.String(logging.FieldStage, res.name),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the device or file may need manual cleanup"),
			)
			continue
		}
		m.logger.Debug("stage released", logging.String(logging.FieldStage, res.name))
	}
}

func (m *Manager) release(res resource) error {
	if m.settings.DrainGrace <= 0 {
		return res.release()
	}
	done := make(chan error, 1)
	go func() { done <- res.release() }()
	timer := time.NewTimer(m.settings.DrainGrace)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return services.Wrap(services.ErrTimeout, "orchestrator", "release",
			res.name+" still releasing after "+m.settings.DrainGrace.String(), nil)
	}
}

// drain flushes the recorder within the grace period. A forced stop cuts the
// grace period short. Draining continues even when ctx is already cancelled.
func (m *Manager) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.settings.DrainGrace)
	defer cancel()
	go func() {
		select {
		case <-m.forceCh:
			cancel()
		case <-drainCtx.Done():
		}
	}()

	started := time.Now()
	err := m.stages.Recorder.Drain(drainCtx)
	m.collectFaults()
	if err == nil {
		m.logger.Info("recorder drained",
			logging.Duration("elapsed", time.Since(started)),
			logging.String(logging.FieldEventType, "recorder_drained"),
		)
		return
	}
	if errors.Is(err, services.ErrTimeout) {
		m.counters.drainAborted.Store(true)
		return
	}
	m.counters.recordingFailed.Store(true)
	logging.WarnWithContext(m.logger, "recorder did not finalize cleanly", "recorder_finalize_failed",
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.Error(err),
		logging.String(logging.FieldImpact, "recording may be incomplete"),
		logging.String(logging.FieldErrorHint, "check free space on the output directory"),
	)
}

// fail records err and moves the state machine to Erroring.
func (m *Manager) fail(err error) {
	m.setLastError(err)
	m.transition(StateErroring, services.Kind(err))
	logging.ErrorWithContext(m.logger, "session failed", "session_failed",
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.Error(err),
	)
}
