package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oakpipe/internal/capture"
	"oakpipe/internal/logging"
	"oakpipe/internal/services"
	"oakpipe/internal/stage"
)

// frameCursor remembers the last accepted frame.
type frameCursor struct {
	seen bool
	seq  uint64
	ts   time.Duration
}

// runFrames is the Running loop. It returns nil on a stop request or context
// cancellation and the fatal error otherwise.
func (m *Manager) runFrames(ctx context.Context, inference *inferenceWorker) error {
	annotate := !stage.IsDisabled(m.stages.Detector)
	var (
		cursor   frameCursor
		timeouts int
	)
	for {
		if m.stopRequested() || ctx.Err() != nil {
			return nil
		}
		frame, err := m.stages.Source.NextFrame(ctx, m.settings.FrameTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if services.Recoverable(err) {
				m.counters.framesRejected.Add(1)
				logging.WarnWithContext(m.logger, "frame read fault absorbed", "frame_rejected",
					logging.String(logging.FieldErrorKind, services.Kind(err)),
					logging.Error(err),
					logging.String(logging.FieldImpact, "one frame missing from the session"),
				)
				continue
			}
			if !errors.Is(err, services.ErrTimeout) {
				return err
			}
			timeouts++
			m.counters.frameTimeouts.Add(1)
			if limit := m.settings.MaxConsecutiveTimeouts; limit > 0 && timeouts >= limit {
				return services.Wrap(services.ErrTimeout, "orchestrator", "next frame",
					fmt.Sprintf("%d consecutive frame timeouts", timeouts), err)
			}
			m.logger.Debug("no frame within timeout",
				logging.Int("consecutive", timeouts),
				logging.Duration("timeout", m.settings.FrameTimeout),
			)
			continue
		}
		timeouts = 0

		started := time.Now()
		if !m.acceptFrame(frame, &cursor) {
			continue
		}
		m.processFrame(ctx, inference, frame, annotate)
		m.frameLat.add(time.Since(started))
		m.collectFaults()
	}
}

// acceptFrame enforces geometry, strictly increasing sequence numbers and
// non-decreasing timestamps. Offending frames are dropped and logged.
func (m *Manager) acceptFrame(frame capture.Frame, cursor *frameCursor) bool {
	var (
		reason string
		marker = services.ErrNonMonotonicTimestamp
	)
	switch {
	case !frame.Valid():
		reason = "pixel buffer does not match frame geometry"
		marker = nil
	case cursor.seen && frame.Seq <= cursor.seq:
		reason = "sequence number did not advance"
	case cursor.seen && frame.Timestamp < cursor.ts:
		reason = "timestamp went backwards"
	}
	if reason != "" {
		m.counters.framesRejected.Add(1)
		err := services.Wrap(marker, "camera", "accept frame", reason, nil)
		logging.WarnWithContext(m.logger, "frame dropped", "frame_rejected",
			logging.Uint64(logging.FieldFrameSeq, frame.Seq),
			logging.Uint64("last_seq", cursor.seq),
			logging.Duration("timestamp", frame.Timestamp),
			logging.Duration("last_timestamp", cursor.ts),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "one frame missing from the recording"),
			logging.String(logging.FieldErrorHint, "check the camera clock and USB link"),
		)
		return false
	}
	cursor.seen = true
	cursor.seq = frame.Seq
	cursor.ts = frame.Timestamp
	return true
}

// processFrame annotates when possible, then hands the frame to the recorder
// and the live view. A frame is recorded whether or not annotation worked.
func (m *Manager) processFrame(ctx context.Context, inference *inferenceWorker, frame capture.Frame, annotate bool) {
	rendered := frame
	if annotate {
		detections, outcome, err := inference.infer(ctx, frame)
		m.noteInference(frame, outcome, err)
		if outcome == inferenceDone {
			tracked := m.stages.Tracker.Update(frame.Timestamp, detections)
			rendered = m.stages.Renderer.Render(frame, tracked)
			m.counters.framesAnnotated.Add(1)
		}
	}

	if m.settings.RecordOverlays {
		m.stages.Recorder.WriteFrame(rendered)
	} else {
		m.stages.Recorder.WriteFrame(frame)
	}
	m.counters.framesProcessed.Add(1)

	if m.stages.Display.Show(rendered) {
		m.requestStop("live view quit key pressed")
	}
}

func (m *Manager) noteInference(frame capture.Frame, outcome inferenceOutcome, err error) {
	switch outcome {
	case inferenceDone:
		m.counters.inferenceRuns.Add(1)
	case inferenceSkipped:
		m.counters.inferenceSkipped.Add(1)
		m.logger.Debug("inference busy; frame recorded unannotated",
			logging.Uint64(logging.FieldFrameSeq, frame.Seq))
	case inferenceTimedOut:
		m.counters.inferenceTimeouts.Add(1)
		logging.WarnWithContext(m.logger, "inference exceeded timeout; frame recorded unannotated", "inference_timeout",
			logging.Uint64(logging.FieldFrameSeq, frame.Seq),
			logging.Duration("timeout", m.settings.InferenceTimeout),
			logging.String(logging.FieldImpact, "no overlay for this frame"),
			logging.String(logging.FieldErrorHint, "raise inference.timeout_ms or use a lighter model"),
		)
	case inferenceFailed:
		m.counters.inferenceErrors.Add(1)
		logging.WarnWithContext(m.logger, "inference failed; frame recorded unannotated", "inference_failed",
			logging.Uint64(logging.FieldFrameSeq, frame.Seq),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "no overlay for this frame"),
		)
	}
}

// collectFaults absorbs recorder sink faults without blocking. The recorder
// has already stopped writing to the failed sink.
func (m *Manager) collectFaults() {
	faults := m.stages.Recorder.Faults()
	for {
		select {
		case err, ok := <-faults:
			if !ok {
				return
			}
			first := !m.counters.recordingFailed.Swap(true)
			logging.WarnWithContext(m.logger, "recording fault absorbed; capture continues", "recording_fault",
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.Bool("first_fault", first),
				logging.Error(err),
				logging.String(logging.FieldImpact, "session recording marked failed"),
				logging.String(logging.FieldErrorHint, "check free space and permissions on the output directory"),
			)
		default:
			return
		}
	}
}
