package workflow

import (
	"context"
	"time"

	"oakpipe/internal/logging"
)

// heartbeat logs a progress line every interval until ctx ends. Unhealthy
// stages are called out so a stalled component is visible in the log.
func (m *Manager) heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := m.logger.With(logging.String(logging.FieldComponent, "orchestrator-heartbeat"))
	var lastFrames uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := m.Status()
			fps := float64(status.FramesProcessed-lastFrames) / interval.Seconds()
			lastFrames = status.FramesProcessed
			logger.Info("pipeline progress",
				logging.String(logging.FieldState, status.State.String()),
				logging.Duration("uptime", status.Uptime),
				logging.Uint64("frames", status.FramesProcessed),
				logging.Float64("fps", fps),
				logging.Uint64("frames_dropped", status.Recorder.FramesDropped),
				logging.Uint64("samples", status.SamplesForwarded),
				logging.Uint64("inference_timeouts", status.InferenceTimeouts),
				logging.String(logging.FieldEventType, "heartbeat"),
			)
			for _, h := range status.StageHealth {
				if h.Ready {
					continue
				}
				logging.WarnWithContext(logger, "stage unhealthy", "stage_unhealthy",
					logging.String(logging.FieldStage, h.Name),
					logging.String("detail", h.Detail),
				)
			}
		}
	}
}
