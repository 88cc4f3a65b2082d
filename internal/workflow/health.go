package workflow

import (
	"errors"

	"oakpipe/internal/services"
	"oakpipe/internal/stage"
)

// health derives per-stage readiness from a status snapshot.
func (m *Manager) health(status Status, display stage.Display) []stage.Health {
	out := make([]stage.Health, 0, 5)

	switch {
	case errors.Is(status.LastError, services.ErrDeviceDisconnected):
		out = append(out, stage.Unhealthy("camera", "device disconnected"))
	case errors.Is(status.LastError, services.ErrDeviceUnavailable):
		out = append(out, stage.Unhealthy("camera", "device unavailable"))
	case errors.Is(status.LastError, services.ErrTimeout):
		out = append(out, stage.Unhealthy("camera", "frames stopped arriving"))
	default:
		out = append(out, stage.Healthy("camera"))
	}

	switch {
	case stage.IsDisabled(m.stages.Sensor):
		out = append(out, stage.Disabled("imu"))
	case status.SensorLost:
		out = append(out, stage.Unhealthy("imu", "stream lost"))
	default:
		out = append(out, stage.Healthy("imu"))
	}

	switch {
	case stage.IsDisabled(m.stages.Detector):
		out = append(out, stage.Disabled("detector"))
	case status.InferenceErrors > 0 && status.InferenceRuns == 0:
		out = append(out, stage.Unhealthy("detector", "every inference call failed"))
	case status.InferenceTimeouts > status.InferenceRuns:
		out = append(out, stage.Unhealthy("detector", "most inference calls exceed the timeout"))
	default:
		out = append(out, stage.Healthy("detector"))
	}

	switch {
	case stage.IsDisabled(m.stages.Recorder):
		out = append(out, stage.Disabled("recorder"))
	case status.RecordingFailed:
		out = append(out, stage.Unhealthy("recorder", "sink failed"))
	default:
		out = append(out, stage.Healthy("recorder"))
	}

	if stage.IsDisabled(display) {
		out = append(out, stage.Disabled("display"))
	} else {
		out = append(out, stage.Healthy("display"))
	}
	return out
}
