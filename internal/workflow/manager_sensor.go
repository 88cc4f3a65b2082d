package workflow

import (
	"context"
	"errors"

	"oakpipe/internal/capture"
	"oakpipe/internal/logging"
	"oakpipe/internal/services"
	"oakpipe/internal/stage"
)

// pumpSamples forwards gyroscope samples to the recorder on their own cadence.
// Samples stamped before Running, or behind the last forwarded sample, are
// dropped. A lost sensor stops sensor logging; the camera keeps running.
func (m *Manager) pumpSamples(ctx context.Context) {
	if stage.IsDisabled(m.stages.Sensor) {
		return
	}
	ctx = services.WithStage(ctx, "imu")
	logger := logging.WithContext(ctx, m.logger)
	since := m.runningSince()
	var (
		last capture.SensorSample
		seen bool
	)
	for {
		sample, err := m.stages.Sensor.NextSample(ctx, m.settings.SampleTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, services.ErrTimeout) {
				continue
			}
			m.counters.sensorLost.Store(true)
			logging.WarnWithContext(logger, "gyroscope stream lost; sensor logging stopped", "sensor_lost",
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "no further gyroscope samples this session; video continues"),
				logging.String(logging.FieldErrorHint, "check the IMU serial cable"),
			)
			return
		}

		if sample.Timestamp < since {
			m.counters.samplesRejected.Add(1)
			logger.Debug("sample from before Running discarded",
				logging.Duration("timestamp", sample.Timestamp))
			continue
		}
		if seen && sample.Timestamp < last.Timestamp {
			m.counters.samplesRejected.Add(1)
			logging.WarnWithContext(logger, "gyroscope sample dropped", "sample_rejected",
				logging.Duration("timestamp", sample.Timestamp),
				logging.Duration("last_timestamp", last.Timestamp),
				logging.String(logging.FieldErrorKind, services.Kind(services.ErrNonMonotonicTimestamp)),
				logging.String(logging.FieldImpact, "one sample missing from the sensor log"),
				logging.String(logging.FieldErrorHint, "check the IMU clock source"),
			)
			continue
		}

		forwarded := m.whileRunning(func() {
			m.stages.Recorder.WriteSample(sample)
		})
		if !forwarded {
			return
		}
		m.counters.samplesForwarded.Add(1)
		last, seen = sample, true
	}
}
