package stage

import (
	"context"
	"time"

	"oakpipe/internal/capture"
)

// DisabledSensor stands in when gyroscope recording is off. NextSample parks
// until ctx is cancelled.
type DisabledSensor struct{}

func (DisabledSensor) Open(context.Context) error { return nil }

func (DisabledSensor) NextSample(ctx context.Context, _ time.Duration) (capture.SensorSample, error) {
	<-ctx.Done()
	return capture.SensorSample{}, ctx.Err()
}

func (DisabledSensor) Close() error { return nil }

// DisabledDetector returns no detections.
type DisabledDetector struct{}

func (DisabledDetector) Validate(context.Context) error { return nil }

func (DisabledDetector) Detect(context.Context, capture.Frame) ([]capture.Detection, error) {
	return nil, nil
}

func (DisabledDetector) Close() error { return nil }

// PassthroughTracker forwards detections without identity.
type PassthroughTracker struct{}

func (PassthroughTracker) Update(_ time.Duration, detections []capture.Detection) []capture.TrackedDetection {
	return capture.Untracked(detections)
}

// DisabledRenderer returns frames untouched.
type DisabledRenderer struct{}

func (DisabledRenderer) Render(frame capture.Frame, _ []capture.TrackedDetection) capture.Frame {
	return frame
}

// DisabledDisplay is the headless live view.
type DisabledDisplay struct{}

func (DisabledDisplay) Open(context.Context) error { return nil }

func (DisabledDisplay) Show(capture.Frame) bool { return false }

func (DisabledDisplay) Close() error { return nil }

// DisabledRecorder discards everything.
type DisabledRecorder struct{}

func (DisabledRecorder) Open(context.Context) error { return nil }

func (DisabledRecorder) WriteFrame(capture.Frame) {}

func (DisabledRecorder) WriteSample(capture.SensorSample) {}

func (DisabledRecorder) Faults() <-chan error { return nil }

func (DisabledRecorder) Drain(context.Context) error { return nil }

func (DisabledRecorder) Close() error { return nil }

func (DisabledRecorder) Stats() RecorderStats { return RecorderStats{} }

// IsDisabled reports whether v is one of the no-op stand-ins above.
func IsDisabled(v any) bool {
	switch v.(type) {
	case DisabledSensor, DisabledDetector, PassthroughTracker, DisabledRenderer, DisabledDisplay, DisabledRecorder:
		return true
	default:
		return false
	}
}
