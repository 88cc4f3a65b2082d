package stage

import (
	"context"
	"time"

	"oakpipe/internal/capture"
)

// FrameSource owns the camera device for one session.
//
// NextFrame blocks up to timeout. It fails with services.ErrTimeout when no
// frame arrived in time and with services.ErrDeviceDisconnected when the
// device is gone. Close is idempotent.
type FrameSource interface {
	Open(ctx context.Context) error
	NextFrame(ctx context.Context, timeout time.Duration) (capture.Frame, error)
	Close() error
}

// SensorStream owns the gyroscope for one session. Its contract mirrors FrameSource.
type SensorStream interface {
	Open(ctx context.Context) error
	NextSample(ctx context.Context, timeout time.Duration) (capture.SensorSample, error)
	Close() error
}

// Detector runs object detection on one frame. Validate loads the model and
// fails fast on a missing or corrupt model before the run loop starts. Detect
// must not mutate the frame and fails with services.ErrInference on
// recoverable faults.
type Detector interface {
	Validate(ctx context.Context) error
	Detect(ctx context.Context, frame capture.Frame) ([]capture.Detection, error)
	Close() error
}

// Tracker associates detections across frames. Update performs bounded work
// and never blocks.
type Tracker interface {
	Update(ts time.Duration, detections []capture.Detection) []capture.TrackedDetection
}

// Renderer burns annotations into a copy of the frame.
type Renderer interface {
	Render(frame capture.Frame, detections []capture.TrackedDetection) capture.Frame
}

// Display is the optional live view surface. Show reports whether the
// operator asked to stop.
type Display interface {
	Open(ctx context.Context) error
	Show(frame capture.Frame) (stop bool)
	Close() error
}

// Recorder persists frames and gyroscope samples. WriteFrame and WriteSample
// never block; when the internal queue is full the oldest queued item is
// dropped. Drain flushes what is queued, bounded by ctx, and finalizes the
// files. Close releases everything immediately and is idempotent.
type Recorder interface {
	Open(ctx context.Context) error
	WriteFrame(frame capture.Frame)
	WriteSample(sample capture.SensorSample)
	Faults() <-chan error
	Drain(ctx context.Context) error
	Close() error
	Stats() RecorderStats
}

// RecorderStats is a point-in-time view of the recorder counters.
type RecorderStats struct {
	VideoPath      string
	SensorPath     string
	FramesWritten  uint64
	FramesDropped  uint64
	SamplesWritten uint64
	SamplesDropped uint64
	VideoFailed    bool
	SensorFailed   bool
}
