package workflow

import (
	"time"

	"oakpipe/internal/stage"
)

// StageSet bundles the collaborators a session runs. Source is required;
// nil optional stages are replaced by their disabled variants.
type StageSet struct {
	Source   stage.FrameSource
	Sensor   stage.SensorStream
	Detector stage.Detector
	Tracker  stage.Tracker
	Renderer stage.Renderer
	Recorder stage.Recorder
	Display  stage.Display
}

func (s StageSet) withDefaults() StageSet {
	if s.Sensor == nil {
		s.Sensor = stage.DisabledSensor{}
	}
	if s.Detector == nil {
		s.Detector = stage.DisabledDetector{}
	}
	if s.Tracker == nil {
		s.Tracker = stage.PassthroughTracker{}
	}
	if s.Renderer == nil {
		s.Renderer = stage.DisabledRenderer{}
	}
	if s.Recorder == nil {
		s.Recorder = stage.DisabledRecorder{}
	}
	if s.Display == nil {
		s.Display = stage.DisabledDisplay{}
	}
	return s
}

// Settings are the timing and policy knobs of the run loop.
type Settings struct {
	// FrameTimeout bounds each wait for a frame.
	FrameTimeout time.Duration
	// MaxConsecutiveTimeouts escalates frame timeouts to a fatal error. Zero never escalates.
	MaxConsecutiveTimeouts int
	// SampleTimeout bounds each wait for a gyroscope sample.
	SampleTimeout time.Duration
	// InferenceTimeout bounds each detect call.
	InferenceTimeout time.Duration
	// DrainGrace bounds how long Draining waits for the recorder to flush.
	DrainGrace time.Duration
	// RecordOverlays writes rendered frames instead of raw frames.
	RecordOverlays bool
	// HeartbeatInterval between progress log lines. Zero disables them.
	HeartbeatInterval time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.FrameTimeout <= 0 {
		s.FrameTimeout = time.Second
	}
	if s.SampleTimeout <= 0 {
		s.SampleTimeout = 100 * time.Millisecond
	}
	if s.InferenceTimeout <= 0 {
		s.InferenceTimeout = 200 * time.Millisecond
	}
	if s.DrainGrace <= 0 {
		s.DrainGrace = 5 * time.Second
	}
	return s
}
