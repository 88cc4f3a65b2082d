package sessions

import (
	"time"

	"oakpipe/internal/services"
	"oakpipe/internal/stage"
)

// Status is the lifecycle state of a catalogued session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

// Session is one row of the catalog.
type Session struct {
	ID             string
	Target         string
	Status         Status
	StartedAt      time.Time
	EndedAt        time.Time
	VideoPath      string
	SensorPath     string
	FramesWritten  uint64
	FramesDropped  uint64
	SamplesWritten uint64
	SamplesDropped uint64
	DrainAborted   bool
	ErrorKind      string
	ErrorMessage   string
	ExitCode       int
}

// Duration is how long the session ran; zero while it is still running.
func (s Session) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Outcome is what a finished run reports back to the catalog.
type Outcome struct {
	EndedAt      time.Time
	Recorder     stage.RecorderStats
	DrainAborted bool
	Err          error
}

func (o Outcome) status() Status {
	if o.Err != nil {
		return StatusFailed
	}
	return StatusStopped
}

func (o Outcome) errorFields() (kind, message string, code int) {
	if o.Err == nil {
		return "", "", services.ExitOK
	}
	return services.Kind(o.Err), o.Err.Error(), services.ExitCode(o.Err)
}
