package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"oakpipe/internal/capture"
	"oakpipe/internal/services"
)

// Encoder writes frames into a container file. Implementations must leave a
// playable file behind after Close.
type Encoder interface {
	Write(frame capture.Frame) error
	Close() error
}

// EncoderSpec describes the container an EncoderFactory should create.
type EncoderSpec struct {
	Path   string
	Codec  string
	Width  int
	Height int
	FPS    float64
}

// EncoderFactory opens an Encoder for spec.
type EncoderFactory func(spec EncoderSpec) (Encoder, error)

// VideoSink appends frames to one container file in strictly increasing
// sequence order. Written and Failed never wait on an encoder call.
type VideoSink struct {
	mu      sync.Mutex // held across encoder calls
	path    string
	enc     Encoder
	lastSeq uint64
	started bool
	closed  bool

	written atomic.Uint64
	failed  atomic.Pointer[error]
}

// OpenVideoSink creates the parent directory and the container at spec.Path.
func OpenVideoSink(spec EncoderSpec, factory EncoderFactory) (*VideoSink, error) {
	if factory == nil {
		return nil, services.Wrap(services.ErrIO, "recorder", "open video", "no encoder configured", nil)
	}
	if err := os.MkdirAll(filepath.Dir(spec.Path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, "recorder", "create output directory", filepath.Dir(spec.Path), err)
	}
	enc, err := factory(spec)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "recorder", "open video", spec.Path, err)
	}
	return &VideoSink{path: spec.Path, enc: enc}, nil
}

// Path is the container file.
func (s *VideoSink) Path() string { return s.path }

// Write appends frame. A frame whose sequence is not greater than the last
// written one is rejected with services.ErrNonMonotonicTimestamp. After an
// encoder failure every call returns that failure without touching the file.
func (s *VideoSink) Write(frame capture.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return services.Wrap(services.ErrSinkClosed, "recorder", "write frame", s.path, nil)
	}
	if err := s.Failed(); err != nil {
		return err
	}
	if s.started && frame.Seq <= s.lastSeq {
		return services.Wrap(services.ErrNonMonotonicTimestamp, "recorder", "write frame",
			fmt.Sprintf("sequence %d after %d", frame.Seq, s.lastSeq), nil)
	}
	if err := s.enc.Write(frame); err != nil {
		failed := services.Wrap(services.ErrIO, "recorder", "write frame", s.path, err)
		s.failed.Store(&failed)
		return failed
	}
	s.started = true
	s.lastSeq = frame.Seq
	s.written.Add(1)
	return nil
}

// Written returns the number of frames appended.
func (s *VideoSink) Written() uint64 {
	return s.written.Load()
}

// Failed returns the error that disabled the sink, if any.
func (s *VideoSink) Failed() error {
	if p := s.failed.Load(); p != nil {
		return *p
	}
	return nil
}

// Close finalizes the container. Only the first call reaches the encoder.
func (s *VideoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.enc.Close(); err != nil {
		return services.Wrap(services.ErrIO, "recorder", "finalize video", s.path, err)
	}
	return nil
}
