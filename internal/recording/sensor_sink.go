package recording

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"oakpipe/internal/capture"
	"oakpipe/internal/services"
)

// sensorRecord is one line of the gyroscope log. Timestamp is seconds on the
// session clock shared with the video frames.
type sensorRecord struct {
	Timestamp float64 `json:"timestamp"`
	GyroX     float64 `json:"gyro_x"`
	GyroY     float64 `json:"gyro_y"`
	GyroZ     float64 `json:"gyro_z"`
}

// SensorSink appends gyroscope samples to a JSON Lines file in
// non-decreasing timestamp order. Written and Failed never wait on file I/O.
type SensorSink struct {
	mu         sync.Mutex // held across encode and flush
	path       string
	file       *os.File
	buf        *bufio.Writer
	enc        *json.Encoder
	flushEvery int
	pending    int
	lastTS     time.Duration
	started    bool
	closed     bool

	written atomic.Uint64
	failed  atomic.Pointer[error]
}

// OpenSensorSink creates path (and its parent directory) for writing.
// flushEvery bounds how many records may sit in the write buffer.
func OpenSensorSink(path string, flushEvery int) (*SensorSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, "recorder", "create output directory", filepath.Dir(path), err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "recorder", "open sensor log", path, err)
	}
	if flushEvery < 1 {
		flushEvery = 1
	}
	buf := bufio.NewWriter(file)
	return &SensorSink{
		path:       path,
		file:       file,
		buf:        buf,
		enc:        json.NewEncoder(buf),
		flushEvery: flushEvery,
	}, nil
}

// Path is the log file.
func (s *SensorSink) Path() string { return s.path }

// Write appends one record. A sample older than the previous one is rejected
// with services.ErrNonMonotonicTimestamp.
func (s *SensorSink) Write(sample capture.SensorSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return services.Wrap(services.ErrSinkClosed, "recorder", "write sample", s.path, nil)
	}
	if err := s.Failed(); err != nil {
		return err
	}
	if s.started && sample.Timestamp < s.lastTS {
		return services.Wrap(services.ErrNonMonotonicTimestamp, "recorder", "write sample",
			fmt.Sprintf("timestamp %s after %s", sample.Timestamp, s.lastTS), nil)
	}
	rec := sensorRecord{
		Timestamp: sample.Timestamp.Seconds(),
		GyroX:     sample.GyroX,
		GyroY:     sample.GyroY,
		GyroZ:     sample.GyroZ,
	}
	if err := s.enc.Encode(rec); err != nil {
		return s.fail(err)
	}
	s.started = true
	s.lastTS = sample.Timestamp
	s.written.Add(1)
	s.pending++
	if s.pending >= s.flushEvery {
		if err := s.buf.Flush(); err != nil {
			return s.fail(err)
		}
		s.pending = 0
	}
	return nil
}

func (s *SensorSink) fail(err error) error {
	failed := services.Wrap(services.ErrIO, "recorder", "write sample", s.path, err)
	s.failed.Store(&failed)
	return failed
}

// Written returns the number of records encoded.
func (s *SensorSink) Written() uint64 {
	return s.written.Load()
}

// Failed returns the error that disabled the sink, if any.
func (s *SensorSink) Failed() error {
	if p := s.failed.Load(); p != nil {
		return *p
	}
	return nil
}

// Close flushes buffered records, syncs and closes the file. Only the first
// call has any effect.
func (s *SensorSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if s.Failed() == nil {
		if err := s.buf.Flush(); err != nil {
			firstErr = err
		} else if err := s.file.Sync(); err != nil {
			firstErr = err
		}
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return services.Wrap(services.ErrIO, "recorder", "finalize sensor log", s.path, firstErr)
	}
	return nil
}
