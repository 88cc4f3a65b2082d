package imu

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"oakpipe/internal/capture"
	"oakpipe/internal/device"
	"oakpipe/internal/logging"
	"oakpipe/internal/services"
	"oakpipe/internal/stage"
)

// Port is the part of a serial port the stream needs.
type Port interface {
	io.Reader
	io.Closer
}

// Opener opens the serial port at path.
type Opener func(path string, mode *serial.Mode) (Port, error)

// Options configure a Stream.
type Options struct {
	Port        string
	BaudRate    int
	BufferDepth int
	LockDir     string
	Clock       capture.Clock
}

// Option customizes a Stream.
type Option func(*Stream)

// WithOpener swaps the serial opener, for tests.
func WithOpener(open Opener) Option {
	return func(s *Stream) {
		if open != nil {
			s.open = open
		}
	}
}

// Stream implements stage.SensorStream over a serial gyroscope.
type Stream struct {
	opts   Options
	logger *slog.Logger
	open   Opener

	samples chan capture.SensorSample
	dead    chan struct{}

	mu        sync.Mutex
	port      Port
	claim     *device.Claim
	closed    bool
	closeOnce sync.Once
	deadErr   error
	dropped   uint64
	malformed uint64
}

var _ stage.SensorStream = (*Stream)(nil)

// New returns a stream that is not yet open.
func New(opts Options, logger *slog.Logger, options ...Option) *Stream {
	if opts.BufferDepth <= 0 {
		opts.BufferDepth = 50
	}
	if opts.Clock == nil {
		opts.Clock = capture.NewMonotonicClock()
	}
	s := &Stream{
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "imu"),
		open:    openSerial,
		samples: make(chan capture.SensorSample, opts.BufferDepth),
		dead:    make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func openSerial(path string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Open claims and opens the port and starts the reader.
func (s *Stream) Open(ctx context.Context) error {
	if s.opts.Port == "" {
		return services.Wrap(services.ErrDeviceUnavailable, "imu", "open", "no serial port configured", nil)
	}
	var claim *device.Claim
	if s.opts.LockDir != "" {
		c, err := device.Acquire(s.opts.LockDir, s.opts.Port)
		if err != nil {
			return err
		}
		claim = c
	}
	port, err := s.open(s.opts.Port, &serial.Mode{
		BaudRate: s.opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		_ = claim.Release()
		return services.Wrap(services.ErrDeviceUnavailable, "imu", "open", s.opts.Port, err)
	}

	s.mu.Lock()
	s.port = port
	s.claim = claim
	s.mu.Unlock()

	go s.read(port)
	s.logger.Info("gyroscope opened",
		logging.String("port", s.opts.Port),
		logging.Int("baud_rate", s.opts.BaudRate),
		logging.String(logging.FieldEventType, "imu_opened"),
	)
	return nil
}

func (s *Stream) read(port Port) {
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		ts := s.opts.Clock.Now()
		x, y, z, ok, err := ParseLine(scanner.Text())
		if err != nil {
			s.mu.Lock()
			s.malformed++
			n := s.malformed
			s.mu.Unlock()
			if n == 1 || n%100 == 0 {
				s.logger.Debug("malformed gyroscope record skipped", logging.Error(err), logging.Uint64("malformed_total", n))
			}
			continue
		}
		if !ok {
			continue
		}
		s.push(capture.SensorSample{Timestamp: ts, GyroX: x, GyroY: y, GyroZ: z})
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.mu.Lock()
	s.deadErr = err
	s.mu.Unlock()
	close(s.dead)
}

// push hands a sample to the consumer, evicting the oldest buffered sample
// when the consumer lags.
func (s *Stream) push(sample capture.SensorSample) {
	for {
		select {
		case s.samples <- sample:
			return
		default:
		}
		select {
		case <-s.samples:
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
		default:
		}
	}
}

// NextSample returns the next buffered sample, waiting up to timeout.
func (s *Stream) NextSample(ctx context.Context, timeout time.Duration) (capture.SensorSample, error) {
	select {
	case sample := <-s.samples:
		return sample, nil
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case sample := <-s.samples:
		return sample, nil
	case <-ctx.Done():
		return capture.SensorSample{}, ctx.Err()
	case <-timer.C:
		return capture.SensorSample{}, services.Wrap(services.ErrTimeout, "imu", "next sample", "no sample within timeout", nil)
	case <-s.dead:
		return capture.SensorSample{}, s.disconnected()
	}
}

func (s *Stream) disconnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return services.Wrap(services.ErrDeviceDisconnected, "imu", "next sample", "stream closed", nil)
	}
	cause := s.deadErr
	if errors.Is(cause, io.EOF) {
		cause = nil
	}
	return services.Wrap(services.ErrDeviceDisconnected, "imu", "next sample", "serial port stopped delivering data", cause)
}

// Dropped counts samples evicted because the consumer lagged.
func (s *Stream) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close releases the port and the claim. Safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		port, claim := s.port, s.claim
		s.mu.Unlock()
		if port != nil {
			err = port.Close()
		}
		err = errors.Join(err, claim.Release())
	})
	return err
}
