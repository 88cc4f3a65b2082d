package synthetic

import (
	"context"
	"sync"
	"time"

	"oakpipe/internal/capture"
	"oakpipe/internal/services"
	"oakpipe/internal/stage"
)

// FrameOptions configure a FrameSource.
type FrameOptions struct {
	Width    int
	Height   int
	Interval time.Duration
	Clock    capture.Clock

	// Limit stops producing after this many frames; later calls time out.
	Limit int
	// DisconnectAfter reports the device as gone once this many frames were produced.
	DisconnectAfter int
	// Unavailable makes Open fail as if the device were missing or claimed.
	Unavailable bool
	// Backstep lists sequence numbers whose timestamp is moved behind the
	// previous frame, simulating a clock fault.
	Backstep []uint64
}

// FrameSource generates a moving gradient pattern.
type FrameSource struct {
	opts FrameOptions

	mu       sync.Mutex
	opened   bool
	closed   bool
	releases int
	seq      uint64
	lastTS   time.Duration
}

var _ stage.FrameSource = (*FrameSource)(nil)

// NewFrameSource returns a source that is not yet open.
func NewFrameSource(opts FrameOptions) *FrameSource {
	if opts.Width <= 0 {
		opts.Width = 64
	}
	if opts.Height <= 0 {
		opts.Height = 48
	}
	if opts.Clock == nil {
		opts.Clock = capture.NewMonotonicClock()
	}
	return &FrameSource{opts: opts}
}

func (s *FrameSource) Open(context.Context) error {
	if s.opts.Unavailable {
		return services.Wrap(services.ErrDeviceUnavailable, "camera", "open", "synthetic device marked unavailable", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return services.Wrap(services.ErrDeviceUnavailable, "camera", "open", "source already released", nil)
	}
	s.opened = true
	return nil
}

func (s *FrameSource) NextFrame(ctx context.Context, timeout time.Duration) (capture.Frame, error) {
	s.mu.Lock()
	if !s.opened || s.closed {
		s.mu.Unlock()
		return capture.Frame{}, services.Wrap(services.ErrDeviceDisconnected, "camera", "next frame", "source not open", nil)
	}
	produced := s.seq
	s.mu.Unlock()

	if s.opts.DisconnectAfter > 0 && produced >= uint64(s.opts.DisconnectAfter) {
		return capture.Frame{}, services.Wrap(services.ErrDeviceDisconnected, "camera", "next frame", "synthetic disconnect", nil)
	}
	wait := s.opts.Interval
	exhausted := s.opts.Limit > 0 && produced >= uint64(s.opts.Limit)
	if exhausted || wait > timeout {
		wait = timeout
	}
	if err := sleep(ctx, wait); err != nil {
		return capture.Frame{}, err
	}
	if exhausted || s.opts.Interval > timeout {
		return capture.Frame{}, services.Wrap(services.ErrTimeout, "camera", "next frame", "no frame within timeout", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ts := s.opts.Clock.Now()
	for _, seq := range s.opts.Backstep {
		if seq == s.seq {
			ts = s.lastTS - time.Millisecond
		}
	}
	if ts >= s.lastTS {
		s.lastTS = ts
	}
	return capture.Frame{
		Seq:       s.seq,
		Timestamp: ts,
		Width:     s.opts.Width,
		Height:    s.opts.Height,
		Pix:       pattern(s.opts.Width, s.opts.Height, s.seq),
	}, nil
}

// Close releases the device once; later calls are no-ops.
func (s *FrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.opened {
		s.releases++
	}
	return nil
}

// Releases counts how many times the device was actually released.
func (s *FrameSource) Releases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

// Produced reports how many frames were handed out.
func (s *FrameSource) Produced() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func pattern(width, height int, seq uint64) []byte {
	pix := make([]byte, width*height*capture.BytesPerPixel)
	shift := int(seq % 256)
	for y := range height {
		row := y * width * capture.BytesPerPixel
		for x := range width {
			i := row + x*capture.BytesPerPixel
			pix[i] = byte(x + shift)
			pix[i+1] = byte(y + shift)
			pix[i+2] = byte(x + y)
		}
	}
	return pix
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
