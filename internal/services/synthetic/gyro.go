package synthetic

import (
	"context"
	"math"
	"sync"
	"time"

	"oakpipe/internal/capture"
	"oakpipe/internal/services"
	"oakpipe/internal/stage"
)

// GyroOptions configure a Gyro.
type GyroOptions struct {
	Interval        time.Duration
	Clock           capture.Clock
	DisconnectAfter int
	Unavailable     bool
}

// Gyro produces sinusoidal angular rates and remembers every sample it handed out.
type Gyro struct {
	opts GyroOptions

	mu        sync.Mutex
	opened    bool
	closed    bool
	releases  int
	delivered []capture.SensorSample
}

var _ stage.SensorStream = (*Gyro)(nil)

// NewGyro returns a stream that is not yet open.
func NewGyro(opts GyroOptions) *Gyro {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = capture.NewMonotonicClock()
	}
	return &Gyro{opts: opts}
}

func (g *Gyro) Open(context.Context) error {
	if g.opts.Unavailable {
		return services.Wrap(services.ErrDeviceUnavailable, "imu", "open", "synthetic gyroscope marked unavailable", nil)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opened = true
	return nil
}

func (g *Gyro) NextSample(ctx context.Context, timeout time.Duration) (capture.SensorSample, error) {
	g.mu.Lock()
	if !g.opened || g.closed {
		g.mu.Unlock()
		return capture.SensorSample{}, services.Wrap(services.ErrDeviceDisconnected, "imu", "next sample", "stream not open", nil)
	}
	n := len(g.delivered)
	g.mu.Unlock()

	if g.opts.DisconnectAfter > 0 && n >= g.opts.DisconnectAfter {
		return capture.SensorSample{}, services.Wrap(services.ErrDeviceDisconnected, "imu", "next sample", "synthetic disconnect", nil)
	}
	wait := min(g.opts.Interval, timeout)
	if err := sleep(ctx, wait); err != nil {
		return capture.SensorSample{}, err
	}
	if g.opts.Interval > timeout {
		return capture.SensorSample{}, services.Wrap(services.ErrTimeout, "imu", "next sample", "no sample within timeout", nil)
	}

	ts := g.opts.Clock.Now()
	phase := ts.Seconds()
	sample := capture.SensorSample{
		Timestamp: ts,
		GyroX:     0.2 * math.Sin(2*math.Pi*phase),
		GyroY:     0.1 * math.Cos(2*math.Pi*phase),
		GyroZ:     0.05,
	}
	g.mu.Lock()
	g.delivered = append(g.delivered, sample)
	g.mu.Unlock()
	return sample, nil
}

func (g *Gyro) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	if g.opened {
		g.releases++
	}
	return nil
}

// Releases counts actual releases of the stream.
func (g *Gyro) Releases() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.releases
}

// Delivered returns a copy of every sample handed out so far.
func (g *Gyro) Delivered() []capture.SensorSample {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]capture.SensorSample(nil), g.delivered...)
}
