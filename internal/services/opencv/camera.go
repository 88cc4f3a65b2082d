package opencv

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"oakpipe/internal/capture"
	"oakpipe/internal/device"
	"oakpipe/internal/logging"
	"oakpipe/internal/services"
	"oakpipe/internal/stage"
)

const readRetryDelay = 10 * time.Millisecond

// CameraOptions configure a Camera.
type CameraOptions struct {
	Device          string
	Width           int
	Height          int
	FPS             float64
	BufferDepth     int
	MaxReadFailures int
	LockDir         string
	Hotplug         bool
	Clock           capture.Clock
}

// Camera is a stage.FrameSource over an OpenCV capture device. A reader
// goroutine pulls frames into a small buffer that drops the oldest frame
// when the pipeline lags, so the device is never stalled by a slow consumer.
type Camera struct {
	opts   CameraOptions
	logger *slog.Logger

	frames chan capture.Frame
	dead   chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup

	mu        sync.Mutex
	vc        *gocv.VideoCapture
	claim     *device.Claim
	monitor   *device.Monitor
	deadErr   error
	dropped   uint64
	closeOnce sync.Once
	deadOnce  sync.Once
}

var _ stage.FrameSource = (*Camera)(nil)

// NewCamera returns a camera that is not yet open.
func NewCamera(opts CameraOptions, logger *slog.Logger) *Camera {
	if opts.BufferDepth <= 0 {
		opts.BufferDepth = 4
	}
	if opts.MaxReadFailures <= 0 {
		opts.MaxReadFailures = 30
	}
	if opts.Clock == nil {
		opts.Clock = capture.NewMonotonicClock()
	}
	return &Camera{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "camera"),
		frames: make(chan capture.Frame, opts.BufferDepth),
		dead:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
}

// Open claims the device, opens it and starts the reader.
func (c *Camera) Open(ctx context.Context) error {
	node := device.NodePath(c.opts.Device)
	var claim *device.Claim
	if c.opts.LockDir != "" {
		cl, err := device.Acquire(c.opts.LockDir, node)
		if err != nil {
			return err
		}
		claim = cl
	}

	var target any = c.opts.Device
	if idx, err := strconv.Atoi(c.opts.Device); err == nil {
		target = idx
	}
	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		_ = claim.Release()
		return services.Wrap(services.ErrDeviceUnavailable, "camera", "open", c.opts.Device, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		_ = claim.Release()
		return services.Wrap(services.ErrDeviceUnavailable, "camera", "open", c.opts.Device+" did not open", nil)
	}
	if c.opts.Width > 0 && c.opts.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.opts.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.opts.Height))
	}
	if c.opts.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, c.opts.FPS)
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	c.mu.Lock()
	c.vc = vc
	c.claim = claim
	c.mu.Unlock()

	if c.opts.Hotplug {
		c.monitor = device.NewMonitor(c.logger, node, func(string) {
			c.markDead(services.Wrap(services.ErrDeviceDisconnected, "camera", "hotplug", node+" removed", nil))
		})
		_ = c.monitor.Start(ctx)
	}

	c.wg.Add(1)
	go c.read(vc)

	c.logger.Info("camera opened",
		logging.String("device", c.opts.Device),
		logging.Float64("width", vc.Get(gocv.VideoCaptureFrameWidth)),
		logging.Float64("height", vc.Get(gocv.VideoCaptureFrameHeight)),
		logging.Float64("fps", vc.Get(gocv.VideoCaptureFPS)),
		logging.String(logging.FieldEventType, "camera_opened"),
	)
	return nil
}

func (c *Camera) read(vc *gocv.VideoCapture) {
	defer c.wg.Done()
	mat := gocv.NewMat()
	defer mat.Close()

	var seq uint64
	failures := 0
	for {
		select {
		case <-c.stop:
			return
		case <-c.dead:
			return
		default:
		}
		if ok := vc.Read(&mat); !ok || mat.Empty() {
			failures++
			if failures >= c.opts.MaxReadFailures {
				c.markDead(services.Wrap(services.ErrDeviceDisconnected, "camera", "read",
					strconv.Itoa(failures)+" consecutive failed reads", nil))
				return
			}
			time.Sleep(readRetryDelay)
			continue
		}
		failures = 0
		ts := c.opts.Clock.Now()
		pix, err := toBGR(mat)
		if err != nil {
			c.logger.Debug("frame conversion failed", logging.Error(err))
			continue
		}
		seq++
		c.push(capture.Frame{Seq: seq, Timestamp: ts, Width: mat.Cols(), Height: mat.Rows(), Pix: pix})
	}
}

func (c *Camera) push(frame capture.Frame) {
	for {
		select {
		case c.frames <- frame:
			return
		default:
		}
		select {
		case <-c.frames:
			c.mu.Lock()
			c.dropped++
			c.mu.Unlock()
		default:
		}
	}
}

func (c *Camera) markDead(err error) {
	c.deadOnce.Do(func() {
		c.mu.Lock()
		c.deadErr = err
		c.mu.Unlock()
		close(c.dead)
	})
}

// NextFrame returns the next buffered frame, waiting up to timeout.
func (c *Camera) NextFrame(ctx context.Context, timeout time.Duration) (capture.Frame, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame := <-c.frames:
		return frame, nil
	case <-ctx.Done():
		return capture.Frame{}, ctx.Err()
	case <-timer.C:
		return capture.Frame{}, services.Wrap(services.ErrTimeout, "camera", "next frame", "no frame within "+timeout.String(), nil)
	case <-c.dead:
		c.mu.Lock()
		defer c.mu.Unlock()
		return capture.Frame{}, c.deadErr
	}
}

// Dropped counts frames evicted from the hand-off buffer.
func (c *Camera) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close stops the reader, then releases the device, the monitor and the
// claim. Safe to call more than once.
func (c *Camera) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
		c.monitor.Stop()
		c.markDead(services.Wrap(services.ErrDeviceDisconnected, "camera", "next frame", "camera closed", nil))

		c.mu.Lock()
		vc, claim := c.vc, c.claim
		c.vc, c.claim = nil, nil
		c.mu.Unlock()
		if vc != nil {
			err = vc.Close()
		}
		if rerr := claim.Release(); err == nil {
			err = rerr
		}
		c.logger.Info("camera released",
			logging.Uint64("frames_dropped", c.Dropped()),
			logging.String(logging.FieldEventType, "camera_released"),
		)
	})
	return err
}
