package recording

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"oakpipe/internal/capture"
	"oakpipe/internal/logging"
	"oakpipe/internal/services"
	"oakpipe/internal/stage"
)

const faultBuffer = 8

// Options configures a Recorder.
type Options struct {
	Dir       string
	Prefix    string
	Container string
	Codec     string
	Width     int
	Height    int
	FPS       float64

	Video  bool
	Sensor bool

	QueueDepth       int
	SensorQueueDepth int
	SensorFlushEvery int

	Encoders EncoderFactory
	Now      func() time.Time
}

// Recorder owns the video and sensor sinks of one session. It implements
// stage.Recorder.
type Recorder struct {
	opts   Options
	logger *slog.Logger

	frames  *DropQueue[capture.Frame]
	samples *DropQueue[capture.SensorSample]
	video   *VideoSink
	sensor  *SensorSink

	faults    chan error
	opened    bool
	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	// abandoned is set when a forced drain stops waiting on a stuck write.
	abandoned atomic.Bool
}

var _ stage.Recorder = (*Recorder)(nil)

// New builds a Recorder. Nothing touches the disk until Open.
func New(opts Options, logger *slog.Logger) *Recorder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Recorder{
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "recorder"),
		frames:  NewDropQueue[capture.Frame](opts.QueueDepth),
		samples: NewDropQueue[capture.SensorSample](opts.SensorQueueDepth),
		faults:  make(chan error, faultBuffer),
		done:    make(chan struct{}),
	}
}

// Open creates the session files named {prefix}_{timestamp}.{ext} and starts
// one writer goroutine per enabled sink. A failure closes anything already
// opened.
func (r *Recorder) Open(ctx context.Context) error {
	exts := []string{r.opts.Container, SensorLogExt}
	base := UniqueBase(r.opts.Dir, r.opts.Prefix, r.opts.Now(), exts...)

	if r.opts.Video {
		sink, err := OpenVideoSink(EncoderSpec{
			Path:   filepath.Join(r.opts.Dir, base+"."+r.opts.Container),
			Codec:  r.opts.Codec,
			Width:  r.opts.Width,
			Height: r.opts.Height,
			FPS:    r.opts.FPS,
		}, r.opts.Encoders)
		if err != nil {
			return err
		}
		r.video = sink
	}
	if r.opts.Sensor {
		sink, err := OpenSensorSink(filepath.Join(r.opts.Dir, base+"."+SensorLogExt), r.opts.SensorFlushEvery)
		if err != nil {
			if r.video != nil {
				_ = r.video.Close()
			}
			return err
		}
		r.sensor = sink
	}

	if r.video != nil {
		r.wg.Add(1)
		go r.writeFrames()
	} else {
		r.frames.Close()
	}
	if r.sensor != nil {
		r.wg.Add(1)
		go r.writeSamples()
	} else {
		r.samples.Close()
	}
	r.opened = true
	go func() {
		r.wg.Wait()
		close(r.done)
	}()

	r.logger.Info("recording session opened",
		logging.String("video_path", r.videoPath()),
		logging.String("sensor_path", r.sensorPath()),
		logging.String(logging.FieldEventType, "recording_opened"),
	)
	return nil
}

// WriteFrame queues frame for the video sink without blocking.
func (r *Recorder) WriteFrame(frame capture.Frame) {
	if r.video == nil {
		return
	}
	r.frames.Push(frame)
}

// WriteSample queues sample for the sensor log without blocking.
func (r *Recorder) WriteSample(sample capture.SensorSample) {
	if r.sensor == nil {
		return
	}
	r.samples.Push(sample)
}

// Faults delivers sink failures. Each sink reports at most one I/O fault.
func (r *Recorder) Faults() <-chan error {
	return r.faults
}

func (r *Recorder) writeFrames() {
	defer r.wg.Done()
	for {
		frame, ok := r.frames.Pop()
		if !ok {
			return
		}
		if err := r.video.Write(frame); err != nil {
			if r.handleWriteError("video", err, logging.Uint64(logging.FieldFrameSeq, frame.Seq)) {
				r.frames.Abort()
				return
			}
		}
	}
}

func (r *Recorder) writeSamples() {
	defer r.wg.Done()
	for {
		sample, ok := r.samples.Pop()
		if !ok {
			return
		}
		if err := r.sensor.Write(sample); err != nil {
			if r.handleWriteError("sensor", err, logging.Duration("sample_ts", sample.Timestamp)) {
				r.samples.Abort()
				return
			}
		}
	}
}

// handleWriteError logs err and reports whether the sink is now unusable.
func (r *Recorder) handleWriteError(sink string, err error, attrs ...logging.Attr) bool {
	attrs = append(attrs,
		logging.String(logging.FieldStage, sink),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.Error(err),
	)
	switch {
	case errors.Is(err, services.ErrNonMonotonicTimestamp):
		logging.WarnWithContext(r.logger, "out of order item dropped", "recording_out_of_order",
			append(attrs,
				logging.String(logging.FieldImpact, "one item missing from the recording"),
				logging.String(logging.FieldErrorHint, "check the device clock"),
			)...)
		return false
	case errors.Is(err, services.ErrSinkClosed):
		return true
	default:
		logging.ErrorWithContext(r.logger, "recording sink failed; no further writes on this sink", "recording_sink_failed",
			append(attrs,
				logging.String(logging.FieldImpact, "session recording marked failed, live processing continues"),
				logging.String(logging.FieldErrorHint, "check free space and permissions on the output directory"),
			)...)
		select {
		case r.faults <- err:
		default:
		}
		return true
	}
}

// Drain stops accepting new items and waits for the writers to flush what is
// queued. If ctx ends first the remaining queued items are discarded (counted
// as dropped) and Drain returns without waiting for a write still in flight;
// that writer finalizes the files once the write returns.
func (r *Recorder) Drain(ctx context.Context) error {
	if !r.opened {
		return r.Close()
	}
	r.frames.Close()
	r.samples.Close()

	select {
	case <-r.done:
		return r.finalize()
	case <-ctx.Done():
	}

	discarded := r.frames.Abort() + r.samples.Abort()
	logging.WarnWithContext(r.logger, "drain grace period expired; discarding queued items", "recording_drain_aborted",
		logging.Int("discarded", discarded),
		logging.String(logging.FieldImpact, "final segment of the recording is truncated"),
		logging.String(logging.FieldErrorHint, "raise pipeline.drain_grace_seconds or use faster storage"),
	)
	drainErr := services.Wrap(services.ErrTimeout, "recorder", "drain", "grace period expired", ctx.Err())

	select {
	case <-r.done:
		if err := r.finalize(); err != nil {
			r.logger.Debug("finalize after aborted drain failed", logging.Error(err))
		}
		return drainErr
	default:
	}

	r.abandoned.Store(true)
	logging.WarnWithContext(r.logger, "sink write still in flight; files finalize when it returns", "recording_finalize_deferred",
		logging.String(logging.FieldImpact, "recording files stay open until the storage write completes"),
		logging.String(logging.FieldErrorHint, "check the output device for stalls"),
	)
	go func() {
		if err := r.finalize(); err != nil {
			logging.WarnWithContext(r.logger, "deferred recording finalize failed", "recorder_finalize_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "recording may be incomplete"),
			)
		}
	}()
	return drainErr
}

// Close discards queued items, waits for any in-flight write and finalizes
// both files. It is safe to call more than once and after Drain. After a
// forced Drain left a write in flight, Close returns immediately.
func (r *Recorder) Close() error {
	r.frames.Abort()
	r.samples.Abort()
	if r.abandoned.Load() {
		return nil
	}
	return r.finalize()
}

// finalize closes both sinks once the writers have exited.
func (r *Recorder) finalize() error {
	r.closeOnce.Do(func() {
		if r.opened {
			<-r.done
		}
		var errs []error
		if r.video != nil {
			errs = append(errs, r.video.Close())
		}
		if r.sensor != nil {
			errs = append(errs, r.sensor.Close())
		}
		r.closeErr = errors.Join(errs...)
		stats := r.Stats()
		r.logger.Info("recording session closed",
			logging.Uint64("frames_written", stats.FramesWritten),
			logging.Uint64("frames_dropped", stats.FramesDropped),
			logging.Uint64("samples_written", stats.SamplesWritten),
			logging.Uint64("samples_dropped", stats.SamplesDropped),
			logging.String(logging.FieldEventType, "recording_closed"),
		)
	})
	return r.closeErr
}

// Stats returns the current counters.
func (r *Recorder) Stats() stage.RecorderStats {
	stats := stage.RecorderStats{
		VideoPath:      r.videoPath(),
		SensorPath:     r.sensorPath(),
		FramesDropped:  r.frames.Dropped(),
		SamplesDropped: r.samples.Dropped(),
	}
	if r.video != nil {
		stats.FramesWritten = r.video.Written()
		stats.VideoFailed = r.video.Failed() != nil
	}
	if r.sensor != nil {
		stats.SamplesWritten = r.sensor.Written()
		stats.SensorFailed = r.sensor.Failed() != nil
	}
	return stats
}

func (r *Recorder) videoPath() string {
	if r.video == nil {
		return ""
	}
	return r.video.Path()
}

func (r *Recorder) sensorPath() string {
	if r.sensor == nil {
		return ""
	}
	return r.sensor.Path()
}
