package workflow_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"oakpipe/internal/capture"
	"oakpipe/internal/logging"
	"oakpipe/internal/recording"
	"oakpipe/internal/services"
	"oakpipe/internal/services/synthetic"
	"oakpipe/internal/stage"
	"oakpipe/internal/testsupport"
	"oakpipe/internal/workflow"
)

const (
	frameWidth  = 32
	frameHeight = 24
)

func testSettings() workflow.Settings {
	return workflow.Settings{
		FrameTimeout:     50 * time.Millisecond,
		SampleTimeout:    20 * time.Millisecond,
		InferenceTimeout: 20 * time.Millisecond,
		DrainGrace:       2 * time.Second,
	}
}

func newRecorder(t *testing.T, enc *testsupport.MemoryEncoder, mutate func(*recording.Options)) *recording.Recorder {
	t.Helper()
	opts := recording.Options{
		Dir:              filepath.Join(t.TempDir(), "recordings"),
		Prefix:           "oakd",
		Container:        "mkv",
		Codec:            "mp4v",
		Width:            frameWidth,
		Height:           frameHeight,
		FPS:              30,
		Video:            true,
		Sensor:           true,
		QueueDepth:       256,
		SensorQueueDepth: 4096,
		SensorFlushEvery: 1,
		Encoders:         testsupport.EncoderFactory(enc),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return recording.New(opts, logging.NewNop())
}

func newSource(clock capture.Clock, mutate func(*synthetic.FrameOptions)) *synthetic.FrameSource {
	opts := synthetic.FrameOptions{
		Width:    frameWidth,
		Height:   frameHeight,
		Interval: 2 * time.Millisecond,
		Clock:    clock,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return synthetic.NewFrameSource(opts)
}

type result struct {
	summary workflow.Summary
	err     error
}

type session struct {
	mgr  *workflow.Manager
	done chan result
}

func start(t *testing.T, settings workflow.Settings, stages workflow.StageSet, clock capture.Clock) *session {
	t.Helper()
	mgr := workflow.NewManager(settings, stages, logging.NewNop(), workflow.WithClock(clock))
	s := &session{mgr: mgr, done: make(chan result, 1)}
	go func() {
		summary, err := mgr.Run(context.Background())
		s.done <- result{summary: summary, err: err}
	}()
	t.Cleanup(func() {
		mgr.ForceStop()
		select {
		case <-s.done:
		case <-time.After(5 * time.Second):
		}
	})
	return s
}

func (s *session) wait(t *testing.T) (workflow.Summary, error) {
	t.Helper()
	select {
	case res := <-s.done:
		s.done <- res
		return res.summary, res.err
	case <-time.After(10 * time.Second):
		t.Fatal("session did not finish")
		return workflow.Summary{}, nil
	}
}

func (s *session) stopAfter(t *testing.T, cond func(workflow.Status) bool) (workflow.Summary, error) {
	t.Helper()
	waitFor(t, func() bool { return cond(s.mgr.Status()) })
	s.mgr.Stop()
	return s.wait(t)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func states(history []workflow.Transition) []workflow.RunState {
	out := make([]workflow.RunState, 0, len(history)+1)
	if len(history) > 0 {
		out = append(out, history[0].From)
	}
	for _, tr := range history {
		out = append(out, tr.To)
	}
	return out
}

func transitionAt(t *testing.T, history []workflow.Transition, to workflow.RunState) time.Duration {
	t.Helper()
	for _, tr := range history {
		if tr.To == to {
			return tr.At
		}
	}
	t.Fatalf("no transition to %s in history", to)
	return 0
}

// eventLog captures open and close calls across fakes.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeSource struct {
	log     *eventLog
	openErr error
}

func (f *fakeSource) Open(context.Context) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.log.add("open camera")
	return nil
}

func (f *fakeSource) NextFrame(ctx context.Context, timeout time.Duration) (capture.Frame, error) {
	select {
	case <-ctx.Done():
		return capture.Frame{}, ctx.Err()
	case <-time.After(timeout):
		return capture.Frame{}, services.Wrap(services.ErrTimeout, "camera", "next frame", "fake", nil)
	}
}

func (f *fakeSource) Close() error {
	f.log.add("close camera")
	return nil
}

type fakeSensor struct {
	stage.DisabledSensor
	log *eventLog
}

func (f *fakeSensor) Open(context.Context) error {
	f.log.add("open imu")
	return nil
}

func (f *fakeSensor) Close() error {
	f.log.add("close imu")
	return nil
}

type fakeDetector struct {
	log         *eventLog
	validateErr error
	delay       time.Duration
	err         error
	detections  []capture.Detection

	mu    sync.Mutex
	calls int
}

func (f *fakeDetector) Validate(context.Context) error {
	if f.validateErr != nil {
		return f.validateErr
	}
	if f.log != nil {
		f.log.add("validate detector")
	}
	return nil
}

// Detect ignores ctx on purpose: it models a native call that cannot be
// interrupted.
func (f *fakeDetector) Detect(_ context.Context, frame capture.Frame) ([]capture.Detection, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]capture.Detection(nil), f.detections...), nil
}

func (f *fakeDetector) Close() error {
	if f.log != nil {
		f.log.add("close detector")
	}
	return nil
}

func (f *fakeDetector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type countingRenderer struct {
	mu      sync.Mutex
	calls   int
	tracked []capture.TrackedDetection
}

func (r *countingRenderer) Render(frame capture.Frame, detections []capture.TrackedDetection) capture.Frame {
	r.mu.Lock()
	r.calls++
	r.tracked = append(r.tracked, detections...)
	r.mu.Unlock()
	pix := append([]byte(nil), frame.Pix...)
	pix[0] = 0xff
	return frame.WithPix(pix)
}

func (r *countingRenderer) snapshot() (int, []capture.TrackedDetection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, append([]capture.TrackedDetection(nil), r.tracked...)
}

type quitDisplay struct {
	openErr error
	quitAt  int

	mu    sync.Mutex
	shown int
}

func (d *quitDisplay) Open(context.Context) error { return d.openErr }

func (d *quitDisplay) Show(capture.Frame) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown++
	return d.quitAt > 0 && d.shown >= d.quitAt
}

func (d *quitDisplay) Close() error { return nil }

func (d *quitDisplay) Shown() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown
}
