package workflow

import (
	"context"
	"sync/atomic"
	"time"

	"oakpipe/internal/capture"
	"oakpipe/internal/stage"
)

type inferenceOutcome int

const (
	inferenceDone inferenceOutcome = iota
	inferenceSkipped
	inferenceTimedOut
	inferenceFailed
)

type inferenceJob struct {
	frame capture.Frame
	reply chan inferenceResult
}

type inferenceResult struct {
	detections []capture.Detection
	err        error
}

// inferenceWorker runs detect calls off the frame loop. At most one call is in
// flight; while it runs past its deadline later frames skip inference.
type inferenceWorker struct {
	detector stage.Detector
	timeout  time.Duration
	latency  *latencyWindow

	jobs chan inferenceJob
	busy atomic.Bool
	done chan struct{}
}

func newInferenceWorker(detector stage.Detector, timeout time.Duration, latency *latencyWindow) *inferenceWorker {
	return &inferenceWorker{
		detector: detector,
		timeout:  timeout,
		latency:  latency,
		jobs:     make(chan inferenceJob, 1),
		done:     make(chan struct{}),
	}
}

func (w *inferenceWorker) start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *inferenceWorker) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			callCtx, cancel := context.WithTimeout(ctx, w.timeout)
			started := time.Now()
			detections, err := w.detector.Detect(callCtx, job.frame)
			cancel()
			w.latency.add(time.Since(started))
			w.busy.Store(false)
			job.reply <- inferenceResult{detections: detections, err: err}
		}
	}
}

// infer submits frame and waits at most the call timeout for the result.
func (w *inferenceWorker) infer(ctx context.Context, frame capture.Frame) ([]capture.Detection, inferenceOutcome, error) {
	if !w.busy.CompareAndSwap(false, true) {
		return nil, inferenceSkipped, nil
	}
	reply := make(chan inferenceResult, 1)
	select {
	case w.jobs <- inferenceJob{frame: frame, reply: reply}:
	default:
		w.busy.Store(false)
		return nil, inferenceSkipped, nil
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	select {
	case res := <-reply:
		if res.err != nil {
			return nil, inferenceFailed, res.err
		}
		return res.detections, inferenceDone, nil
	case <-timer.C:
		return nil, inferenceTimedOut, nil
	case <-ctx.Done():
		return nil, inferenceSkipped, ctx.Err()
	}
}

// stop waits up to grace for the worker to exit after its context ended and
// reports whether it did.
func (w *inferenceWorker) stop(grace time.Duration) bool {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-w.done:
		return true
	case <-timer.C:
		return false
	}
}
