package opencv

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"oakpipe/internal/capture"
	"oakpipe/internal/detect"
	"oakpipe/internal/logging"
	"oakpipe/internal/services"
	"oakpipe/internal/stage"
)

var letterboxFill = color.RGBA{R: 114, G: 114, B: 114}

// DetectorOptions configure a Detector.
type DetectorOptions struct {
	Model               string
	Labels              string
	InputSize           int
	ConfidenceThreshold float64
	NMSThreshold        float64
	Classes             []int
	Backend             string
	Verbose             bool
}

// Detector runs a YOLO-family network through OpenCV's dnn module. The net
// is not safe for concurrent use, so forward passes are serialized.
type Detector struct {
	opts   DetectorOptions
	logger *slog.Logger

	pass sync.Mutex // serializes forward passes

	mu      sync.Mutex // guards the fields below; never held during a pass
	net     gocv.Net
	labels  []string
	loaded  bool
	busy    bool
	closing bool
}

var _ stage.Detector = (*Detector)(nil)

// NewDetector returns a detector whose model loads in Validate.
func NewDetector(opts DetectorOptions, logger *slog.Logger) *Detector {
	if opts.InputSize <= 0 {
		opts.InputSize = 640
	}
	return &Detector{opts: opts, logger: logging.NewComponentLogger(logger, "inference")}
}

// Validate loads the model and label table and runs one pass over a blank
// image. Any failure is a configuration problem reported before capture.
func (d *Detector) Validate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return nil
	}
	if _, err := os.Stat(d.opts.Model); err != nil {
		return services.Wrap(services.ErrConfigInvalid, "inference", "load model", d.opts.Model, err)
	}
	if d.opts.Labels != "" {
		labels, err := detect.LoadLabels(d.opts.Labels)
		if err != nil {
			return services.Wrap(services.ErrConfigInvalid, "inference", "load labels", d.opts.Labels, err)
		}
		d.labels = labels
	}

	net := gocv.ReadNet(d.opts.Model, "")
	if net.Empty() {
		_ = net.Close()
		return services.Wrap(services.ErrConfigInvalid, "inference", "load model", d.opts.Model+" is corrupt or in an unsupported format", nil)
	}
	backend, target := backendFor(d.opts.Backend)
	if err := net.SetPreferableBackend(backend); err != nil {
		_ = net.Close()
		return services.Wrap(services.ErrConfigInvalid, "inference", "set backend", d.opts.Backend, err)
	}
	if err := net.SetPreferableTarget(target); err != nil {
		_ = net.Close()
		return services.Wrap(services.ErrConfigInvalid, "inference", "set target", d.opts.Backend, err)
	}
	d.net = net
	d.loaded = true

	size := d.opts.InputSize
	blank := capture.Frame{Width: size, Height: size, Pix: make([]byte, size*size*capture.BytesPerPixel)}
	if _, err := d.infer(blank); err != nil {
		_ = d.net.Close()
		d.loaded = false
		return services.Wrap(services.ErrConfigInvalid, "inference", "warm up", d.opts.Model, err)
	}
	d.logger.Info("model loaded",
		logging.String("model", d.opts.Model),
		logging.Int("labels", len(d.labels)),
		logging.Int("input_size", size),
		logging.String("backend", d.opts.Backend),
		logging.String(logging.FieldEventType, "model_loaded"),
	)
	return nil
}

// Detect runs the network on frame. A forward pass cannot be interrupted, so
// ctx is only checked before it starts.
func (d *Detector) Detect(ctx context.Context, frame capture.Frame) ([]capture.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, services.Wrap(services.ErrInference, "inference", "detect", "cancelled", err)
	}
	d.pass.Lock()
	defer d.pass.Unlock()

	d.mu.Lock()
	if !d.loaded || d.closing {
		d.mu.Unlock()
		return nil, services.Wrap(services.ErrInference, "inference", "detect", "model not loaded", nil)
	}
	d.busy = true
	d.mu.Unlock()

	dets, err := d.infer(frame)
	d.endPass()
	if err != nil {
		return nil, services.Wrap(services.ErrInference, "inference", "detect", frame.String(), err)
	}
	if d.opts.Verbose {
		d.logger.Debug("detections",
			logging.Uint64(logging.FieldFrameSeq, frame.Seq),
			logging.Int("count", len(dets)),
		)
	}
	return dets, nil
}

func (d *Detector) infer(frame capture.Frame) (dets []capture.Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("opencv panic: %v", r)
		}
	}()

	mat, err := toMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	size := d.opts.InputSize
	lb := detect.NewLetterbox(frame.Width, frame.Height, size)
	cw, ch := lb.Content(frame.Width, frame.Height)
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(cw, ch), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMat()
	defer padded.Close()
	top := (size - ch) / 2
	left := (size - cw) / 2
	gocv.CopyMakeBorder(resized, &padded, top, size-ch-top, left, size-cw-left, gocv.BorderConstant, letterboxFill)

	blob := gocv.BlobFromImage(padded, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	candidates, err := detect.Decode(data, out.Size(), detect.LayoutAuto, lb, frame.Width, frame.Height, detect.Options{
		ConfidenceThreshold: d.opts.ConfidenceThreshold,
		Classes:             d.opts.Classes,
		Labels:              d.labels,
	})
	if err != nil {
		return nil, err
	}
	return d.suppress(candidates), nil
}

// suppress applies class-aware non-maximum suppression. Boxes are shifted
// by class so that different classes never overlap.
func (d *Detector) suppress(candidates []capture.Detection) []capture.Detection {
	if len(candidates) < 2 {
		return candidates
	}
	const classOffset = 1 << 16
	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		off := c.ClassID * classOffset
		boxes[i] = image.Rect(int(c.Box.X1)+off, int(c.Box.Y1)+off, int(c.Box.X2)+off, int(c.Box.Y2)+off)
		scores[i] = float32(c.Confidence)
	}
	keep := gocv.NMSBoxes(boxes, scores, float32(d.opts.ConfidenceThreshold), float32(d.opts.NMSThreshold))
	out := make([]capture.Detection, 0, len(keep))
	for _, idx := range keep {
		out = append(out, candidates[idx])
	}
	return out
}

// endPass clears the busy flag and performs a release that Close deferred.
func (d *Detector) endPass() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = false
	if !d.closing {
		return
	}
	d.closing = false
	d.loaded = false
	if err := d.net.Close(); err != nil {
		logging.WarnWithContext(d.logger, "deferred model release failed", "model_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "model memory stays allocated until exit"),
		)
	}
}

// Close releases the network. When a forward pass is running Close returns
// at once and the pass releases the network when it finishes.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded || d.closing {
		return nil
	}
	if d.busy {
		d.closing = true
		return nil
	}
	d.loaded = false
	return d.net.Close()
}

func backendFor(name string) (gocv.NetBackendType, gocv.NetTargetType) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cuda":
		return gocv.NetBackendCUDA, gocv.NetTargetCUDA
	case "openvino":
		return gocv.NetBackendOpenVINO, gocv.NetTargetCPU
	default:
		return gocv.NetBackendDefault, gocv.NetTargetCPU
	}
}
