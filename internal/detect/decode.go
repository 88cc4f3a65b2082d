package detect

import (
	"fmt"
	"slices"

	"oakpipe/internal/capture"
)

// Layout identifies the arrangement of a YOLO output tensor.
type Layout int

const (
	// LayoutAuto picks the layout from the tensor shape.
	LayoutAuto Layout = iota
	// LayoutRows is one row per candidate: cx, cy, w, h, objectness, class scores (YOLOv5).
	LayoutRows
	// LayoutColumns is one column per candidate: cx, cy, w, h, class scores (YOLOv8).
	LayoutColumns
)

func (l Layout) String() string {
	switch l {
	case LayoutRows:
		return "rows"
	case LayoutColumns:
		return "columns"
	default:
		return "auto"
	}
}

// Options filter decoded candidates.
type Options struct {
	ConfidenceThreshold float64
	// Classes restricts output to these class ids. Empty keeps every class.
	Classes []int
	Labels  []string
}

// Decode turns a raw output tensor of shape dims into detections in frame
// pixel coordinates. Boxes are clamped to the frame. Overlap suppression is
// left to the caller.
func Decode(data []float32, dims []int, layout Layout, lb Letterbox, frameW, frameH int, opts Options) ([]capture.Detection, error) {
	shape := squeeze(dims)
	if len(shape) != 2 {
		return nil, fmt.Errorf("unsupported output shape %v", dims)
	}
	if shape[0]*shape[1] != len(data) {
		return nil, fmt.Errorf("output shape %v does not match %d values", dims, len(data))
	}
	if layout == LayoutAuto {
		layout = LayoutRows
		if shape[0] < shape[1] {
			layout = LayoutColumns
		}
	}

	var (
		count, stride int
		at            func(cand, field int) float32
		scoreOffset   int
		objectness    bool
	)
	switch layout {
	case LayoutRows:
		count, stride = shape[0], shape[1]
		at = func(c, f int) float32 { return data[c*stride+f] }
		scoreOffset, objectness = 5, true
	case LayoutColumns:
		count, stride = shape[1], shape[0]
		at = func(c, f int) float32 { return data[f*count+c] }
		scoreOffset = 4
	default:
		return nil, fmt.Errorf("unknown layout %d", layout)
	}
	if stride <= scoreOffset {
		return nil, fmt.Errorf("output has %d fields per candidate, need more than %d", stride, scoreOffset)
	}

	var out []capture.Detection
	for c := range count {
		classID, score := -1, float32(0)
		for f := scoreOffset; f < stride; f++ {
			if s := at(c, f); s > score {
				classID, score = f-scoreOffset, s
			}
		}
		conf := float64(score)
		if objectness {
			conf *= float64(at(c, 4))
		}
		if classID < 0 || conf < opts.ConfidenceThreshold {
			continue
		}
		if len(opts.Classes) > 0 && !slices.Contains(opts.Classes, classID) {
			continue
		}
		cx, cy := float64(at(c, 0)), float64(at(c, 1))
		w, h := float64(at(c, 2)), float64(at(c, 3))
		box := lb.ToFrame(capture.Box{X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2}).Clamp(frameW, frameH)
		if box.Area() == 0 {
			continue
		}
		out = append(out, capture.Detection{
			Box:        box,
			ClassID:    classID,
			Label:      LabelFor(opts.Labels, classID),
			Confidence: min(conf, 1),
		})
	}
	return out, nil
}

// squeeze drops leading unit dimensions.
func squeeze(dims []int) []int {
	for len(dims) > 2 && dims[0] == 1 {
		dims = dims[1:]
	}
	return dims
}
