package capture

import (
	"fmt"
	"time"
)

// BytesPerPixel is the packed BGR24 stride every adapter produces.
const BytesPerPixel = 3

// Frame is one color image from the camera.
type Frame struct {
	Seq       uint64
	Timestamp time.Duration
	Width     int
	Height    int
	Pix       []byte
}

// Valid reports whether Pix matches the declared geometry.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*BytesPerPixel
}

// WithPix returns a copy of f carrying pix. Metadata is preserved so the
// sequence and timestamp survive rendering.
func (f Frame) WithPix(pix []byte) Frame {
	f.Pix = pix
	return f
}

func (f Frame) String() string {
	return fmt.Sprintf("frame #%d @%s %dx%d", f.Seq, f.Timestamp, f.Width, f.Height)
}

// Box is an axis-aligned rectangle in frame pixel coordinates.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// Width of the box, zero when degenerate.
func (b Box) Width() float64 { return max(0, b.X2-b.X1) }

// Height of the box, zero when degenerate.
func (b Box) Height() float64 { return max(0, b.Y2-b.Y1) }

// Area of the box.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// IoU is the intersection over union of two boxes, in [0, 1].
func (b Box) IoU(o Box) float64 {
	inter := Box{
		X1: max(b.X1, o.X1),
		Y1: max(b.Y1, o.Y1),
		X2: min(b.X2, o.X2),
		Y2: min(b.Y2, o.Y2),
	}.Area()
	if inter == 0 {
		return 0
	}
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Clamp limits the box to a width x height frame.
func (b Box) Clamp(width, height int) Box {
	w, h := float64(width), float64(height)
	return Box{
		X1: min(max(b.X1, 0), w),
		Y1: min(max(b.Y1, 0), h),
		X2: min(max(b.X2, 0), w),
		Y2: min(max(b.Y2, 0), h),
	}
}

// Detection is one object candidate found in a single frame.
type Detection struct {
	Box        Box
	ClassID    int
	Label      string
	Confidence float64
}

// TrackedDetection is a detection annotated by the tracker.
type TrackedDetection struct {
	Detection
	TrackID uint64
	// Age counts the frames this track has been observed in, including this one.
	Age int
}

// Untracked lifts plain detections into the tracked shape with no identity,
// so the overlay renderer has a single input type.
func Untracked(dets []Detection) []TrackedDetection {
	if len(dets) == 0 {
		return nil
	}
	out := make([]TrackedDetection, len(dets))
	for i, d := range dets {
		out[i] = TrackedDetection{Detection: d}
	}
	return out
}

// SensorSample is one gyroscope reading in rad/s.
type SensorSample struct {
	Timestamp time.Duration
	GyroX     float64
	GyroY     float64
	GyroZ     float64
}
