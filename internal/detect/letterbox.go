package detect

import (
	"oakpipe/internal/capture"
)

// Letterbox describes how a frame was scaled and padded into the square
// network input.
type Letterbox struct {
	Size  int
	Scale float64
	PadX  float64
	PadY  float64
}

// NewLetterbox fits a width x height frame into a size x size square,
// preserving aspect ratio and centring the content.
func NewLetterbox(width, height, size int) Letterbox {
	if width <= 0 || height <= 0 || size <= 0 {
		return Letterbox{Size: size, Scale: 1}
	}
	scale := min(float64(size)/float64(width), float64(size)/float64(height))
	return Letterbox{
		Size:  size,
		Scale: scale,
		PadX:  (float64(size) - float64(width)*scale) / 2,
		PadY:  (float64(size) - float64(height)*scale) / 2,
	}
}

// Content returns the scaled content size inside the square.
func (l Letterbox) Content(width, height int) (int, int) {
	return int(float64(width)*l.Scale + 0.5), int(float64(height)*l.Scale + 0.5)
}

// ToFrame maps a box in network input pixels back to frame pixels.
func (l Letterbox) ToFrame(b capture.Box) capture.Box {
	if l.Scale == 0 {
		return b
	}
	return capture.Box{
		X1: (b.X1 - l.PadX) / l.Scale,
		Y1: (b.Y1 - l.PadY) / l.Scale,
		X2: (b.X2 - l.PadX) / l.Scale,
		Y2: (b.Y2 - l.PadY) / l.Scale,
	}
}
