// Package overlay computes what to draw over a frame for a set of tracked
// detections. Drawing itself happens in the OpenCV adapter; keeping the plan
// pure lets it be tested without a display or cgo.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"oakpipe/internal/capture"
)

// Thickness of box outlines in pixels.
const Thickness = 2

// FontScale for label text.
const FontScale = 0.5

// LabelHeight approximates the rendered label height at FontScale.
const LabelHeight = 14

var palette = []color.RGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 157, B: 151, A: 255},
	{R: 255, G: 112, B: 31, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 146, G: 204, B: 23, A: 255},
	{R: 61, G: 219, B: 134, A: 255},
	{R: 26, G: 147, B: 52, A: 255},
	{R: 0, G: 212, B: 187, A: 255},
	{R: 44, G: 153, B: 168, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 52, G: 69, B: 147, A: 255},
	{R: 100, G: 115, B: 255, A: 255},
	{R: 0, G: 24, B: 236, A: 255},
	{R: 132, G: 56, B: 255, A: 255},
}

// Annotation is one box and its caption.
type Annotation struct {
	Rect   image.Rectangle
	Label  string
	Origin image.Point
	Color  color.RGBA
}

// Plan lays out annotations for a width x height frame. Boxes are clamped to
// the frame and degenerate boxes are skipped. The caption sits above the box,
// or inside it when the box touches the top edge.
func Plan(width, height int, detections []capture.TrackedDetection) []Annotation {
	if len(detections) == 0 {
		return nil
	}
	out := make([]Annotation, 0, len(detections))
	for _, d := range detections {
		b := d.Box.Clamp(width, height)
		rect := image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
		if rect.Empty() {
			continue
		}
		origin := image.Pt(rect.Min.X, rect.Min.Y-4)
		if origin.Y < LabelHeight {
			origin.Y = min(rect.Min.Y+LabelHeight, height-1)
		}
		out = append(out, Annotation{
			Rect:   rect,
			Label:  Caption(d),
			Origin: origin,
			Color:  ColorFor(d),
		})
	}
	return out
}

// Caption formats "Label #id 0.87"; the id is omitted for untracked detections.
func Caption(d capture.TrackedDetection) string {
	var b strings.Builder
	b.WriteString(cases.Title(language.Und).String(strings.TrimSpace(d.Label)))
	if d.TrackID > 0 {
		fmt.Fprintf(&b, " #%d", d.TrackID)
	}
	fmt.Fprintf(&b, " %.2f", d.Confidence)
	return strings.TrimSpace(b.String())
}

// ColorFor keys the palette by track id so a track keeps its color, falling
// back to the class id for untracked detections.
func ColorFor(d capture.TrackedDetection) color.RGBA {
	key := uint64(max(d.ClassID, 0))
	if d.TrackID > 0 {
		key = d.TrackID
	}
	return palette[key%uint64(len(palette))]
}
