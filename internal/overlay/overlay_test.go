package overlay

import (
	"image"
	"testing"

	"oakpipe/internal/capture"
)

func tracked(id uint64, class int, label string, box capture.Box) capture.TrackedDetection {
	return capture.TrackedDetection{
		Detection: capture.Detection{Box: box, ClassID: class, Label: label, Confidence: 0.876},
		TrackID:   id,
		Age:       1,
	}
}

func TestCaption(t *testing.T) {
	tests := []struct {
		name string
		in   capture.TrackedDetection
		want string
	}{
		{"tracked", tracked(7, 0, "traffic light", capture.Box{}), "Traffic Light #7 0.88"},
		{"untracked", tracked(0, 0, "person", capture.Box{}), "Person 0.88"},
		{"no label", tracked(0, 0, "", capture.Box{}), "0.88"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Caption(tt.in); got != tt.want {
				t.Fatalf("Caption = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlanClampsAndSkipsDegenerate(t *testing.T) {
	dets := []capture.TrackedDetection{
		tracked(1, 0, "person", capture.Box{X1: -10, Y1: 50, X2: 40, Y2: 90}),
		tracked(2, 0, "person", capture.Box{X1: 200, Y1: 200, X2: 250, Y2: 250}),
		tracked(3, 0, "person", capture.Box{X1: 10, Y1: 0, X2: 30, Y2: 20}),
	}
	got := Plan(100, 100, dets)
	if len(got) != 2 {
		t.Fatalf("got %d annotations, want 2", len(got))
	}
	if got[0].Rect != image.Rect(0, 50, 40, 90) {
		t.Fatalf("rect = %v", got[0].Rect)
	}
	if got[0].Origin != image.Pt(0, 46) {
		t.Fatalf("origin above box = %v", got[0].Origin)
	}
	if got[1].Origin.Y != LabelHeight {
		t.Fatalf("origin at top edge = %v, want inside box", got[1].Origin)
	}
}

func TestColorStablePerTrack(t *testing.T) {
	a := tracked(5, 0, "car", capture.Box{})
	b := tracked(5, 3, "truck", capture.Box{})
	if ColorFor(a) != ColorFor(b) {
		t.Fatal("same track id should keep its color")
	}
	if ColorFor(tracked(0, 1, "x", capture.Box{})) == ColorFor(tracked(0, 2, "x", capture.Box{})) {
		t.Fatal("distinct classes should get distinct colors")
	}
}

func TestPlanEmpty(t *testing.T) {
	if Plan(10, 10, nil) != nil {
		t.Fatal("expected nil plan")
	}
}
