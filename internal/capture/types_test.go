package capture_test

import (
	"math"
	"testing"
	"time"

	"oakpipe/internal/capture"
)

func TestBoxIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b capture.Box
		want float64
	}{
		{"identical", capture.Box{0, 0, 10, 10}, capture.Box{0, 0, 10, 10}, 1},
		{"disjoint", capture.Box{0, 0, 10, 10}, capture.Box{20, 20, 30, 30}, 0},
		{"half overlap", capture.Box{0, 0, 10, 10}, capture.Box{5, 0, 15, 10}, 50.0 / 150.0},
		{"degenerate", capture.Box{5, 5, 5, 5}, capture.Box{0, 0, 10, 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.IoU(tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("IoU = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoxClamp(t *testing.T) {
	got := capture.Box{-5, 2, 700, 500}.Clamp(640, 480)
	want := capture.Box{0, 2, 640, 480}
	if got != want {
		t.Fatalf("Clamp = %+v, want %+v", got, want)
	}
}

func TestFrameValid(t *testing.T) {
	f := capture.Frame{Width: 2, Height: 2, Pix: make([]byte, 12)}
	if !f.Valid() {
		t.Fatal("expected valid frame")
	}
	f.Pix = f.Pix[:11]
	if f.Valid() {
		t.Fatal("expected short buffer to be invalid")
	}
}

func TestManualClock(t *testing.T) {
	var clock capture.ManualClock
	clock.Advance(10 * time.Millisecond)
	if got := clock.Advance(5 * time.Millisecond); got != 15*time.Millisecond {
		t.Fatalf("Advance = %v", got)
	}
	clock.Set(time.Millisecond)
	if clock.Now() != time.Millisecond {
		t.Fatalf("Now = %v", clock.Now())
	}
}

func TestMonotonicClockNeverGoesBackwards(t *testing.T) {
	clock := capture.NewMonotonicClock()
	prev := clock.Now()
	for range 1000 {
		now := clock.Now()
		if now < prev {
			t.Fatalf("clock went backwards: %v < %v", now, prev)
		}
		prev = now
	}
}
