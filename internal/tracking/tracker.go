package tracking

import (
	"cmp"
	"slices"
	"time"

	"oakpipe/internal/capture"
	"oakpipe/internal/stage"
)

// Options tune association.
type Options struct {
	IoUThreshold  float64
	MaxMissed     int
	MaxDetections int
}

type track struct {
	id       uint64
	classID  int
	box      capture.Box
	age      int
	missed   int
	lastSeen time.Duration
}

// Tracker holds the track history of one session. It is not safe for
// concurrent use; the orchestrator calls it from the frame loop only.
type Tracker struct {
	opts   Options
	tracks []*track
	nextID uint64
}

var _ stage.Tracker = (*Tracker)(nil)

// New returns an empty tracker.
func New(opts Options) *Tracker {
	if opts.MaxDetections <= 0 {
		opts.MaxDetections = 100
	}
	if opts.MaxMissed < 0 {
		opts.MaxMissed = 0
	}
	return &Tracker{opts: opts, nextID: 1}
}

// Update associates detections observed at ts with the current tracks and
// returns them annotated, highest confidence first. At most MaxDetections
// detections are considered; the rest are ignored for this frame.
func (t *Tracker) Update(ts time.Duration, detections []capture.Detection) []capture.TrackedDetection {
	dets := t.limit(detections)

	assigned := make([]int, len(t.tracks))
	for i := range assigned {
		assigned[i] = -1
	}
	if len(t.tracks) > 0 && len(dets) > 0 {
		assigned = assign(t.costs(dets))
	}

	owner := make([]*track, len(dets))
	for i, col := range assigned {
		if col < 0 {
			continue
		}
		tr := t.tracks[i]
		tr.box = dets[col].Box
		tr.age++
		tr.missed = 0
		tr.lastSeen = ts
		owner[col] = tr
	}

	kept := t.tracks[:0]
	for i, tr := range t.tracks {
		if assigned[i] < 0 {
			tr.missed++
			if tr.missed > t.opts.MaxMissed {
				continue
			}
		}
		kept = append(kept, tr)
	}
	t.tracks = kept

	out := make([]capture.TrackedDetection, len(dets))
	for i, det := range dets {
		tr := owner[i]
		if tr == nil {
			tr = &track{id: t.nextID, classID: det.ClassID, box: det.Box, age: 1, lastSeen: ts}
			t.nextID++
			t.tracks = append(t.tracks, tr)
		}
		out[i] = capture.TrackedDetection{Detection: det, TrackID: tr.id, Age: tr.age}
	}
	return out
}

// Active reports how many tracks are currently alive.
func (t *Tracker) Active() int {
	return len(t.tracks)
}

func (t *Tracker) limit(detections []capture.Detection) []capture.Detection {
	dets := slices.Clone(detections)
	slices.SortStableFunc(dets, func(a, b capture.Detection) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	if len(dets) > t.opts.MaxDetections {
		dets = dets[:t.opts.MaxDetections]
	}
	return dets
}

func (t *Tracker) costs(dets []capture.Detection) [][]float64 {
	cost := make([][]float64, len(t.tracks))
	for i, tr := range t.tracks {
		row := make([]float64, len(dets))
		for j, det := range dets {
			row[j] = forbidden
			if det.ClassID != tr.classID {
				continue
			}
			iou := tr.box.IoU(det.Box)
			if iou <= 0 || iou < t.opts.IoUThreshold {
				continue
			}
			row[j] = 1 - iou
		}
		cost[i] = row
	}
	return cost
}
