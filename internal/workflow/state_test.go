package workflow

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to RunState
		want     bool
	}{
		{StateIdle, StateInitializing, true},
		{StateIdle, StateRunning, false},
		{StateInitializing, StateRunning, true},
		{StateInitializing, StateErroring, true},
		{StateInitializing, StateDraining, false},
		{StateRunning, StateDraining, true},
		{StateRunning, StateErroring, true},
		{StateRunning, StateStopped, false},
		{StateDraining, StateStopped, true},
		{StateDraining, StateErroring, true},
		{StateErroring, StateStopped, true},
		{StateErroring, StateRunning, false},
		{StateStopped, StateIdle, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestInvalidTransitionIsIgnored(t *testing.T) {
	m := NewManager(Settings{}, StageSet{}, nil)
	if m.transition(StateRunning, "skip ahead") {
		t.Fatal("Idle -> Running should be refused")
	}
	if m.State() != StateIdle || len(m.History()) != 0 {
		t.Fatalf("state changed after refused transition: %s", m.State())
	}
}

func TestUnknownStateString(t *testing.T) {
	if got := RunState(42).String(); got != "state(42)" {
		t.Fatalf("got %q", got)
	}
}

func TestLatencyWindowQuantiles(t *testing.T) {
	w := newLatencyWindow(100)
	for i := 1; i <= 100; i++ {
		w.add(time.Duration(i) * time.Millisecond)
	}
	stats := w.stats()
	if stats.Count != 100 || stats.Max != 100*time.Millisecond {
		t.Fatalf("unexpected %+v", stats)
	}
	if stats.P50 != 50*time.Millisecond || stats.P95 != 95*time.Millisecond || stats.P99 != 99*time.Millisecond {
		t.Fatalf("unexpected quantiles %+v", stats)
	}
}

func TestLatencyWindowKeepsMostRecent(t *testing.T) {
	w := newLatencyWindow(4)
	for _, ms := range []int{500, 1, 2, 3, 4} {
		w.add(time.Duration(ms) * time.Millisecond)
	}
	stats := w.stats()
	if stats.Count != 5 {
		t.Fatalf("count = %d", stats.Count)
	}
	if stats.Max != 500*time.Millisecond {
		t.Fatalf("max should cover the whole session, got %s", stats.Max)
	}
	if stats.P99 != 4*time.Millisecond {
		t.Fatalf("evicted sample still in window: p99 = %s", stats.P99)
	}
}

func TestEmptyLatencyWindow(t *testing.T) {
	if stats := newLatencyWindow(8).stats(); stats != (LatencyStats{}) {
		t.Fatalf("unexpected %+v", stats)
	}
}

func TestSettingsDefaults(t *testing.T) {
	s := Settings{}.withDefaults()
	if s.FrameTimeout <= 0 || s.SampleTimeout <= 0 || s.InferenceTimeout <= 0 || s.DrainGrace <= 0 {
		t.Fatalf("defaults not applied: %+v", s)
	}
	if s.MaxConsecutiveTimeouts != 0 {
		t.Fatal("timeouts must not escalate by default")
	}
}
