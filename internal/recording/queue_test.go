package recording_test

import (
	"sync"
	"testing"
	"time"

	"oakpipe/internal/recording"
)

func TestDropQueueEvictsOldest(t *testing.T) {
	q := recording.NewDropQueue[int](3)
	for i := 1; i <= 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) rejected", i)
		}
	}
	if got := q.Dropped(); got != 2 {
		t.Fatalf("Dropped = %d, want 2", got)
	}
	q.Close()

	var got []int
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Pop order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Pop order = %v, want %v", got, want)
		}
	}
}

func TestDropQueuePushNeverBlocksAndCounterIsMonotonic(t *testing.T) {
	q := recording.NewDropQueue[int](4)
	var last uint64
	start := time.Now()
	for i := range 10_000 {
		q.Push(i)
		d := q.Dropped()
		if d < last {
			t.Fatalf("drop counter decreased: %d < %d", d, last)
		}
		last = d
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("pushing without a consumer took %v", elapsed)
	}
	if last != 10_000-4 {
		t.Fatalf("Dropped = %d, want %d", last, 10_000-4)
	}
}

func TestDropQueueCloseRejectsAndWakesConsumer(t *testing.T) {
	q := recording.NewDropQueue[string](2)
	var wg sync.WaitGroup
	wg.Add(1)
	done := make(chan bool, 1)
	go func() {
		defer wg.Done()
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()
	wg.Wait()
	if ok := <-done; ok {
		t.Fatal("expected Pop on closed empty queue to report false")
	}
	if q.Push("late") {
		t.Fatal("expected Push after Close to be rejected")
	}
}

func TestDropQueueAbortDiscardsQueued(t *testing.T) {
	q := recording.NewDropQueue[int](8)
	for i := range 5 {
		q.Push(i)
	}
	if n := q.Abort(); n != 5 {
		t.Fatalf("Abort discarded %d, want 5", n)
	}
	if q.Len() != 0 || q.Dropped() != 5 {
		t.Fatalf("after abort len=%d dropped=%d", q.Len(), q.Dropped())
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected aborted queue to be empty")
	}
}
