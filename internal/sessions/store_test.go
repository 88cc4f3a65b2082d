package sessions_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"oakpipe/internal/services"
	"oakpipe/internal/sessions"
	"oakpipe/internal/stage"
)

func openStore(t *testing.T) *sessions.Store {
	t.Helper()
	store, err := sessions.Open(filepath.Join(t.TempDir(), "state", "sessions.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBeginFinishRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	session, err := store.Begin(ctx, "dev", started)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if session.ID == "" || session.Status != sessions.StatusRunning {
		t.Fatalf("unexpected session %+v", session)
	}

	outcome := sessions.Outcome{
		EndedAt: started.Add(90 * time.Second),
		Recorder: stage.RecorderStats{
			VideoPath:      "/rec/oakd_20260304_050607.mkv",
			SensorPath:     "/rec/oakd_20260304_050607.jsonl",
			FramesWritten:  2700,
			FramesDropped:  3,
			SamplesWritten: 9000,
		},
	}
	if err := store.Finish(ctx, session.ID, outcome); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := sessions.Session{
		ID:             session.ID,
		Target:         "dev",
		Status:         sessions.StatusStopped,
		StartedAt:      started,
		EndedAt:        started.Add(90 * time.Second),
		VideoPath:      "/rec/oakd_20260304_050607.mkv",
		SensorPath:     "/rec/oakd_20260304_050607.jsonl",
		FramesWritten:  2700,
		FramesDropped:  3,
		SamplesWritten: 9000,
	}
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}
	if got.Duration() != 90*time.Second {
		t.Fatalf("duration = %s", got.Duration())
	}
}

func TestFinishRecordsFailure(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	session, err := store.Begin(ctx, "pi", time.Now())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	cause := services.Wrap(services.ErrDeviceDisconnected, "camera", "next frame", "usb reset", nil)
	if err := store.Finish(ctx, session.ID, sessions.Outcome{Err: cause, DrainAborted: true}); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != sessions.StatusFailed || got.ErrorKind != "device_disconnected" ||
		got.ExitCode != services.ExitDeviceDisconnected || !got.DrainAborted {
		t.Fatalf("unexpected failure row %+v", got)
	}
}

func TestFinishUnknownSession(t *testing.T) {
	store := openStore(t)
	if err := store.Finish(context.Background(), "missing", sessions.Outcome{}); err == nil {
		t.Fatal("expected an error for an unknown id")
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := openStore(t)
	got, err := store.Get(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("got %+v, %v", got, err)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 4 {
		// Mix whole and fractional seconds to exercise ordering.
		s, err := store.Begin(ctx, "dev", base.Add(time.Duration(i)*1500*time.Millisecond))
		if err != nil {
			t.Fatalf("Begin: %v", err)
		}
		ids = append(ids, s.ID)
	}

	list, err := store.List(ctx, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []string
	for _, s := range list {
		got = append(got, s.ID)
	}
	if diff := cmp.Diff([]string{ids[3], ids[2], ids[1]}, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	all, err := store.List(ctx, 0)
	if err != nil || len(all) != 4 {
		t.Fatalf("List all: %d, %v", len(all), err)
	}
}

func TestMarkAbandonedSettlesRunningRows(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	crashed, _ := store.Begin(ctx, "dev", time.Now())
	done, _ := store.Begin(ctx, "dev", time.Now())
	if err := store.Finish(ctx, done.ID, sessions.Outcome{}); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	n, err := store.MarkAbandoned(ctx)
	if err != nil || n != 1 {
		t.Fatalf("MarkAbandoned = %d, %v", n, err)
	}
	got, _ := store.Get(ctx, crashed.ID)
	if got.Status != sessions.StatusAbandoned {
		t.Fatalf("status = %s", got.Status)
	}
	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if diff := cmp.Diff(map[sessions.Status]int{sessions.StatusAbandoned: 1, sessions.StatusStopped: 1}, counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := sessions.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, err := store.Begin(context.Background(), "dev", time.Now())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_ = store.Close()

	reopened, err := sessions.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), s.ID)
	if err != nil || got == nil {
		t.Fatalf("row lost after reopen: %v", err)
	}
}

func TestOpenRejectsForeignSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := sessions.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()
	if err := sessions.BumpSchemaVersion(path); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if _, err := sessions.Open(path); !errors.Is(err, sessions.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := sessions.Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenUnwritableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })
	if _, err := sessions.Open(filepath.Join(dir, "sub", "sessions.db")); err == nil {
		t.Fatal("expected error creating catalog under a read-only directory")
	}
}
