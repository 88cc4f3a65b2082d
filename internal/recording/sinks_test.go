package recording_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"oakpipe/internal/capture"
	"oakpipe/internal/recording"
	"oakpipe/internal/services"
	"oakpipe/internal/testsupport"
)

func frame(seq uint64) capture.Frame {
	return capture.Frame{Seq: seq, Timestamp: time.Duration(seq) * time.Millisecond, Width: 2, Height: 1, Pix: make([]byte, 6)}
}

func TestVideoSinkWritesInOrderAndRejectsDuplicates(t *testing.T) {
	enc := &testsupport.MemoryEncoder{}
	path := filepath.Join(t.TempDir(), "nested", "clip.mkv")
	sink, err := recording.OpenVideoSink(recording.EncoderSpec{Path: path}, testsupport.EncoderFactory(enc))
	if err != nil {
		t.Fatalf("OpenVideoSink: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected container file created: %v", err)
	}

	steps := []struct {
		seq    uint64
		reject bool
	}{
		{1, false},
		{2, false},
		{2, true},
		{1, true},
		{5, false},
	}
	for _, step := range steps {
		err := sink.Write(frame(step.seq))
		if step.reject != errors.Is(err, services.ErrNonMonotonicTimestamp) {
			t.Fatalf("Write(seq=%d) err=%v, want reject=%v", step.seq, err, step.reject)
		}
		if !step.reject && err != nil {
			t.Fatalf("Write(seq=%d): %v", step.seq, err)
		}
	}
	if diff := cmp.Diff([]uint64{1, 2, 5}, enc.Seqs()); diff != "" {
		t.Fatalf("written sequence mismatch (-want +got):\n%s", diff)
	}
	if sink.Written() != 3 {
		t.Fatalf("Written = %d", sink.Written())
	}
}

func TestVideoSinkCloseIsIdempotentAndBlocksWrites(t *testing.T) {
	enc := &testsupport.MemoryEncoder{}
	sink, err := recording.OpenVideoSink(recording.EncoderSpec{Path: filepath.Join(t.TempDir(), "a.mkv")}, testsupport.EncoderFactory(enc))
	if err != nil {
		t.Fatalf("OpenVideoSink: %v", err)
	}
	for range 3 {
		if err := sink.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	if enc.Closes() != 1 {
		t.Fatalf("encoder closed %d times, want 1", enc.Closes())
	}
	if err := sink.Write(frame(1)); !errors.Is(err, services.ErrSinkClosed) {
		t.Fatalf("expected ErrSinkClosed, got %v", err)
	}
}

func TestVideoSinkFailureDisablesFurtherWrites(t *testing.T) {
	enc := &testsupport.MemoryEncoder{FailAfter: 2}
	sink, err := recording.OpenVideoSink(recording.EncoderSpec{Path: filepath.Join(t.TempDir(), "a.mkv")}, testsupport.EncoderFactory(enc))
	if err != nil {
		t.Fatalf("OpenVideoSink: %v", err)
	}
	for seq := uint64(1); seq <= 5; seq++ {
		_ = sink.Write(frame(seq))
	}
	if !errors.Is(sink.Failed(), services.ErrIO) || !errors.Is(sink.Failed(), testsupport.ErrDiskFull) {
		t.Fatalf("expected IO failure wrapping disk full, got %v", sink.Failed())
	}
	if sink.Written() != 2 {
		t.Fatalf("Written = %d, want 2", sink.Written())
	}
}

func TestOpenVideoSinkFactoryError(t *testing.T) {
	factory := func(recording.EncoderSpec) (recording.Encoder, error) { return nil, errors.New("codec missing") }
	_, err := recording.OpenVideoSink(recording.EncoderSpec{Path: filepath.Join(t.TempDir(), "a.mkv")}, factory)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestSensorSinkWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gyro", "s.jsonl")
	sink, err := recording.OpenSensorSink(path, 2)
	if err != nil {
		t.Fatalf("OpenSensorSink: %v", err)
	}
	samples := []capture.SensorSample{
		{Timestamp: 10 * time.Millisecond, GyroX: 0.1, GyroY: 0.2, GyroZ: 0.3},
		{Timestamp: 10 * time.Millisecond, GyroX: 0.4},
		{Timestamp: 5 * time.Millisecond, GyroX: 9},
		{Timestamp: 20 * time.Millisecond, GyroZ: -1},
	}
	for _, s := range samples {
		err := sink.Write(s)
		if s.Timestamp == 5*time.Millisecond {
			if !errors.Is(err, services.ErrNonMonotonicTimestamp) {
				t.Fatalf("expected ErrNonMonotonicTimestamp, got %v", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	got := testsupport.ReadSensorLog(t, path)
	want := []testsupport.SensorLine{
		{Timestamp: 0.01, GyroX: 0.1, GyroY: 0.2, GyroZ: 0.3},
		{Timestamp: 0.01, GyroX: 0.4},
		{Timestamp: 0.02, GyroZ: -1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sensor log mismatch (-want +got):\n%s", diff)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	first := strings.SplitN(string(raw), "\n", 2)[0]
	for _, key := range []string{`"timestamp"`, `"gyro_x"`, `"gyro_y"`, `"gyro_z"`} {
		if !strings.Contains(first, key) {
			t.Fatalf("record %s missing key %s", first, key)
		}
	}
	if err := sink.Write(capture.SensorSample{Timestamp: time.Second}); !errors.Is(err, services.ErrSinkClosed) {
		t.Fatalf("expected ErrSinkClosed, got %v", err)
	}
}

func TestSensorSinkRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := recording.OpenSensorSink(path, 1); !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestUniqueBaseAddsSuffix(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local)
	base := recording.UniqueBase(dir, "oakd", at, "mkv", "jsonl")
	if base != "oakd_20260304_050607" {
		t.Fatalf("unexpected base %q", base)
	}
	if err := os.WriteFile(filepath.Join(dir, base+".jsonl"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if next := recording.UniqueBase(dir, "oakd", at, "mkv", "jsonl"); next != base+"_1" {
		t.Fatalf("expected suffixed base, got %q", next)
	}
}
