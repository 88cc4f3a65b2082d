package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerNilHandlers(t *testing.T) {
	h := newFanoutHandler(nil, nil)
	if _, ok := h.(NoopHandler); !ok {
		t.Errorf("expected NoopHandler for all nil handlers, got %T", h)
	}
}

func TestNewFanoutHandlerSingleHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Error("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout to be enabled for debug")
	}

	logger := slog.New(h).With("component", "test")
	logger.Debug("fine detail")
	logger.Info("headline")

	if strings.Contains(infoBuf.String(), "fine detail") {
		t.Fatalf("info handler received debug record: %s", infoBuf.String())
	}
	for _, buf := range []*bytes.Buffer{&infoBuf, &debugBuf} {
		if !strings.Contains(buf.String(), "headline") || !strings.Contains(buf.String(), `"component":"test"`) {
			t.Fatalf("expected headline with attrs, got %s", buf.String())
		}
	}
	if !strings.Contains(debugBuf.String(), "fine detail") {
		t.Fatalf("debug handler missing record: %s", debugBuf.String())
	}
}

func TestSessionIDHandlerInjectsID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newSessionIDHandler(slog.NewJSONHandler(&buf, nil), "abc")).With("extra", "value")
	logger.Info("test message")

	out := buf.String()
	if !strings.Contains(out, `"session_id":"abc"`) || !strings.Contains(out, `"extra":"value"`) {
		t.Fatalf("unexpected output %s", out)
	}
	if _, ok := newSessionIDHandler(nil, "x").(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for nil base")
	}
}
