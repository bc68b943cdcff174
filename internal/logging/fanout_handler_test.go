package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRoutesByLevel(t *testing.T) {
	var console, file bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout enabled when any handler accepts debug")
	}
	logger := slog.New(h)
	logger.Debug("probe sample")

	if console.Len() != 0 {
		t.Fatalf("warn-level handler received debug record: %s", console.String())
	}
	if file.Len() == 0 {
		t.Fatal("debug-level handler missed record")
	}
}

func TestFanoutHandlerPropagatesAttrsAndGroups(t *testing.T) {
	var a, b bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil))
	logger := slog.New(h).With(slog.Int64(FieldShowID, 7)).WithGroup("capture")
	logger.Info("attempt finished", slog.String(FieldTool, "ffmpeg"))

	for name, buf := range map[string]*bytes.Buffer{"a": &a, "b": &b} {
		out := buf.Bytes()
		if !bytes.Contains(out, []byte(`"show_id":7`)) {
			t.Fatalf("%s missing show_id: %s", name, out)
		}
		if !bytes.Contains(out, []byte(`"capture":{"tool":"ffmpeg"}`)) {
			t.Fatalf("%s missing grouped tool: %s", name, out)
		}
	}
}
