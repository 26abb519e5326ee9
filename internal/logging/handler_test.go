package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func noColorOptions() *PrettyHandlerOptions {
	opts := DefaultOptions()
	opts.UseColor = false
	return &opts
}

func TestHandlerWritesLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, noColorOptions()))

	logger.Info("piece verified", "index", 3)

	out := buf.String()
	if !strings.Contains(out, "INFO") {
		t.Fatalf("output missing level: %q", out)
	}
	if !strings.Contains(out, "piece verified") {
		t.Fatalf("output missing message: %q", out)
	}
	if !strings.Contains(out, `"index": 3`) {
		t.Fatalf("output missing attribute: %q", out)
	}
}

func TestHandlerWithAttrsScopesChildLogger(t *testing.T) {
	var buf bytes.Buffer
	opts := noColorOptions()
	opts.DisableTimestamp = true
	opts.ShowSource = false

	logger := slog.New(NewPrettyHandler(&buf, opts)).With("component", "disk")
	logger.Warn("queue backlog high")

	out := buf.String()
	if !strings.Contains(out, `"component": "disk"`) {
		t.Fatalf("output missing scoped attribute: %q", out)
	}
}

func TestHandlerWithGroupNestsAttributes(t *testing.T) {
	var buf bytes.Buffer
	opts := noColorOptions()
	opts.DisableTimestamp = true
	opts.ShowSource = false
	opts.CompactJSON = true

	logger := slog.New(NewPrettyHandler(&buf, opts)).WithGroup("peer")
	logger.Info("request sent", "piece", 7)

	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		lines = append(lines, line)
	}
	if len(lines) != 1 {
		t.Fatalf("expected a single log line, got %d", len(lines))
	}

	idx := strings.Index(lines[0], "{")
	if idx < 0 {
		t.Fatalf("no JSON attribute block found in %q", lines[0])
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[0][idx:]), &decoded); err != nil {
		t.Fatalf("Unmarshal attrs: %v", err)
	}

	peer, ok := decoded["peer"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested 'peer' group, got %+v", decoded)
	}
	if peer["piece"] != float64(7) {
		t.Fatalf("peer.piece = %v, want 7", peer["piece"])
	}
}

func TestHandlerEnabledRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	opts := noColorOptions()
	opts.SlogOpts.Level = slog.LevelWarn

	logger := slog.New(NewPrettyHandler(&buf, opts))
	logger.Info("should be dropped")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Fatalf("level filtering failed, got: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("expected warn line, got: %q", out)
	}
}

func TestNewScopesComponentAttribute(t *testing.T) {
	var buf bytes.Buffer
	opts := noColorOptions()
	opts.DisableTimestamp = true
	opts.ShowSource = false

	logger := New(&buf, opts, "tracker")
	logger.Error("announce failed")

	out := buf.String()
	if !strings.Contains(out, `"component": "tracker"`) {
		t.Fatalf("output missing component attribute: %q", out)
	}
}
