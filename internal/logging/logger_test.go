package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase INFO", "INFO", slog.LevelInfo},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"info level", "info"},
		{"debug level", "debug"},
		{"trace level", "trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)
			if logger == nil {
				t.Fatal("NewLogger returned nil")
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			hasInfo := strings.Contains(buf.String(), "info message")
			if hasInfo != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", hasInfo, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestLevelTrace(t *testing.T) {
	// Trace should be below debug (more verbose)
	if LevelTrace >= slog.LevelDebug {
		t.Errorf("LevelTrace (%d) should be less than LevelDebug (%d)", LevelTrace, slog.LevelDebug)
	}
}

func TestNewTraceLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewTraceLogger(dir, "info")

	// At info level, the trace logger should be nil
	if dl != nil {
		t.Error("expected nil TraceLogger at info level")
	}

	// Nil logger should still be safe to use
	dl.Log(map[string]any{"event": "test"})

	path := filepath.Join(dir, "trace.jsonl")
	if _, err := os.Stat(path); err == nil {
		t.Error("trace.jsonl should not exist at info level")
	}
}

func TestNewTraceLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewTraceLogger(dir, "debug")
	defer dl.Close()

	dl.Log(map[string]any{"event": "test_event", "score": 0.87})

	path := filepath.Join(dir, "trace.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read trace.jsonl: %v", err)
	}

	// Parse the JSONL line
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}

	if entry["event"] != "test_event" {
		t.Errorf("event = %v, want test_event", entry["event"])
	}
	if entry["score"] != 0.87 {
		t.Errorf("score = %v, want 0.87", entry["score"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in trace entry")
	}
}

func TestNewTraceLogger_TraceLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewTraceLogger(dir, "trace")
	defer dl.Close()

	dl.Log(map[string]any{"event": "trace_event"})

	path := filepath.Join(dir, "trace.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read trace.jsonl: %v", err)
	}

	if !strings.Contains(string(data), "trace_event") {
		t.Error("expected trace_event in trace.jsonl")
	}
}

func TestNewTraceLogger_MultipleWrites(t *testing.T) {
	dir := t.TempDir()
	dl := NewTraceLogger(dir, "debug")
	defer dl.Close()

	dl.Log(map[string]any{"event": "first"})
	dl.Log(map[string]any{"event": "second"})

	path := filepath.Join(dir, "trace.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read trace.jsonl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(data))
	}

	var first, second map[string]any
	json.Unmarshal([]byte(lines[0]), &first)
	json.Unmarshal([]byte(lines[1]), &second)

	if first["event"] != "first" {
		t.Errorf("first event = %v, want 'first'", first["event"])
	}
	if second["event"] != "second" {
		t.Errorf("second event = %v, want 'second'", second["event"])
	}
}

func TestTraceLogger_NilSafety(t *testing.T) {
	// nil TraceLogger should not panic
	var dl *TraceLogger
	dl.Log(map[string]any{"event": "should_not_panic"})
	dl.Close()
}

func TestTraceLogger_DoesNotMutateCallerMap(t *testing.T) {
	dir := t.TempDir()
	dl := NewTraceLogger(dir, "debug")
	defer dl.Close()

	event := map[string]any{"event": "test"}
	dl.Log(event)

	if _, hasTime := event["time"]; hasTime {
		t.Error("Log() should not mutate caller's map, but 'time' was injected")
	}
}

func TestTraceLogger_LogAfterClose(t *testing.T) {
	dir := t.TempDir()
	dl := NewTraceLogger(dir, "debug")

	dl.Log(map[string]any{"event": "before_close"})
	dl.Close()

	// Should be a no-op, not panic or error
	dl.Log(map[string]any{"event": "after_close"})
}

func TestNewTraceLogger_CreatesDir(t *testing.T) {
	base := t.TempDir()
	nestedDir := filepath.Join(base, "sub", "dir")

	dl := NewTraceLogger(nestedDir, "debug")
	if dl == nil {
		t.Fatal("expected non-nil TraceLogger when dir needs creation")
	}
	defer dl.Close()

	dl.Log(map[string]any{"event": "dir_create_test"})

	path := filepath.Join(nestedDir, "trace.jsonl")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("trace.jsonl should exist after dir creation: %v", err)
	}
}

func TestTraceLogger_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	dl := NewTraceLogger(dir, "debug")
	defer dl.Close()

	dl.Log(map[string]any{"event": "perm_test"})

	path := filepath.Join(dir, "trace.jsonl")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat trace.jsonl: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}

func TestTraceLogger_RunEvents(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "trace")
	defer tl.Close()

	tl.RunStarted("sim-1", 3, 10, map[string]any{"alpha": 0.15})
	tl.Iteration("sim-1", 1, 0.25)
	tl.RunCompleted("sim-1", 1, true, 0.0004)
	tl.RunFailed("sim-1", errors.New("boom"))

	data, err := os.ReadFile(filepath.Join(dir, TraceFileName))
	if err != nil {
		t.Fatalf("failed to read trace file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{EventRunStarted, EventIteration, EventRunCompleted, EventRunFailed}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if entry["event"] != want[i] {
			t.Errorf("line %d event = %v, want %s", i, entry["event"], want[i])
		}
		if entry["simulation_id"] != "sim-1" {
			t.Errorf("line %d simulation_id = %v", i, entry["simulation_id"])
		}
	}
}

func TestDiscard(t *testing.T) {
	Discard().Info("dropped")
}
