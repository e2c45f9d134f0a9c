// Package logging provides leveled logging and run tracing for eigentrust.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A TraceLogger for structured JSONL run traces (<dir>/trace.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level every
// power iteration is logged, not just run boundaries.
const LevelTrace = slog.LevelDebug - 4

// TraceFileName is the JSONL file written inside the trace directory.
const TraceFileName = "trace.jsonl"

// Trace event names.
const (
	EventRunStarted   = "run_started"
	EventIteration    = "iteration"
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
)

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TraceLogger writes structured run events to a JSONL file.
// It is safe for concurrent use. A nil TraceLogger is safe to use;
// all methods are no-ops on nil receiver.
type TraceLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewTraceLogger creates a trace logger writing to dir/trace.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened.
func NewTraceLogger(dir string, level string) *TraceLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, TraceFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &TraceLogger{file: f}
}

// Log writes an event as a single JSONL line.
// A "time" field is added automatically. The caller's map is not mutated.
func (tl *TraceLogger) Log(event map[string]any) {
	if tl == nil || tl.file == nil {
		return
	}

	entry := make(map[string]any, len(event)+1)
	for k, v := range event {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	tl.mu.Lock()
	defer tl.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = tl.file.Write(data)
}

// RunStarted records the start of an algorithm run.
func (tl *TraceLogger) RunStarted(simulationID string, peers, interactions int, params map[string]any) {
	tl.Log(map[string]any{
		"event":         EventRunStarted,
		"simulation_id": simulationID,
		"peers":         peers,
		"interactions":  interactions,
		"params":        params,
	})
}

// Iteration records one power iteration step.
func (tl *TraceLogger) Iteration(simulationID string, iteration int, delta float64) {
	tl.Log(map[string]any{
		"event":         EventIteration,
		"simulation_id": simulationID,
		"iteration":     iteration,
		"delta":         delta,
	})
}

// RunCompleted records a finished run.
func (tl *TraceLogger) RunCompleted(simulationID string, iterations int, converged bool, finalDelta float64) {
	tl.Log(map[string]any{
		"event":         EventRunCompleted,
		"simulation_id": simulationID,
		"iterations":    iterations,
		"converged":     converged,
		"final_delta":   finalDelta,
	})
}

// RunFailed records a run that ended with an error.
func (tl *TraceLogger) RunFailed(simulationID string, err error) {
	tl.Log(map[string]any{
		"event":         EventRunFailed,
		"simulation_id": simulationID,
		"error":         err.Error(),
	})
}

// Close closes the underlying file. Safe to call on nil receiver.
func (tl *TraceLogger) Close() {
	if tl == nil || tl.file == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.file.Close()
	tl.file = nil
}
