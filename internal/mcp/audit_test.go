package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/eigentrust/internal/store"
)

func readAuditEntries(t *testing.T, path string) []AuditEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("invalid audit line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAuditLogger_Log(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("NewAuditLogger returned nil")
	}

	logger.Log(AuditEntry{
		Timestamp:  time.Now(),
		Tool:       "eigentrust_list",
		DurationMs: 3,
		Status:     "success",
	})
	logger.Log(AuditEntry{
		Timestamp: time.Now(),
		Tool:      "eigentrust_info",
		Status:    "error",
		Error:     "simulation \"x\" not found",
	})
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	entries := readAuditEntries(t, filepath.Join(dir, AuditFileName))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Tool != "eigentrust_list" || entries[1].Status != "error" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestAuditLogger_NilSafe(t *testing.T) {
	var logger *AuditLogger
	logger.Log(AuditEntry{Tool: "eigentrust_run"})
	if err := logger.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}
}

func TestSanitizeToolParams(t *testing.T) {
	got := sanitizeToolParams(map[string]interface{}{
		"preset":        "adversarial",
		"peers":         20,
		"seed":          int64(42),
		"simulation_id": "abc",
		"secret":        "hunter2",
	})

	want := map[string]string{
		"preset":        "adversarial",
		"peers":         "20",
		"seed":          "(set)",
		"simulation_id": "(set)",
		"_param_count":  "5",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("params[%q] = %q, want %q", k, got[k], v)
		}
	}
	if _, ok := got["secret"]; ok {
		t.Error("unknown params must not be logged")
	}

	if sanitizeToolParams(nil) != nil {
		t.Error("nil params should sanitize to nil")
	}
}

func TestAuditTool_RecordsHandlerCalls(t *testing.T) {
	dir := t.TempDir()
	s, err := NewServer(&Config{
		Name:     "test-server",
		Store:    store.NewMemoryStore(),
		AuditDir: dir,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, _, err := s.handleList(ctx, nil, ListInput{Limit: 5}); err != nil {
		t.Fatalf("handleList: %v", err)
	}
	if _, _, err := s.handleInfo(ctx, nil, InfoInput{SimulationID: "missing"}); err == nil {
		t.Fatal("expected error for missing simulation")
	}
	s.Close()

	entries := readAuditEntries(t, filepath.Join(dir, AuditFileName))
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].Tool != "eigentrust_list" || entries[0].Status != "success" || entries[0].Params["limit"] != "5" {
		t.Errorf("unexpected list entry: %+v", entries[0])
	}
	if entries[1].Tool != "eigentrust_info" || entries[1].Status != "error" || entries[1].Params["simulation_id"] != "(set)" {
		t.Errorf("unexpected info entry: %+v", entries[1])
	}
}
