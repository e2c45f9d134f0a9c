package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nvandessel/eigentrust/internal/models"
)

func mustScores(t *testing.T, converged bool, delta float64) models.TrustScores {
	t.Helper()
	s, err := models.NewTrustScores(map[string]float64{"a": 0.6, "b": 0.4}, 12, converged, 0.001, delta, nil)
	if err != nil {
		t.Fatalf("NewTrustScores: %v", err)
	}
	return s
}

func TestRecorder_ObserveRun(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun(mustScores(t, true, 0.0004), 2, 30, 3*time.Millisecond)
	r.ObserveRun(mustScores(t, false, 0.2), 2, 30, time.Millisecond)

	if got := testutil.ToFloat64(r.runs.WithLabelValues(OutcomeConverged)); got != 1 {
		t.Errorf("converged runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.runs.WithLabelValues(OutcomeNotConverged)); got != 1 {
		t.Errorf("not converged runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.iterations); got != 12 {
		t.Errorf("iterations = %v, want 12", got)
	}
	if got := testutil.ToFloat64(r.finalDelta); got != 0.2 {
		t.Errorf("final delta = %v, want 0.2", got)
	}
	if got := testutil.ToFloat64(r.interactions); got != 30 {
		t.Errorf("interactions = %v, want 30", got)
	}
	if got := testutil.ToFloat64(r.peerTrust.WithLabelValues("a")); got != 0.6 {
		t.Errorf("peer a trust = %v, want 0.6", got)
	}
	if n := testutil.CollectAndCount(r.peerTrust); n != 2 {
		t.Errorf("peer trust series = %d, want 2", n)
	}
}

func TestRecorder_ObserveFailure(t *testing.T) {
	r := NewRecorder()
	r.ObserveFailure(time.Millisecond)
	if got := testutil.ToFloat64(r.runs.WithLabelValues(OutcomeFailed)); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(r.duration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestRecorder_WriteToTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun(mustScores(t, true, 0.0001), 2, 10, time.Millisecond)

	path := filepath.Join(t.TempDir(), "eigentrust.prom")
	if err := r.WriteToTextfile(path); err != nil {
		t.Fatalf("WriteToTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`eigentrust_runs_total{outcome="converged"} 1`,
		"eigentrust_iterations 12",
		`eigentrust_peer_trust{peer_id="b"} 0.4`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile lacks %q:\n%s", want, data)
		}
	}
}
