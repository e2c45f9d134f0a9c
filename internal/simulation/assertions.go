package simulation

import (
	"math"
	"testing"

	"github.com/nvandessel/eigentrust/internal/matrix"
	"github.com/nvandessel/eigentrust/internal/models"
)

// AssertTrustDistribution asserts that scores are non-negative and sum to
// 1 within models.SumTolerance.
func AssertTrustDistribution(t *testing.T, scores map[string]float64) {
	t.Helper()
	total := 0.0
	for id, v := range scores {
		if v < 0 {
			t.Errorf("AssertTrustDistribution: peer %s has negative trust %.6f", id, v)
		}
		total += v
	}
	if math.Abs(total-1.0) > models.SumTolerance {
		t.Errorf("AssertTrustDistribution: scores sum to %.9f, want 1.0", total)
	}
}

// AssertColumnStochastic asserts that every non-zero column of m sums to 1.
func AssertColumnStochastic(t *testing.T, m *matrix.TrustMatrix) {
	t.Helper()
	for j, s := range m.ColumnSums() {
		if s != 0 && math.Abs(s-1.0) > matrix.StochasticTolerance {
			t.Errorf("AssertColumnStochastic: column %d sums to %.9f", j, s)
		}
	}
}

// AssertConvergenceConsistent asserts that a result marked converged has a
// final delta below epsilon, and that iterations stay within budget.
func AssertConvergenceConsistent(t *testing.T, scores models.TrustScores, maxIterations int) {
	t.Helper()
	if scores.Converged() && !(scores.FinalDelta() < scores.Epsilon()) {
		t.Errorf("AssertConvergenceConsistent: converged with delta %.6g >= epsilon %.6g", scores.FinalDelta(), scores.Epsilon())
	}
	if scores.Iterations() < 1 || scores.Iterations() > maxIterations {
		t.Errorf("AssertConvergenceConsistent: %d iterations outside [1, %d]", scores.Iterations(), maxIterations)
	}
	if !scores.Converged() && scores.Iterations() != maxIterations {
		t.Errorf("AssertConvergenceConsistent: stopped after %d iterations without converging (budget %d)", scores.Iterations(), maxIterations)
	}
}

// AssertHistoryWellFormed asserts that history starts at iteration 0 with
// the sentinel delta, counts up by one, ends at the reported iteration
// count, and holds a trust distribution in every snapshot.
func AssertHistoryWellFormed(t *testing.T, scores models.TrustScores) {
	t.Helper()
	history := scores.History()
	if len(history) == 0 {
		t.Fatal("AssertHistoryWellFormed: no history recorded")
	}
	if history[0].Delta() != models.InitialDelta {
		t.Errorf("AssertHistoryWellFormed: iteration 0 delta = %v, want %v", history[0].Delta(), models.InitialDelta)
	}
	for k, snap := range history {
		if snap.Iteration() != k {
			t.Errorf("AssertHistoryWellFormed: snapshot %d has iteration %d", k, snap.Iteration())
		}
		AssertTrustDistribution(t, snap.Scores())
	}
	if last := history[len(history)-1]; last.Iteration() != scores.Iterations() {
		t.Errorf("AssertHistoryWellFormed: last snapshot iteration %d, result reports %d", last.Iteration(), scores.Iterations())
	}
}

// AssertRanksAbove asserts that peer a has strictly more global trust than
// peer b.
func AssertRanksAbove(t *testing.T, scores models.TrustScores, a, b string) {
	t.Helper()
	sa, okA := scores.Score(a)
	sb, okB := scores.Score(b)
	if !okA || !okB {
		t.Fatalf("AssertRanksAbove: missing score for %s or %s", a, b)
	}
	if sa <= sb {
		t.Errorf("AssertRanksAbove: %s (%.6f) does not rank above %s (%.6f)", a, sa, b, sb)
	}
}

// AssertGlobalTrustAssigned asserts that every peer of sim carries the
// score reported in scores.
func AssertGlobalTrustAssigned(t *testing.T, sim *Simulation, scores models.TrustScores) {
	t.Helper()
	for _, p := range sim.Peers() {
		if p.GlobalTrust == nil {
			t.Errorf("AssertGlobalTrustAssigned: peer %s has no global trust", p.ID)
			continue
		}
		want, _ := scores.Score(p.ID)
		if *p.GlobalTrust != want {
			t.Errorf("AssertGlobalTrustAssigned: peer %s global trust %.6f, result %.6f", p.ID, *p.GlobalTrust, want)
		}
	}
}

// AssertSameInteractions asserts that two interaction sequences agree on
// source, target and outcome at every position.
func AssertSameInteractions(t *testing.T, a, b []models.Interaction) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("AssertSameInteractions: lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Source() != b[i].Source() || a[i].Target() != b[i].Target() || a[i].Outcome() != b[i].Outcome() {
			t.Errorf("AssertSameInteractions: position %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

// MeanTrust returns the average global trust of the peers selected by keep.
func MeanTrust(sim *Simulation, keep func(*models.Peer) bool) float64 {
	total, n := 0.0, 0
	for _, p := range sim.Peers() {
		if p.GlobalTrust == nil || !keep(p) {
			continue
		}
		total += *p.GlobalTrust
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
