package simulation_test

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/nvandessel/eigentrust/internal/matrix"
	"github.com/nvandessel/eigentrust/internal/models"
	"github.com/nvandessel/eigentrust/internal/simulation"
)

func newSeededSimulation(t *testing.T, seed int64, preset simulation.Preset, peers, interactions int) *simulation.Simulation {
	t.Helper()
	sim := simulation.New(simulation.WithSeed(seed))
	if err := sim.GeneratePeers(preset, peers); err != nil {
		t.Fatalf("GeneratePeers: %v", err)
	}
	if _, err := sim.SimulateInteractions(interactions, simulation.SimulateOptions{}); err != nil {
		t.Fatalf("SimulateInteractions: %v", err)
	}
	return sim
}

// TestRunAlgorithm_ColdStartIsUniform validates that a network without any
// interactions ends with every peer holding 1/N.
func TestRunAlgorithm_ColdStartIsUniform(t *testing.T) {
	sim := simulation.New()
	for _, id := range []string{"a", "b", "c", "d"} {
		if err := sim.AddPeer(newPeer(t, id, 0.5, 0.5)); err != nil {
			t.Fatal(err)
		}
	}

	scores, err := sim.RunAlgorithm(simulation.DefaultRunConfig())
	if err != nil {
		t.Fatalf("RunAlgorithm: %v", err)
	}
	if !scores.Converged() {
		t.Error("cold start network should converge")
	}
	for id, v := range scores.Scores() {
		if math.Abs(v-0.25) > 1e-9 {
			t.Errorf("peer %s trust = %v, want 0.25", id, v)
		}
	}
	simulation.AssertGlobalTrustAssigned(t, sim, scores)
	if sim.State() != simulation.StateCompleted {
		t.Errorf("state = %s, want COMPLETED", sim.State())
	}
}

func TestRunAlgorithm_Properties(t *testing.T) {
	presets := []simulation.Preset{simulation.PresetRandom, simulation.PresetUniform, simulation.PresetAdversarial}
	for _, preset := range presets {
		t.Run(string(preset), func(t *testing.T) {
			sim := newSeededSimulation(t, 2024, preset, 20, 400)
			cfg := simulation.DefaultRunConfig()
			cfg.TrackHistory = true

			scores, err := sim.RunAlgorithm(cfg)
			if err != nil {
				t.Fatalf("RunAlgorithm: %v", err)
			}

			simulation.AssertTrustDistribution(t, scores.Scores())
			simulation.AssertConvergenceConsistent(t, scores, cfg.Engine.MaxIterations)
			simulation.AssertHistoryWellFormed(t, scores)
			simulation.AssertGlobalTrustAssigned(t, sim, scores)

			m, err := sim.TrustMatrix(cfg.Fallback)
			if err != nil {
				t.Fatal(err)
			}
			simulation.AssertColumnStochastic(t, m)

			if len(sim.History()) != scores.Iterations()+1 {
				t.Errorf("stored history has %d snapshots, want %d", len(sim.History()), scores.Iterations()+1)
			}
		})
	}
}

// TestRunAlgorithm_DenseNetworkIsUniform checks the fixed point of a
// network where every peer receives some trust: column normalization makes
// Cᵀ row-stochastic, so uniform pre-trust maps onto itself.
func TestRunAlgorithm_DenseNetworkIsUniform(t *testing.T) {
	sim := newSeededSimulation(t, 11, simulation.PresetAdversarial, 30, 3000)
	m, err := sim.TrustMatrix(matrix.FallbackInteracted)
	if err != nil {
		t.Fatal(err)
	}
	for j, sum := range m.ColumnSums() {
		if sum == 0 {
			t.Fatalf("column %d is zero; network is not dense", j)
		}
	}

	scores, err := sim.RunAlgorithm(simulation.DefaultRunConfig())
	if err != nil {
		t.Fatalf("RunAlgorithm: %v", err)
	}
	if !scores.Converged() {
		t.Error("dense network should converge")
	}
	want := 1.0 / 30
	for id, v := range scores.Scores() {
		if math.Abs(v-want) > 1e-9 {
			t.Errorf("peer %s trust = %v, want %v", id, v, want)
		}
	}
}

// TestRunAlgorithm_ZeroColumnSeparation checks that a peer nobody trusts
// ends below the peers that serve each other well.
func TestRunAlgorithm_ZeroColumnSeparation(t *testing.T) {
	sim := simulation.New()
	honest := []string{"h1", "h2", "h3"}
	for _, id := range honest {
		if err := sim.AddPeer(newPeer(t, id, 0, 0)); err != nil {
			t.Fatal(err)
		}
	}
	if err := sim.AddPeer(newPeer(t, "bad", 1, 1)); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	add := func(src, dst string, outcome models.Outcome) {
		t.Helper()
		n++
		in, err := models.NewInteraction(fmt.Sprintf("i%d", n), src, dst, outcome, now)
		if err != nil {
			t.Fatal(err)
		}
		if err := sim.AddInteraction(in); err != nil {
			t.Fatal(err)
		}
	}
	for _, src := range honest {
		for _, dst := range honest {
			if src != dst {
				add(src, dst, models.OutcomeSuccess)
			}
		}
		add(src, "bad", models.OutcomeFailure)
		add("bad", src, models.OutcomeSuccess)
	}

	m, err := sim.TrustMatrix(matrix.FallbackInteracted)
	if err != nil {
		t.Fatal(err)
	}
	if sums := m.ColumnSums(); sums[3] != 0 {
		t.Fatalf("column of bad sums to %v, want 0", sums[3])
	}

	scores, err := sim.RunAlgorithm(simulation.DefaultRunConfig())
	if err != nil {
		t.Fatalf("RunAlgorithm: %v", err)
	}
	simulation.AssertTrustDistribution(t, scores.Scores())
	for _, id := range honest {
		simulation.AssertRanksAbove(t, scores, id, "bad")
	}

	good := simulation.MeanTrust(sim, func(p *models.Peer) bool { return p.Maliciousness() == 0 })
	bad := simulation.MeanTrust(sim, func(p *models.Peer) bool { return p.Maliciousness() == 1 })
	if good <= bad {
		t.Errorf("mean honest trust %.6f should exceed untrusted peer %.6f", good, bad)
	}
}

func TestRunAlgorithm_Reproducible(t *testing.T) {
	a := newSeededSimulation(t, 7, simulation.PresetAdversarial, 15, 300)
	b := newSeededSimulation(t, 7, simulation.PresetAdversarial, 15, 300)

	if a.ID() != b.ID() {
		t.Errorf("seeded ids differ: %s vs %s", a.ID(), b.ID())
	}
	simulation.AssertSameInteractions(t, a.Interactions(), b.Interactions())

	sa, err := a.RunAlgorithm(simulation.DefaultRunConfig())
	if err != nil {
		t.Fatal(err)
	}
	sb, err := b.RunAlgorithm(simulation.DefaultRunConfig())
	if err != nil {
		t.Fatal(err)
	}
	for id, v := range sa.Scores() {
		if w, _ := sb.Score(id); w != v {
			t.Errorf("peer %s: %v vs %v", id, v, w)
		}
	}
}

func TestRunAlgorithm_InsufficientPeersLeavesState(t *testing.T) {
	sim := simulation.New()
	if err := sim.AddPeer(newPeer(t, "solo", 0, 0)); err != nil {
		t.Fatal(err)
	}
	_, err := sim.RunAlgorithm(simulation.DefaultRunConfig())
	if !models.IsKind(err, models.KindInsufficientPeers) {
		t.Fatalf("got %v, want %s", err, models.KindInsufficientPeers)
	}
	if sim.State() != simulation.StateCreated {
		t.Errorf("state = %s, want CREATED", sim.State())
	}
}

func TestRunAlgorithm_StateMachine(t *testing.T) {
	sim := newSeededSimulation(t, 3, simulation.PresetRandom, 5, 50)

	// COMPLETED may run again.
	if _, err := sim.RunAlgorithm(simulation.DefaultRunConfig()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := sim.RunAlgorithm(simulation.DefaultRunConfig()); err != nil {
		t.Fatalf("rerun from COMPLETED: %v", err)
	}

	// A failing run moves to FAILED and returns the error unchanged.
	bad := simulation.DefaultRunConfig()
	bad.Engine.Alpha = 2
	_, err := sim.RunAlgorithm(bad)
	if !models.IsKind(err, models.KindInvalidParameter) {
		t.Fatalf("got %v, want %s", err, models.KindInvalidParameter)
	}
	if sim.State() != simulation.StateFailed {
		t.Fatalf("state = %s, want FAILED", sim.State())
	}

	// FAILED is terminal.
	_, err = sim.RunAlgorithm(simulation.DefaultRunConfig())
	if !models.IsKind(err, models.KindInvalidState) {
		t.Errorf("run from FAILED: got %v, want %s", err, models.KindInvalidState)
	}
}

func TestRunAlgorithm_ObserverSeesEveryIteration(t *testing.T) {
	sim := newSeededSimulation(t, 12, simulation.PresetRandom, 8, 100)
	cfg := simulation.DefaultRunConfig()
	calls := 0
	cfg.Engine.Observer = func(int, float64) { calls++ }

	scores, err := sim.RunAlgorithm(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if calls != scores.Iterations() {
		t.Errorf("observer called %d times, want %d", calls, scores.Iterations())
	}
}

func TestAddPeer_Duplicate(t *testing.T) {
	sim := simulation.New()
	if err := sim.AddPeer(newPeer(t, "a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := sim.AddPeer(newPeer(t, "a", 1, 1)); !models.IsKind(err, models.KindDuplicatePeer) {
		t.Errorf("got %v, want %s", err, models.KindDuplicatePeer)
	}
}

func TestAddInteraction_Orphan(t *testing.T) {
	sim := simulation.New()
	if err := sim.AddPeers(newPeer(t, "a", 0, 0), newPeer(t, "b", 0, 0)); err != nil {
		t.Fatal(err)
	}
	in, err := models.NewInteraction("x", "a", "ghost", models.OutcomeSuccess, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.AddInteraction(in); !models.IsKind(err, models.KindOrphanReference) {
		t.Errorf("got %v, want %s", err, models.KindOrphanReference)
	}
	if len(sim.Interactions()) != 0 {
		t.Error("rejected interaction was recorded")
	}
}

func TestSimulateInteractions_UpdateLocalTrust(t *testing.T) {
	sim := simulation.New(simulation.WithSeed(4))
	if err := sim.AddPeers(onePerfectThreeBad(t)...); err != nil {
		t.Fatal(err)
	}
	if _, err := sim.SimulateInteractions(200, simulation.SimulateOptions{UpdateLocalTrust: true}); err != nil {
		t.Fatal(err)
	}

	bad, _ := sim.Peer("bad-1")
	if !bad.HasLocalTrust() {
		t.Fatal("requester has no local trust after 200 interactions")
	}
	total := 0.0
	for _, v := range bad.LocalTrust {
		total += v
	}
	if math.Abs(total-1) > 1e-9 {
		t.Errorf("local trust sums to %v", total)
	}
	if bad.LocalTrust["good"] <= bad.LocalTrust["bad-2"] {
		t.Errorf("bad-1 trusts good (%v) no more than bad-2 (%v)", bad.LocalTrust["good"], bad.LocalTrust["bad-2"])
	}
}

func TestSimulateInteractions_InsufficientPeers(t *testing.T) {
	sim := simulation.New()
	if _, err := sim.SimulateInteractions(10, simulation.SimulateOptions{}); !models.IsKind(err, models.KindInsufficientPeers) {
		t.Errorf("got %v, want %s", err, models.KindInsufficientPeers)
	}
}

func TestSummarize(t *testing.T) {
	sim := newSeededSimulation(t, 5, simulation.PresetRandom, 10, 200)
	before := sim.Summarize(3)
	if before.PeerCount != 10 || before.InteractionCount != 200 {
		t.Errorf("counts = (%d, %d), want (10, 200)", before.PeerCount, before.InteractionCount)
	}
	if len(before.TopPeers) != 0 {
		t.Error("no peers should be ranked before a run")
	}

	if _, err := sim.RunAlgorithm(simulation.DefaultRunConfig()); err != nil {
		t.Fatal(err)
	}
	after := sim.Summarize(3)
	if len(after.TopPeers) != 3 {
		t.Fatalf("TopPeers has %d entries, want 3", len(after.TopPeers))
	}
	for i := 1; i < len(after.TopPeers); i++ {
		if after.TopPeers[i].GlobalTrust > after.TopPeers[i-1].GlobalTrust {
			t.Errorf("TopPeers not sorted: %v", after.TopPeers)
		}
	}
	if after.Iterations == 0 {
		t.Error("Iterations should be reported after a run")
	}
	if after.SuccessRate < 0 || after.SuccessRate > 1 {
		t.Errorf("SuccessRate = %v", after.SuccessRate)
	}
}
