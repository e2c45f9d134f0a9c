package matrix

import (
	"math"
	"testing"
	"time"

	"github.com/nvandessel/eigentrust/internal/models"
)

func assertClose(t *testing.T, what string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		values   [][]float64
		ids      []string
		wantKind models.ErrorKind
	}{
		{
			name:   "valid",
			values: [][]float64{{0, 1}, {1, 0}},
			ids:    []string{"a", "b"},
		},
		{
			name:     "non-square",
			values:   [][]float64{{0, 1, 0}, {1, 0}},
			ids:      []string{"a", "b"},
			wantKind: models.KindShapeMismatch,
		},
		{
			name:     "mapping size mismatch",
			values:   [][]float64{{0, 1}, {1, 0}},
			ids:      []string{"a"},
			wantKind: models.KindShapeMismatch,
		},
		{
			name:     "negative entry",
			values:   [][]float64{{0, -0.5}, {1, 0}},
			ids:      []string{"a", "b"},
			wantKind: models.KindNegativeEntry,
		},
		{
			name:     "duplicate peer id",
			values:   [][]float64{{0, 1}, {1, 0}},
			ids:      []string{"a", "a"},
			wantKind: models.KindDuplicatePeer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.values, tt.ids)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("New() error = %v", err)
				}
				if m.Size() != len(tt.ids) {
					t.Errorf("Size() = %d, want %d", m.Size(), len(tt.ids))
				}
				return
			}
			if !models.IsKind(err, tt.wantKind) {
				t.Errorf("New() error = %v, want kind %s", err, tt.wantKind)
			}
		})
	}
}

func TestTrustMatrix_SetClearsNormalized(t *testing.T) {
	m, err := New([][]float64{{0, 2}, {4, 0}}, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.NormalizeColumns(); err != nil {
		t.Fatal(err)
	}
	if !m.Normalized() {
		t.Fatal("Normalized() = false after NormalizeColumns")
	}
	if err := m.Set("a", "b", 0.3); err != nil {
		t.Fatal(err)
	}
	if m.Normalized() {
		t.Error("Normalized() = true after Set")
	}
	got, _ := m.Get("a", "b")
	assertClose(t, "Get(a, b)", got, 0.3)

	if err := m.Set("a", "ghost", 0.1); !models.IsKind(err, models.KindOrphanReference) {
		t.Errorf("Set to unknown peer: got %v, want %s", err, models.KindOrphanReference)
	}
	if err := m.Set("a", "b", -1); !models.IsKind(err, models.KindNegativeEntry) {
		t.Errorf("Set negative: got %v, want %s", err, models.KindNegativeEntry)
	}
}

func TestTrustMatrix_ValuesAreCopies(t *testing.T) {
	in := [][]float64{{0, 1}, {1, 0}}
	m, _ := New(in, []string{"a", "b"})
	in[0][1] = 9
	out := m.Values()
	out[1][0] = 9
	if m.At(0, 1) != 1 || m.At(1, 0) != 1 {
		t.Error("matrix aliases caller slices")
	}
}

func TestNormalizeColumns(t *testing.T) {
	tests := []struct {
		name   string
		values [][]float64
		want   [][]float64
	}{
		{
			name:   "scales each column",
			values: [][]float64{{0, 2, 1}, {1, 0, 1}, {3, 2, 0}},
			want:   [][]float64{{0, 0.5, 0.5}, {0.25, 0, 0.5}, {0.75, 0.5, 0}},
		},
		{
			name:   "zero column stays zero",
			values: [][]float64{{0, 0.5, 0.5}, {0, 0, 1}, {0, 1, 0}},
			want:   [][]float64{{0, 1.0 / 3, 1.0 / 3}, {0, 0, 2.0 / 3}, {0, 2.0 / 3, 0}},
		},
		{
			name:   "all zero matrix",
			values: [][]float64{{0, 0}, {0, 0}},
			want:   [][]float64{{0, 0}, {0, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeColumns(tt.values)
			if err != nil {
				t.Fatalf("NormalizeColumns() error = %v", err)
			}
			for i := range tt.want {
				for j := range tt.want[i] {
					assertClose(t, "entry", got[i][j], tt.want[i][j])
				}
			}
			if !IsColumnStochastic(got) {
				t.Error("result is not column-stochastic")
			}
		})
	}
}

func TestNormalizeColumns_Idempotent(t *testing.T) {
	once, err := NormalizeColumns([][]float64{{0, 3, 1}, {2, 0, 1}, {2, 1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	twice, err := NormalizeColumns(once)
	if err != nil {
		t.Fatal(err)
	}
	for i := range once {
		for j := range once[i] {
			if math.Abs(once[i][j]-twice[i][j]) > 1e-12 {
				t.Errorf("entry [%d][%d] changed on second pass: %v -> %v", i, j, once[i][j], twice[i][j])
			}
		}
	}
}

func TestNormalizeColumns_Rejects(t *testing.T) {
	if _, err := NormalizeColumns([][]float64{{0, -1}, {1, 0}}); !models.IsKind(err, models.KindNegativeEntry) {
		t.Errorf("negative input: got %v, want %s", err, models.KindNegativeEntry)
	}
	if _, err := NormalizeColumns([][]float64{{0, 1}, {1}}); !models.IsKind(err, models.KindShapeMismatch) {
		t.Errorf("ragged input: got %v, want %s", err, models.KindShapeMismatch)
	}
}

// Build tests

func mustPeer(t *testing.T, id string) *models.Peer {
	t.Helper()
	p, err := models.NewPeer(id, "", 0.5, 0.5)
	if err != nil {
		t.Fatalf("NewPeer(%s): %v", id, err)
	}
	return p
}

func mustInteraction(t *testing.T, source, target string, success bool) models.Interaction {
	t.Helper()
	outcome := models.OutcomeFailure
	if success {
		outcome = models.OutcomeSuccess
	}
	in, err := models.NewInteraction(source+"->"+target, source, target, outcome, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("NewInteraction: %v", err)
	}
	return in
}

func threePeers(t *testing.T) []*models.Peer {
	return []*models.Peer{mustPeer(t, "a"), mustPeer(t, "b"), mustPeer(t, "c")}
}

func TestBuild_ColdStart(t *testing.T) {
	m, err := Build(threePeers(t), nil, BuildOptions{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.5
			if i == j {
				want = 0
			}
			assertClose(t, "cold start entry", m.At(i, j), want)
		}
	}
	if m.Normalized() {
		t.Error("Build() output should not be marked normalized")
	}
}

func TestBuild_SuccessRates(t *testing.T) {
	interactions := []models.Interaction{
		mustInteraction(t, "a", "b", true),
		mustInteraction(t, "a", "b", true),
		mustInteraction(t, "a", "b", false),
		mustInteraction(t, "a", "c", true),
		mustInteraction(t, "a", "c", false),
		mustInteraction(t, "a", "c", false),
		mustInteraction(t, "a", "c", false),
	}
	m, err := Build(threePeers(t), interactions, BuildOptions{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	// Rates 2/3 and 1/4 normalized over 11/12.
	ab, _ := m.Get("a", "b")
	ac, _ := m.Get("a", "c")
	assertClose(t, "a->b", ab, (2.0/3)/(11.0/12))
	assertClose(t, "a->c", ac, (1.0/4)/(11.0/12))

	// b and c never initiated anything.
	ba, _ := m.Get("b", "a")
	assertClose(t, "b->a cold start", ba, 0.5)
}

func TestBuild_AllFailedFallback(t *testing.T) {
	interactions := []models.Interaction{
		mustInteraction(t, "a", "b", false),
		mustInteraction(t, "a", "b", false),
	}

	tests := []struct {
		name     string
		fallback Fallback
		wantAB   float64
		wantAC   float64
	}{
		{"uniform over interacted", FallbackInteracted, 1.0, 0.0},
		{"cold start", FallbackColdStart, 0.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Build(threePeers(t), interactions, BuildOptions{Fallback: tt.fallback})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			ab, _ := m.Get("a", "b")
			ac, _ := m.Get("a", "c")
			assertClose(t, "a->b", ab, tt.wantAB)
			assertClose(t, "a->c", ac, tt.wantAC)
		})
	}
}

func TestBuild_LocalTrustWins(t *testing.T) {
	peers := threePeers(t)
	if err := peers[0].SetLocalTrust("c", 0.8); err != nil {
		t.Fatal(err)
	}
	interactions := []models.Interaction{mustInteraction(t, "a", "b", true)}

	m, err := Build(peers, interactions, BuildOptions{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	ab, _ := m.Get("a", "b")
	ac, _ := m.Get("a", "c")
	assertClose(t, "a->b", ab, 0)
	assertClose(t, "a->c", ac, 1)
}

func TestBuild_ZeroLocalTrustFallsThrough(t *testing.T) {
	tests := []struct {
		name         string
		interactions []models.Interaction
		wantB, wantC float64
	}{
		{"no interactions", nil, 0.5, 0.5},
		{"successful interaction", []models.Interaction{mustInteraction(t, "a", "c", true)}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peers := threePeers(t)
			peers[0].LocalTrust["b"] = 0
			m, err := Build(peers, tt.interactions, BuildOptions{})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			ab, _ := m.Get("a", "b")
			ac, _ := m.Get("a", "c")
			assertClose(t, "a->b", ab, tt.wantB)
			assertClose(t, "a->c", ac, tt.wantC)
		})
	}
}

func TestBuild_RejectsBadLocalTrust(t *testing.T) {
	tests := []struct {
		name     string
		partner  string
		value    float64
		wantKind models.ErrorKind
	}{
		{"self trust", "a", 0.5, models.KindSelfInteraction},
		{"above one", "b", 1.5, models.KindInvalidTrustValue},
		{"negative", "b", -0.1, models.KindNegativeEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peers := threePeers(t)
			peers[0].LocalTrust[tt.partner] = tt.value
			_, err := Build(peers, nil, BuildOptions{})
			if !models.IsKind(err, tt.wantKind) {
				t.Fatalf("got %v, want %s", err, tt.wantKind)
			}
		})
	}
}

func TestBuild_Orphans(t *testing.T) {
	t.Run("unknown interaction target", func(t *testing.T) {
		interactions := []models.Interaction{mustInteraction(t, "a", "ghost", true)}
		_, err := Build(threePeers(t), interactions, BuildOptions{})
		if !models.IsKind(err, models.KindOrphanReference) {
			t.Fatalf("got %v, want %s", err, models.KindOrphanReference)
		}
	})

	t.Run("unknown interaction source", func(t *testing.T) {
		interactions := []models.Interaction{mustInteraction(t, "ghost", "a", true)}
		_, err := Build(threePeers(t), interactions, BuildOptions{})
		if !models.IsKind(err, models.KindOrphanReference) {
			t.Fatalf("got %v, want %s", err, models.KindOrphanReference)
		}
	})

	t.Run("unknown local trust partner", func(t *testing.T) {
		peers := threePeers(t)
		if err := peers[1].SetLocalTrust("ghost", 0.4); err != nil {
			t.Fatal(err)
		}
		_, err := Build(peers, nil, BuildOptions{})
		if !models.IsKind(err, models.KindOrphanReference) {
			t.Fatalf("got %v, want %s", err, models.KindOrphanReference)
		}
	})
}

func TestBuild_ThenNormalizeIsStochastic(t *testing.T) {
	interactions := []models.Interaction{
		mustInteraction(t, "a", "b", true),
		mustInteraction(t, "b", "c", false),
		mustInteraction(t, "b", "a", true),
		mustInteraction(t, "c", "a", true),
	}
	m, err := Build(threePeers(t), interactions, BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.NormalizeColumns(); err != nil {
		t.Fatal(err)
	}
	for j, s := range m.ColumnSums() {
		if s != 0 && math.Abs(s-1) > StochasticTolerance {
			t.Errorf("column %d sums to %v", j, s)
		}
	}
}

func TestParseFallback(t *testing.T) {
	if f, err := ParseFallback(""); err != nil || f != FallbackInteracted {
		t.Errorf("ParseFallback(\"\") = %q, %v", f, err)
	}
	if f, err := ParseFallback("cold_start"); err != nil || f != FallbackColdStart {
		t.Errorf("ParseFallback(cold_start) = %q, %v", f, err)
	}
	if _, err := ParseFallback("zero"); !models.IsKind(err, models.KindInvalidParameter) {
		t.Errorf("ParseFallback(zero) error = %v", err)
	}
}
