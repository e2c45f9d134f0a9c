package ranking

import (
	"math"
	"testing"

	"github.com/nvandessel/eigentrust/internal/models"
)

func TestCheckConvergence(t *testing.T) {
	tests := []struct {
		name      string
		prev      []float64
		next      []float64
		epsilon   float64
		norm      Norm
		wantDelta float64
		wantConv  bool
	}{
		{
			name:      "identical vectors converge",
			prev:      []float64{0.5, 0.5},
			next:      []float64{0.5, 0.5},
			epsilon:   0.001,
			norm:      NormL1,
			wantDelta: 0,
			wantConv:  true,
		},
		{
			name:      "l1 above epsilon",
			prev:      []float64{0.5, 0.5},
			next:      []float64{0.4, 0.6},
			epsilon:   0.1,
			norm:      NormL1,
			wantDelta: 0.2,
			wantConv:  false,
		},
		{
			name:      "l2 below epsilon",
			prev:      []float64{0.5, 0.5},
			next:      []float64{0.4, 0.6},
			epsilon:   0.15,
			norm:      NormL2,
			wantDelta: math.Sqrt(0.02),
			wantConv:  true,
		},
		{
			name:      "delta equal to epsilon is not converged",
			prev:      []float64{1, 0},
			next:      []float64{0.75, 0.25},
			epsilon:   0.5,
			norm:      NormL1,
			wantDelta: 0.5,
			wantConv:  false,
		},
		{
			name:      "empty norm defaults to l1",
			prev:      []float64{1, 0},
			next:      []float64{0, 1},
			epsilon:   0.001,
			norm:      "",
			wantDelta: 2,
			wantConv:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckConvergence(tt.prev, tt.next, tt.epsilon, tt.norm)
			if err != nil {
				t.Fatalf("CheckConvergence() error = %v", err)
			}
			if math.Abs(got.Delta-tt.wantDelta) > 1e-12 {
				t.Errorf("Delta = %v, want %v", got.Delta, tt.wantDelta)
			}
			if got.Converged != tt.wantConv {
				t.Errorf("Converged = %v, want %v", got.Converged, tt.wantConv)
			}
		})
	}
}

func TestCheckConvergence_Errors(t *testing.T) {
	if _, err := CheckConvergence([]float64{1}, []float64{0.5, 0.5}, 0.1, NormL1); !models.IsKind(err, models.KindShapeMismatch) {
		t.Errorf("length mismatch: got %v", err)
	}
	if _, err := CheckConvergence([]float64{1}, []float64{1}, 0.1, Norm("max")); !models.IsKind(err, models.KindInvalidParameter) {
		t.Errorf("unknown norm: got %v", err)
	}
}

func TestParseNorm(t *testing.T) {
	tests := []struct {
		in      string
		want    Norm
		wantErr bool
	}{
		{"", NormL1, false},
		{"l1", NormL1, false},
		{"L2", NormL2, false},
		{" l2 ", NormL2, false},
		{"inf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseNorm(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseNorm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseNorm(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
