package ranking

import (
	"fmt"
	"strings"

	"github.com/nvandessel/eigentrust/internal/models"
	"github.com/nvandessel/eigentrust/internal/vecmath"
)

// Norm selects the distance used to measure change between iterations.
type Norm string

const (
	NormL1 Norm = "l1"
	NormL2 Norm = "l2"
)

// ParseNorm maps a config or flag value to a Norm. Empty selects NormL1.
func ParseNorm(s string) (Norm, error) {
	switch Norm(strings.ToLower(strings.TrimSpace(s))) {
	case "", NormL1:
		return NormL1, nil
	case NormL2:
		return NormL2, nil
	default:
		return "", &models.Error{
			Kind:    models.KindInvalidParameter,
			Message: fmt.Sprintf("unknown norm %q (want l1 or l2)", s),
		}
	}
}

// Status is the outcome of one convergence check.
type Status struct {
	Converged bool
	Delta     float64
}

// CheckConvergence measures the distance between two successive trust
// vectors. Converged is true when the distance is strictly below epsilon.
func CheckConvergence(prev, next []float64, epsilon float64, norm Norm) (Status, error) {
	if len(prev) != len(next) {
		return Status{}, models.ShapeError("trust vector length", len(prev), len(next))
	}

	var delta float64
	switch norm {
	case NormL1, "":
		delta = vecmath.L1Distance(prev, next)
	case NormL2:
		delta = vecmath.L2Distance(prev, next)
	default:
		return Status{}, &models.Error{
			Kind:    models.KindInvalidParameter,
			Message: fmt.Sprintf("unknown norm %q", norm),
		}
	}
	return Status{Converged: delta < epsilon, Delta: delta}, nil
}
