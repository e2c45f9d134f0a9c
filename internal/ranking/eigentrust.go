// Package ranking computes global trust with the EigenTrust power
// iteration.
package ranking

import (
	"fmt"
	"math"
	"time"

	"github.com/nvandessel/eigentrust/internal/models"
	"github.com/nvandessel/eigentrust/internal/vecmath"
)

// Config holds configuration for the EigenTrust computation.
type Config struct {
	// MaxIterations bounds the number of power iteration steps. Default: 100.
	MaxIterations int

	// Epsilon is the convergence threshold on the chosen norm. Default: 0.001.
	Epsilon float64

	// Norm measures the change between iterations. Default: L1.
	Norm Norm

	// Alpha is the weight of the pre-trust vector in every step (0 = pure
	// propagation, 1 = pre-trust only). Default: 0.15.
	Alpha float64

	// Observer, when set, is called after every update with the iteration
	// number (1-based) and its delta.
	Observer func(iteration int, delta float64)
}

// DefaultConfig returns the default EigenTrust configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 100,
		Epsilon:       0.001,
		Norm:          NormL1,
		Alpha:         0.15,
	}
}

// Validate checks the tuning parameters.
func (c Config) Validate() error {
	if c.MaxIterations < 1 {
		return &models.Error{
			Kind:    models.KindInvalidParameter,
			Message: fmt.Sprintf("max iterations must be at least 1, got %d", c.MaxIterations),
			Actual:  c.MaxIterations,
		}
	}
	if !(c.Epsilon > 0) {
		return models.ParameterError("epsilon", c.Epsilon, "positive")
	}
	if !(c.Alpha >= 0 && c.Alpha <= 1) {
		return models.ParameterError("alpha", c.Alpha, "in [0, 1]")
	}
	if _, err := ParseNorm(string(c.Norm)); err != nil {
		return err
	}
	return nil
}

// Result is the outcome of a power iteration run.
type Result struct {
	// Trust is the global trust vector, indexed like the matrix.
	Trust []float64

	// Iterations is the number of updates performed.
	Iterations int

	// Converged reports whether the last update moved less than epsilon.
	Converged bool

	// FinalDelta is the change measured on the last update.
	FinalDelta float64

	// History holds one snapshot per iteration, starting at 0, when
	// requested through ComputeWithHistory.
	History []models.ConvergenceSnapshot
}

// Compute runs damped power iteration on the column-stochastic matrix c
// starting from the pre-trust vector p.
//
// Algorithm:
//  1. t0 = p
//  2. t_{k+1} = (1-α)·Cᵀ·t_k + α·p, renormalized to sum to 1
//  3. Stop when ‖t_{k+1} - t_k‖ < ε or after MaxIterations updates
//
// Exhausting the budget is not an error: the last vector is returned with
// Converged false.
func Compute(c [][]float64, p []float64, cfg Config) (Result, error) {
	return compute(c, p, nil, cfg)
}

// ComputeWithHistory is Compute that also records a snapshot for every
// iteration. Iteration 0 carries the pre-trust vector and delta
// models.InitialDelta.
func ComputeWithHistory(c [][]float64, p []float64, peerIDs []string, cfg Config) (Result, error) {
	if len(peerIDs) != len(c) {
		return Result{}, models.ShapeError("peer id count", len(c), len(peerIDs))
	}
	return compute(c, p, peerIDs, cfg)
}

func compute(c [][]float64, p []float64, peerIDs []string, cfg Config) (Result, error) {
	n := len(c)
	for i, row := range c {
		if len(row) != n {
			return Result{}, models.ShapeError(fmt.Sprintf("trust matrix row %d length", i), n, len(row))
		}
	}
	if len(p) != n {
		return Result{}, models.ShapeError("pre-trust vector length", n, len(p))
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	pre, err := normalizePreTrust(p)
	if err != nil {
		return Result{}, err
	}

	track := peerIDs != nil
	var history []models.ConvergenceSnapshot
	if track {
		snap, err := snapshot(0, peerIDs, pre, models.InitialDelta)
		if err != nil {
			return Result{}, err
		}
		history = append(history, snap)
	}

	alpha := cfg.Alpha
	current := vecmath.Clone(pre)
	next := make([]float64, n)
	delta := models.InitialDelta

	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		vecmath.MulTransposed(c, current, next)
		for j := range next {
			next[j] = (1-alpha)*next[j] + alpha*pre[j]
		}
		if !vecmath.Normalize(next) {
			// All mass was lost (alpha 0 with a sink); start over from p.
			copy(next, pre)
		}

		status, err := CheckConvergence(current, next, cfg.Epsilon, cfg.Norm)
		if err != nil {
			return Result{}, err
		}
		delta = status.Delta

		if cfg.Observer != nil {
			cfg.Observer(iter, delta)
		}
		if track {
			snap, err := snapshot(iter, peerIDs, next, delta)
			if err != nil {
				return Result{}, err
			}
			history = append(history, snap)
		}

		current, next = next, current

		if status.Converged {
			return Result{
				Trust:      vecmath.Clone(current),
				Iterations: iter,
				Converged:  true,
				FinalDelta: delta,
				History:    history,
			}, nil
		}
	}

	return Result{
		Trust:      vecmath.Clone(current),
		Iterations: cfg.MaxIterations,
		Converged:  false,
		FinalDelta: delta,
		History:    history,
	}, nil
}

// UniformPreTrust returns the vector 1/N for n peers.
func UniformPreTrust(n int) []float64 {
	p := make([]float64, n)
	for i := range p {
		p[i] = 1.0 / float64(n)
	}
	return p
}

// ScoreMap pairs a trust vector with peer ids.
func ScoreMap(peerIDs []string, trust []float64) map[string]float64 {
	out := make(map[string]float64, len(peerIDs))
	for i, id := range peerIDs {
		out[id] = trust[i]
	}
	return out
}

func normalizePreTrust(p []float64) ([]float64, error) {
	for i, v := range p {
		if v < 0 || math.IsNaN(v) {
			return nil, &models.Error{
				Kind:    models.KindInvalidParameter,
				Message: fmt.Sprintf("pre-trust entry %d must be non-negative, got %g", i, v),
				Value:   v,
			}
		}
	}
	sum := vecmath.Sum(p)
	if !(sum > 0) {
		return nil, models.ParameterError("pre-trust sum", sum, "positive")
	}
	out := vecmath.Clone(p)
	if math.Abs(sum-1.0) > models.SumTolerance {
		vecmath.Normalize(out)
	}
	return out, nil
}

func snapshot(iteration int, peerIDs []string, trust []float64, delta float64) (models.ConvergenceSnapshot, error) {
	snap, err := models.NewConvergenceSnapshot(iteration, ScoreMap(peerIDs, trust), delta, time.Now())
	if err != nil {
		return models.ConvergenceSnapshot{}, fmt.Errorf("recording iteration %d: %w", iteration, err)
	}
	return snap, nil
}
