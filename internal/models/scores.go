package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// SumTolerance is the allowed deviation of a trust distribution's total from 1.0.
const SumTolerance = 1e-6

// InitialDelta is reported for iteration 0 of a history, before any change
// has been measured.
const InitialDelta = 1.0

// ConvergenceSnapshot is the trust distribution after one iteration.
type ConvergenceSnapshot struct {
	iteration int
	scores    map[string]float64
	delta     float64
	timestamp time.Time
}

// NewConvergenceSnapshot validates and builds a snapshot. The scores map is
// copied.
func NewConvergenceSnapshot(iteration int, scores map[string]float64, delta float64, timestamp time.Time) (ConvergenceSnapshot, error) {
	if iteration < 0 {
		return ConvergenceSnapshot{}, &Error{
			Kind:    KindInvalidParameter,
			Message: fmt.Sprintf("iteration must be non-negative, got %d", iteration),
			Actual:  iteration,
		}
	}
	if delta < 0 || math.IsNaN(delta) {
		return ConvergenceSnapshot{}, ParameterError("delta", delta, "non-negative")
	}
	if err := ValidateDistribution(scores); err != nil {
		return ConvergenceSnapshot{}, err
	}
	return ConvergenceSnapshot{
		iteration: iteration,
		scores:    copyScores(scores),
		delta:     delta,
		timestamp: timestamp.UTC(),
	}, nil
}

func (s ConvergenceSnapshot) Iteration() int       { return s.iteration }
func (s ConvergenceSnapshot) Delta() float64       { return s.delta }
func (s ConvergenceSnapshot) Timestamp() time.Time { return s.timestamp }

// Scores returns a copy of the trust mapping.
func (s ConvergenceSnapshot) Scores() map[string]float64 { return copyScores(s.scores) }

// Score returns one peer's score at this iteration.
func (s ConvergenceSnapshot) Score(peerID string) (float64, bool) {
	v, ok := s.scores[peerID]
	return v, ok
}

type snapshotJSON struct {
	Iteration int                `json:"iteration"`
	Scores    map[string]float64 `json:"trust_scores"`
	Delta     float64            `json:"delta"`
	Timestamp time.Time          `json:"timestamp"`
}

// MarshalJSON implements json.Marshaler.
func (s ConvergenceSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		Iteration: s.iteration,
		Scores:    s.scores,
		Delta:     s.delta,
		Timestamp: s.timestamp,
	})
}

// UnmarshalJSON implements json.Unmarshaler with full validation.
func (s *ConvergenceSnapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := NewConvergenceSnapshot(raw.Iteration, raw.Scores, raw.Delta, raw.Timestamp)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// TrustScores is the final result of an EigenTrust run.
type TrustScores struct {
	scores     map[string]float64
	iterations int
	converged  bool
	epsilon    float64
	finalDelta float64
	history    []ConvergenceSnapshot
}

// NewTrustScores validates and builds a result. A converged result must
// carry finalDelta < epsilon.
func NewTrustScores(scores map[string]float64, iterations int, converged bool, epsilon, finalDelta float64, history []ConvergenceSnapshot) (TrustScores, error) {
	if err := ValidateDistribution(scores); err != nil {
		return TrustScores{}, err
	}
	if iterations < 0 {
		return TrustScores{}, &Error{
			Kind:    KindInvalidParameter,
			Message: fmt.Sprintf("iteration count must be non-negative, got %d", iterations),
			Actual:  iterations,
		}
	}
	if converged && !(finalDelta < epsilon) {
		return TrustScores{}, &Error{
			Kind:    KindInconsistentScores,
			Message: fmt.Sprintf("marked converged but final delta %g >= epsilon %g", finalDelta, epsilon),
			Value:   finalDelta,
		}
	}
	var hist []ConvergenceSnapshot
	if history != nil {
		hist = make([]ConvergenceSnapshot, len(history))
		copy(hist, history)
	}
	return TrustScores{
		scores:     copyScores(scores),
		iterations: iterations,
		converged:  converged,
		epsilon:    epsilon,
		finalDelta: finalDelta,
		history:    hist,
	}, nil
}

func (t TrustScores) Iterations() int     { return t.iterations }
func (t TrustScores) Converged() bool     { return t.converged }
func (t TrustScores) Epsilon() float64    { return t.epsilon }
func (t TrustScores) FinalDelta() float64 { return t.finalDelta }

// Scores returns a copy of the peer id → score mapping.
func (t TrustScores) Scores() map[string]float64 { return copyScores(t.scores) }

// Score returns one peer's global trust.
func (t TrustScores) Score(peerID string) (float64, bool) {
	v, ok := t.scores[peerID]
	return v, ok
}

// History returns the recorded snapshots, or nil when history was not tracked.
func (t TrustScores) History() []ConvergenceSnapshot {
	if t.history == nil {
		return nil
	}
	out := make([]ConvergenceSnapshot, len(t.history))
	copy(out, t.history)
	return out
}

// RankedScore pairs a peer with its score.
type RankedScore struct {
	PeerID string  `json:"peer_id"`
	Score  float64 `json:"score"`
}

// Ranked returns scores in descending order, ties broken by peer id.
func (t TrustScores) Ranked() []RankedScore {
	return RankScores(t.scores)
}

// RankScores sorts a score mapping in descending order, ties broken by id.
func RankScores(scores map[string]float64) []RankedScore {
	out := make([]RankedScore, 0, len(scores))
	for id, s := range scores {
		out = append(out, RankedScore{PeerID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PeerID < out[j].PeerID
	})
	return out
}

// ValidateDistribution checks that scores are non-negative and sum to 1.
func ValidateDistribution(scores map[string]float64) error {
	total := 0.0
	for id, v := range scores {
		if v < 0 || math.IsNaN(v) {
			return &Error{
				Kind:    KindInconsistentScores,
				Message: fmt.Sprintf("trust score for %q must be non-negative, got %g", id, v),
				PeerID:  id,
				Value:   v,
			}
		}
		total += v
	}
	if math.Abs(total-1.0) > SumTolerance {
		return &Error{
			Kind:    KindInconsistentScores,
			Message: fmt.Sprintf("trust scores must sum to 1.0, got %.9f", total),
			Value:   total,
		}
	}
	return nil
}

func copyScores(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
