package simulation

import (
	"fmt"
	"time"

	"github.com/nvandessel/eigentrust/internal/models"
)

// NoiseStdDev is the standard deviation of the Gaussian noise added to a
// provider's success probability on every interaction.
const NoiseStdDev = 0.05

// Mode selects how the provider of an interaction is chosen.
type Mode string

const (
	// ModeUniform picks the provider uniformly among the other peers.
	ModeUniform Mode = "uniform"
	// ModePreferential picks the provider with probability proportional to
	// its running count of successful services.
	ModePreferential Mode = "preferential"
)

// Simulator generates synthetic interactions between peers. Preferential
// counts persist across calls to Simulate on the same Simulator.
type Simulator struct {
	peers  []*models.Peer
	rng    *Random
	mode   Mode
	counts []int
	now    func() time.Time
}

// NewSimulator creates a simulator over peers. At least two peers are
// required.
func NewSimulator(peers []*models.Peer, rng *Random, mode Mode) (*Simulator, error) {
	if len(peers) < 2 {
		return nil, models.InsufficientPeersError("simulate interactions", len(peers))
	}
	if rng == nil {
		return nil, &models.Error{Kind: models.KindInvalidParameter, Message: "random generator must not be nil"}
	}
	switch mode {
	case "", ModeUniform:
		mode = ModeUniform
	case ModePreferential:
	default:
		return nil, &models.Error{
			Kind:    models.KindInvalidParameter,
			Message: fmt.Sprintf("unknown target selection mode %q", mode),
		}
	}
	counts := make([]int, len(peers))
	for i := range counts {
		counts[i] = 1
	}
	return &Simulator{
		peers:  peers,
		rng:    rng,
		mode:   mode,
		counts: counts,
		now:    time.Now,
	}, nil
}

// Replay credits the successes in history to their providers, so a new
// Simulator continues the preferential counts of earlier runs. Interactions
// with peers outside the simulator are ignored.
func (s *Simulator) Replay(history []models.Interaction) {
	index := make(map[string]int, len(s.peers))
	for i, p := range s.peers {
		index[p.ID] = i
	}
	for _, in := range history {
		if !in.Succeeded() {
			continue
		}
		if j, ok := index[in.Target()]; ok {
			s.counts[j]++
		}
	}
}

// Simulate produces count interactions. Each one draws, in order: the
// source, the target, the noise term, and the uniform outcome value.
func (s *Simulator) Simulate(count int) ([]models.Interaction, error) {
	if count < 0 {
		return nil, &models.Error{
			Kind:    models.KindInvalidParameter,
			Message: fmt.Sprintf("interaction count must be non-negative, got %d", count),
			Actual:  count,
		}
	}
	out := make([]models.Interaction, 0, count)
	for k := 0; k < count; k++ {
		in, err := s.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

// Next produces a single interaction.
func (s *Simulator) Next() (models.Interaction, error) {
	src := s.rng.IntN(len(s.peers))
	var dst int
	if s.mode == ModePreferential {
		dst = s.preferentialTarget(src)
	} else {
		dst = s.uniformTarget(src)
	}

	target := s.peers[dst]
	p := clamp01(target.SuccessProbability() + s.rng.NormFloat64()*NoiseStdDev)
	success := s.rng.Float64() < p

	outcome := models.OutcomeFailure
	if success {
		outcome = models.OutcomeSuccess
		if s.mode == ModePreferential {
			s.counts[dst]++
		}
	}

	return models.NewInteraction(s.rng.NewID(), s.peers[src].ID, target.ID, outcome, s.now())
}

// SuccessCount returns the preferential weight of peer i.
func (s *Simulator) SuccessCount(i int) int { return s.counts[i] }

func (s *Simulator) uniformTarget(src int) int {
	j := s.rng.IntN(len(s.peers) - 1)
	if j >= src {
		j++
	}
	return j
}

func (s *Simulator) preferentialTarget(src int) int {
	total := 0
	for j, c := range s.counts {
		if j != src {
			total += c
		}
	}
	r := s.rng.Float64() * float64(total)
	acc := 0.0
	last := -1
	for j, c := range s.counts {
		if j == src {
			continue
		}
		acc += float64(c)
		last = j
		if r < acc {
			return j
		}
	}
	return last
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
