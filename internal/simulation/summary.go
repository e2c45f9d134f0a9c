package simulation

import (
	"time"

	"github.com/nvandessel/eigentrust/internal/models"
)

// PeerScore is one row of a ranking.
type PeerScore struct {
	PeerID        string  `json:"peer_id"`
	DisplayName   string  `json:"display_name"`
	Competence    float64 `json:"competence"`
	Maliciousness float64 `json:"maliciousness"`
	GlobalTrust   float64 `json:"global_trust"`
}

// Summary describes a simulation at a glance.
type Summary struct {
	SimulationID     string      `json:"simulation_id"`
	CreatedAt        time.Time   `json:"created_at"`
	State            State       `json:"state"`
	RandomSeed       *int64      `json:"random_seed,omitempty"`
	PeerCount        int         `json:"peer_count"`
	InteractionCount int         `json:"interaction_count"`
	SuccessCount     int         `json:"success_count"`
	SuccessRate      float64     `json:"success_rate"`
	Iterations       int         `json:"iterations,omitempty"`
	FinalDelta       float64     `json:"final_delta,omitempty"`
	TopPeers         []PeerScore `json:"top_peers,omitempty"`
}

// Summarize reports counts and the top n peers by global trust. Only peers
// that have a global trust score are ranked.
func (s *Simulation) Summarize(n int) Summary {
	sum := Summary{
		SimulationID:     s.id,
		CreatedAt:        s.createdAt,
		State:            s.state,
		PeerCount:        len(s.peers),
		InteractionCount: len(s.interactions),
	}
	if s.seed != nil {
		seed := *s.seed
		sum.RandomSeed = &seed
	}
	for _, in := range s.interactions {
		if in.Succeeded() {
			sum.SuccessCount++
		}
	}
	if sum.InteractionCount > 0 {
		sum.SuccessRate = float64(sum.SuccessCount) / float64(sum.InteractionCount)
	}

	if s.result != nil {
		sum.Iterations = s.result.Iterations()
		sum.FinalDelta = s.result.FinalDelta()
	} else if len(s.history) > 0 {
		last := s.history[len(s.history)-1]
		sum.Iterations = last.Iteration()
		sum.FinalDelta = last.Delta()
	}

	sum.TopPeers = s.Ranking(n)
	return sum
}

// Ranking returns up to n peers ordered by global trust, highest first.
// n <= 0 returns all ranked peers.
func (s *Simulation) Ranking(n int) []PeerScore {
	scores := make(map[string]float64, len(s.peers))
	for _, p := range s.peers {
		if p.GlobalTrust != nil {
			scores[p.ID] = *p.GlobalTrust
		}
	}
	ranked := models.RankScores(scores)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]PeerScore, 0, len(ranked))
	for _, r := range ranked {
		p, _ := s.Peer(r.PeerID)
		out = append(out, PeerScore{
			PeerID:        p.ID,
			DisplayName:   p.DisplayName,
			Competence:    p.Competence(),
			Maliciousness: p.Maliciousness(),
			GlobalTrust:   r.Score,
		})
	}
	return out
}
