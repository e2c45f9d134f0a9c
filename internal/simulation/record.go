package simulation

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nvandessel/eigentrust/internal/logging"
	"github.com/nvandessel/eigentrust/internal/models"
)

// PeerRecord is the serialized form of a peer.
type PeerRecord struct {
	PeerID        string             `json:"peer_id"`
	DisplayName   string             `json:"display_name"`
	Competence    float64            `json:"competence"`
	Maliciousness float64            `json:"maliciousness"`
	GlobalTrust   *float64           `json:"global_trust"`
	LocalTrust    map[string]float64 `json:"local_trust"`
}

// Record is the structured, serializable state of a simulation.
type Record struct {
	SimulationID       string                       `json:"simulation_id"`
	CreatedAt          time.Time                    `json:"created_at"`
	State              State                        `json:"state"`
	RandomSeed         *int64                       `json:"random_seed"`
	Peers              []PeerRecord                 `json:"peers"`
	Interactions       []models.Interaction         `json:"interactions"`
	ConvergenceHistory []models.ConvergenceSnapshot `json:"convergence_history"`
}

// Record captures the simulation state.
func (s *Simulation) Record() Record {
	r := Record{
		SimulationID:       s.id,
		CreatedAt:          s.createdAt,
		State:              s.state,
		Peers:              make([]PeerRecord, 0, len(s.peers)),
		Interactions:       s.Interactions(),
		ConvergenceHistory: s.History(),
	}
	if s.seed != nil {
		seed := *s.seed
		r.RandomSeed = &seed
	}
	if r.ConvergenceHistory == nil {
		r.ConvergenceHistory = []models.ConvergenceSnapshot{}
	}
	for _, p := range s.peers {
		local := make(map[string]float64, len(p.LocalTrust))
		for k, v := range p.LocalTrust {
			local[k] = v
		}
		var gt *float64
		if p.GlobalTrust != nil {
			v := *p.GlobalTrust
			gt = &v
		}
		r.Peers = append(r.Peers, PeerRecord{
			PeerID:        p.ID,
			DisplayName:   p.DisplayName,
			Competence:    p.Competence(),
			Maliciousness: p.Maliciousness(),
			GlobalTrust:   gt,
			LocalTrust:    local,
		})
	}
	return r
}

// FromRecord rebuilds a simulation, validating every peer and interaction.
//
// A seeded simulation continues on its own stream of the seed, numbered
// by the count of recorded interactions plus one. Stream 0 drew the
// simulation id and the peers, so continuation never replays it.
func FromRecord(r Record) (*Simulation, error) {
	state, err := ParseState(string(r.State))
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		id:        r.SimulationID,
		createdAt: r.CreatedAt.UTC(),
		state:     state,
		peerIndex: make(map[string]int, len(r.Peers)),
		logger:    logging.Discard(),
	}
	if r.RandomSeed != nil {
		seed := *r.RandomSeed
		s.seed = &seed
		s.rng = NewStreamRandom(seed, uint64(len(r.Interactions))+1)
	} else {
		s.rng, _ = NewUnseededRandom()
	}

	for _, pr := range r.Peers {
		p, err := models.NewPeer(pr.PeerID, pr.DisplayName, pr.Competence, pr.Maliciousness)
		if err != nil {
			return nil, fmt.Errorf("loading peer %s: %w", pr.PeerID, err)
		}
		for partner, v := range pr.LocalTrust {
			if partner == p.ID {
				return nil, &models.Error{
					Kind:     models.KindSelfInteraction,
					Message:  fmt.Sprintf("peer %q holds local trust in itself", p.ID),
					PeerID:   p.ID,
					TargetID: partner,
				}
			}
			if v < 0 || v > 1 {
				return nil, &models.Error{
					Kind:     models.KindInvalidTrustValue,
					Message:  fmt.Sprintf("local trust of %s in %s must be in [0, 1], got %g", p.ID, partner, v),
					PeerID:   p.ID,
					TargetID: partner,
					Value:    v,
				}
			}
			p.LocalTrust[partner] = v
		}
		if pr.GlobalTrust != nil {
			p.SetGlobalTrust(*pr.GlobalTrust)
		}
		if err := s.AddPeer(p); err != nil {
			return nil, err
		}
	}

	for _, in := range r.Interactions {
		if err := s.AddInteraction(in); err != nil {
			return nil, err
		}
	}
	if len(r.ConvergenceHistory) > 0 {
		s.history = make([]models.ConvergenceSnapshot, len(r.ConvergenceHistory))
		copy(s.history, r.ConvergenceHistory)
	}
	return s, nil
}

// WriteJSON writes the simulation record as indented JSON.
func (s *Simulation) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Record()); err != nil {
		return fmt.Errorf("encoding simulation %s: %w", s.id, err)
	}
	return nil
}

// ReadJSON decodes a simulation record and rebuilds the simulation.
func ReadJSON(r io.Reader) (*Simulation, error) {
	var rec Record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding simulation: %w", err)
	}
	return FromRecord(rec)
}
