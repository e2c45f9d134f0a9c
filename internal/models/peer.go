package models

import (
	"fmt"
	"strings"
)

// Local trust update rule used by RecordOutcome.
const (
	NeutralTrust = 0.5
	TrustStep    = 0.1
)

// Peer is a participant of the trust network.
//
// Competence is an incompetence level: 0.0 is hypercompetent, 1.0 is
// incompetent. Maliciousness runs from 0.0 (altruistic) to 1.0 (malicious).
// Both are fixed at construction.
type Peer struct {
	ID          string
	DisplayName string

	competence    float64
	maliciousness float64

	// GlobalTrust is set by the engine; nil until a run completes.
	GlobalTrust *float64

	// LocalTrust maps partner id to a weight in [0,1]. Renormalized to sum
	// to 1 whenever it is updated through the Peer methods.
	LocalTrust map[string]float64
}

// NewPeer validates the characteristics and builds a peer. An empty
// displayName is derived from the id.
func NewPeer(id, displayName string, competence, maliciousness float64) (*Peer, error) {
	if err := ValidateCharacteristics(competence, maliciousness); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, &Error{Kind: KindInvalidParameter, Message: "peer id must not be empty"}
	}
	if displayName == "" {
		displayName = DefaultDisplayName(id)
	}
	return &Peer{
		ID:            id,
		DisplayName:   displayName,
		competence:    competence,
		maliciousness: maliciousness,
		LocalTrust:    make(map[string]float64),
	}, nil
}

// ValidateCharacteristics checks that both values lie in [0,1].
func ValidateCharacteristics(competence, maliciousness float64) error {
	if !inUnitRange(competence) {
		return &Error{
			Kind:          KindInvalidCharacteristics,
			Message:       fmt.Sprintf("competence must be in [0.0, 1.0], got %g", competence),
			Value:         competence,
			Competence:    competence,
			Maliciousness: maliciousness,
		}
	}
	if !inUnitRange(maliciousness) {
		return &Error{
			Kind:          KindInvalidCharacteristics,
			Message:       fmt.Sprintf("maliciousness must be in [0.0, 1.0], got %g", maliciousness),
			Value:         maliciousness,
			Competence:    competence,
			Maliciousness: maliciousness,
		}
	}
	return nil
}

// DefaultDisplayName builds "Peer-XYZ" from the first three characters of
// the last dash-separated segment of id.
func DefaultDisplayName(id string) string {
	parts := strings.Split(id, "-")
	short := parts[len(parts)-1]
	if len(short) > 3 {
		short = short[:3]
	}
	return "Peer-" + strings.ToUpper(short)
}

// Competence returns the peer's incompetence level.
func (p *Peer) Competence() float64 { return p.competence }

// Maliciousness returns the peer's malicious intent.
func (p *Peer) Maliciousness() float64 { return p.maliciousness }

// SuccessProbability is the noiseless probability that this peer, acting
// as provider, serves a request successfully.
func (p *Peer) SuccessProbability() float64 {
	return (1.0 - p.competence) * (1.0 - p.maliciousness)
}

// HasLocalTrust reports whether any local trust has been assigned.
func (p *Peer) HasLocalTrust() bool {
	return len(p.LocalTrust) > 0
}

// SetLocalTrust assigns trust in partner and renormalizes the mapping.
func (p *Peer) SetLocalTrust(partnerID string, value float64) error {
	if partnerID == p.ID {
		return &Error{
			Kind:     KindSelfInteraction,
			Message:  fmt.Sprintf("peer %q cannot assign trust to itself", p.ID),
			PeerID:   p.ID,
			TargetID: partnerID,
		}
	}
	if !inUnitRange(value) {
		return &Error{
			Kind:     KindInvalidTrustValue,
			Message:  fmt.Sprintf("trust value must be in [0, 1], got %g", value),
			PeerID:   p.ID,
			TargetID: partnerID,
			Value:    value,
		}
	}
	if p.LocalTrust == nil {
		p.LocalTrust = make(map[string]float64)
	}
	p.LocalTrust[partnerID] = value
	p.renormalize()
	return nil
}

// RecordOutcome nudges trust in partner by ±TrustStep, starting from
// NeutralTrust for a new partner, clamps to [0,1] and renormalizes.
func (p *Peer) RecordOutcome(partnerID string, success bool) error {
	current, ok := p.LocalTrust[partnerID]
	if !ok {
		current = NeutralTrust
	}
	if success {
		current += TrustStep
	} else {
		current -= TrustStep
	}
	return p.SetLocalTrust(partnerID, clamp01(current))
}

// SetGlobalTrust stores the engine's score for this peer.
func (p *Peer) SetGlobalTrust(score float64) {
	p.GlobalTrust = &score
}

func (p *Peer) renormalize() {
	total := 0.0
	for _, v := range p.LocalTrust {
		total += v
	}
	if total <= 0 {
		return
	}
	for id, v := range p.LocalTrust {
		p.LocalTrust[id] = v / total
	}
}

func (p *Peer) String() string {
	gt := "none"
	if p.GlobalTrust != nil {
		gt = fmt.Sprintf("%.4f", *p.GlobalTrust)
	}
	return fmt.Sprintf("Peer{%s competence=%.2f maliciousness=%.2f global_trust=%s}",
		p.DisplayName, p.competence, p.maliciousness, gt)
}

func inUnitRange(v float64) bool {
	return v >= 0.0 && v <= 1.0
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
