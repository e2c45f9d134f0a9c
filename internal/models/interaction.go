package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outcome is the result of a single interaction.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ParseOutcome maps a string to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomeSuccess, OutcomeFailure:
		return Outcome(s), nil
	default:
		return "", &Error{Kind: KindInvalidParameter, Message: fmt.Sprintf("unknown interaction outcome %q", s)}
	}
}

// Interaction is an immutable record of one directed service request:
// source (requester) asked target (provider) and got outcome.
type Interaction struct {
	id        string
	source    string
	target    string
	outcome   Outcome
	timestamp time.Time
}

// NewInteraction validates and builds an interaction record.
func NewInteraction(id, source, target string, outcome Outcome, timestamp time.Time) (Interaction, error) {
	if source == target {
		return Interaction{}, &Error{
			Kind:     KindSelfInteraction,
			Message:  fmt.Sprintf("source and target peers must be different, got %q", source),
			PeerID:   source,
			TargetID: target,
		}
	}
	if _, err := ParseOutcome(string(outcome)); err != nil {
		return Interaction{}, err
	}
	return Interaction{
		id:        id,
		source:    source,
		target:    target,
		outcome:   outcome,
		timestamp: timestamp.UTC(),
	}, nil
}

func (i Interaction) ID() string           { return i.id }
func (i Interaction) Source() string       { return i.source }
func (i Interaction) Target() string       { return i.target }
func (i Interaction) Outcome() Outcome     { return i.outcome }
func (i Interaction) Timestamp() time.Time { return i.timestamp }

// Succeeded reports whether the provider served the request.
func (i Interaction) Succeeded() bool { return i.outcome == OutcomeSuccess }

func (i Interaction) String() string {
	return fmt.Sprintf("Interaction(%s -> %s, %s)", i.source, i.target, i.outcome)
}

type interactionJSON struct {
	ID        string    `json:"interaction_id"`
	Source    string    `json:"source_peer_id"`
	Target    string    `json:"target_peer_id"`
	Outcome   Outcome   `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

// MarshalJSON implements json.Marshaler.
func (i Interaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(interactionJSON{
		ID:        i.id,
		Source:    i.source,
		Target:    i.target,
		Outcome:   i.outcome,
		Timestamp: i.timestamp,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Decoded records go through
// the same validation as NewInteraction.
func (i *Interaction) UnmarshalJSON(data []byte) error {
	var raw interactionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := NewInteraction(raw.ID, raw.Source, raw.Target, raw.Outcome, raw.Timestamp)
	if err != nil {
		return err
	}
	*i = decoded
	return nil
}
