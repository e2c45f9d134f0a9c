package models

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates the failure modes of the trust pipeline.
type ErrorKind string

const (
	// Input-shape errors
	KindShapeMismatch ErrorKind = "shape_mismatch" // non-square matrix, vector/id length mismatch

	// Domain-validity errors
	KindInvalidCharacteristics ErrorKind = "invalid_characteristics" // competence/maliciousness outside [0,1]
	KindInvalidTrustValue      ErrorKind = "invalid_trust_value"     // direct trust assignment outside [0,1]
	KindNegativeEntry          ErrorKind = "negative_entry"          // negative trust matrix entry
	KindSelfInteraction        ErrorKind = "self_interaction"        // same peer on both ends
	KindInvalidParameter       ErrorKind = "invalid_parameter"       // alpha, epsilon, norm, counts

	// Structural errors
	KindInsufficientPeers ErrorKind = "insufficient_peers"
	KindOrphanReference   ErrorKind = "orphan_reference"
	KindDuplicatePeer     ErrorKind = "duplicate_peer"
	KindInvalidState      ErrorKind = "invalid_state"

	// Consistency errors indicate a bug, not bad input.
	KindInconsistentScores ErrorKind = "inconsistent_scores"
)

// Error is the single error type of the trust pipeline. Kind selects which
// of the payload fields are meaningful.
type Error struct {
	Kind    ErrorKind
	Message string

	// Peer references (orphan, self-interaction, trust assignment)
	PeerID   string
	TargetID string

	// Offending scalar (trust value, matrix entry, alpha, epsilon, delta, sum)
	Value float64

	// Characteristics at the time of the failure
	Competence    float64
	Maliciousness float64

	// Sizes (peer count, vector lengths, matrix dimensions)
	Expected int
	Actual   int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports kind equality so that errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// IsKind reports whether err (or anything it wraps) is an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ShapeError reports a size mismatch between two dimensions.
func ShapeError(what string, expected, actual int) *Error {
	return &Error{
		Kind:     KindShapeMismatch,
		Message:  fmt.Sprintf("%s: expected %d, got %d", what, expected, actual),
		Expected: expected,
		Actual:   actual,
	}
}

// InsufficientPeersError reports that an operation needs at least two peers.
func InsufficientPeersError(op string, count int) *Error {
	return &Error{
		Kind:     KindInsufficientPeers,
		Message:  fmt.Sprintf("at least 2 peers required to %s, got %d", op, count),
		Expected: 2,
		Actual:   count,
	}
}

// OrphanError reports a reference to a peer that is not part of the network.
func OrphanError(peerID, context string) *Error {
	return &Error{
		Kind:    KindOrphanReference,
		Message: fmt.Sprintf("%s references unknown peer %q", context, peerID),
		PeerID:  peerID,
	}
}

// ParameterError reports an out-of-range tuning parameter.
func ParameterError(name string, value float64, constraint string) *Error {
	return &Error{
		Kind:    KindInvalidParameter,
		Message: fmt.Sprintf("%s must be %s, got %g", name, constraint, value),
		Value:   value,
	}
}
