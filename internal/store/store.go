// Package store persists simulation records.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nvandessel/eigentrust/internal/simulation"
)

// ErrNotFound is returned when no simulation has the requested id.
var ErrNotFound = errors.New("simulation not found")

// Entry is the listing summary of a stored simulation.
type Entry struct {
	ID               string    `json:"simulation_id"`
	CreatedAt        time.Time `json:"created_at"`
	State            string    `json:"state"`
	PeerCount        int       `json:"peer_count"`
	InteractionCount int       `json:"interaction_count"`
	SavedAt          time.Time `json:"saved_at"`
}

// SimulationStore defines the interface for storing and loading
// simulation records.
type SimulationStore interface {
	// Save stores rec, replacing any record with the same id.
	Save(ctx context.Context, rec simulation.Record) error

	// Load returns the record with the given id, or ErrNotFound.
	Load(ctx context.Context, id string) (simulation.Record, error)

	// List returns all stored simulations, newest first.
	List(ctx context.Context) ([]Entry, error)

	// Delete removes a record. Deleting a missing id returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	Close() error
}

// Open selects a store from a DSN:
//
//	sqlite:///path/to/eigentrust.db
//	redis://localhost:6379/0
//	file:///path/to/dir   (or a bare directory path)
//	archive:///path/to/dir
//	mem://
func Open(dsn string) (SimulationStore, error) {
	switch {
	case dsn == "mem://":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLiteStore(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return NewRedisStoreFromURL(dsn)
	case strings.HasPrefix(dsn, "archive://"):
		return NewFileStore(strings.TrimPrefix(dsn, "archive://"), true)
	case strings.HasPrefix(dsn, "file://"):
		return NewFileStore(strings.TrimPrefix(dsn, "file://"), false)
	case dsn == "":
		return nil, fmt.Errorf("empty store DSN")
	case strings.Contains(dsn, "://"):
		return nil, fmt.Errorf("unsupported store DSN %q", dsn)
	default:
		return NewFileStore(dsn, false)
	}
}

// entryFor builds the listing summary of rec.
func entryFor(rec simulation.Record, savedAt time.Time) Entry {
	return Entry{
		ID:               rec.SimulationID,
		CreatedAt:        rec.CreatedAt,
		State:            string(rec.State),
		PeerCount:        len(rec.Peers),
		InteractionCount: len(rec.Interactions),
		SavedAt:          savedAt.UTC(),
	}
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("simulation id must not be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid simulation id %q", id)
	}
	return nil
}
