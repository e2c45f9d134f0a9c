package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nvandessel/eigentrust/internal/simulation"
)

type memoryEntry struct {
	data  []byte
	entry Entry
}

// MemoryStore implements SimulationStore in process memory, for testing
// and the mem:// DSN. Records are stored encoded so callers cannot mutate
// them after Save.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Save(ctx context.Context, rec simulation.Record) error {
	if err := validateID(rec.SimulationID); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SimulationID] = memoryEntry{data: data, entry: entryFor(rec, time.Now())}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (simulation.Record, error) {
	s.mu.RLock()
	e, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return simulation.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var rec simulation.Record
	if err := json.Unmarshal(e.data, &rec); err != nil {
		return simulation.Record{}, fmt.Errorf("decoding %s: %w", id, err)
	}
	return rec, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, 0, len(s.records))
	for _, e := range s.records {
		entries = append(entries, e.entry)
	}
	sortEntries(entries)
	return entries, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
