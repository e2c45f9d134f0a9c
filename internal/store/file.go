package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nvandessel/eigentrust/internal/simulation"
)

const (
	jsonExt    = ".json"
	archiveExt = ".etz"
)

// FileStore implements SimulationStore with one file per simulation in a
// directory: <id>.json, or <id>.etz archives when compressed.
// Thread-safe for concurrent access.
type FileStore struct {
	mu         sync.RWMutex
	dir        string
	compressed bool
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string, compressed bool) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir, compressed: compressed}, nil
}

func (s *FileStore) Save(ctx context.Context, rec simulation.Record) error {
	if err := validateID(rec.SimulationID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	jsonPath := filepath.Join(s.dir, rec.SimulationID+jsonExt)
	archivePath := filepath.Join(s.dir, rec.SimulationID+archiveExt)

	if s.compressed {
		if err := WriteArchive(archivePath, rec); err != nil {
			return fmt.Errorf("saving %s: %w", rec.SimulationID, err)
		}
		_ = os.Remove(jsonPath)
		return nil
	}

	if err := WriteJSONFile(jsonPath, rec); err != nil {
		return fmt.Errorf("saving %s: %w", rec.SimulationID, err)
	}
	_ = os.Remove(archivePath)
	return nil
}

func (s *FileStore) Load(ctx context.Context, id string) (simulation.Record, error) {
	if err := validateID(id); err != nil {
		return simulation.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := ReadJSONFile(filepath.Join(s.dir, id+jsonExt))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return simulation.Record{}, err
	}

	rec, err = ReadArchive(filepath.Join(s.dir, id+archiveExt))
	if errors.Is(err, os.ErrNotExist) {
		return simulation.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading store directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		path := filepath.Join(s.dir, name)
		info, err := de.Info()
		if err != nil {
			continue
		}

		switch {
		case strings.HasSuffix(name, archiveExt):
			h, err := ReadArchiveHeader(path)
			if err != nil {
				continue
			}
			entries = append(entries, Entry{
				ID:               h.SimulationID,
				CreatedAt:        h.CreatedAt,
				State:            h.State,
				PeerCount:        h.PeerCount,
				InteractionCount: h.InteractionCount,
				SavedAt:          h.SavedAt,
			})
		case strings.HasSuffix(name, jsonExt):
			rec, err := ReadJSONFile(path)
			if err != nil {
				continue
			}
			entries = append(entries, entryFor(rec, info.ModTime()))
		}
	}

	sortEntries(entries)
	return entries, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	for _, ext := range []string{jsonExt, archiveExt} {
		err := os.Remove(filepath.Join(s.dir, id+ext))
		if err == nil {
			removed = true
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("deleting %s: %w", id, err)
		}
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// WriteJSONFile writes rec as indented JSON to path.
func WriteJSONFile(path string, rec simulation.Record) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadJSONFile reads a record written by WriteJSONFile.
func ReadJSONFile(path string) (simulation.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return simulation.Record{}, err
	}
	var rec simulation.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return simulation.Record{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rec, nil
}

// sortEntries orders entries newest first, ties broken by id.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
