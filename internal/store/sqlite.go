package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/eigentrust/internal/models"
	"github.com/nvandessel/eigentrust/internal/simulation"
)

// SQLiteStore implements SimulationStore on a SQLite database. Peers,
// interactions and convergence snapshots are kept in their own tables,
// ordered by insertion position.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite store path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec simulation.Record) error {
	if err := validateID(rec.SimulationID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Child rows cascade.
	if _, err := tx.ExecContext(ctx, `DELETE FROM simulations WHERE id = ?`, rec.SimulationID); err != nil {
		return fmt.Errorf("failed to replace simulation: %w", err)
	}

	var seed sql.NullInt64
	if rec.RandomSeed != nil {
		seed = sql.NullInt64{Int64: *rec.RandomSeed, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO simulations (id, created_at, state, random_seed, saved_at) VALUES (?, ?, ?, ?, ?)`,
		rec.SimulationID, formatTime(rec.CreatedAt), string(rec.State), seed, formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to insert simulation: %w", err)
	}

	for i, p := range rec.Peers {
		local, err := json.Marshal(p.LocalTrust)
		if err != nil {
			return fmt.Errorf("failed to marshal local trust of %s: %w", p.PeerID, err)
		}
		var global sql.NullFloat64
		if p.GlobalTrust != nil {
			global = sql.NullFloat64{Float64: *p.GlobalTrust, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO peers (simulation_id, position, peer_id, display_name, competence, maliciousness, global_trust, local_trust)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.SimulationID, i, p.PeerID, p.DisplayName, p.Competence, p.Maliciousness, global, string(local)); err != nil {
			return fmt.Errorf("failed to insert peer %s: %w", p.PeerID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO interactions (simulation_id, position, interaction_id, source_peer_id, target_peer_id, outcome, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare interaction insert: %w", err)
	}
	defer stmt.Close()
	for i, in := range rec.Interactions {
		if _, err := stmt.ExecContext(ctx, rec.SimulationID, i, in.ID(), in.Source(), in.Target(),
			string(in.Outcome()), formatTime(in.Timestamp())); err != nil {
			return fmt.Errorf("failed to insert interaction %s: %w", in.ID(), err)
		}
	}

	for _, snap := range rec.ConvergenceHistory {
		scores, err := json.Marshal(snap.Scores())
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot %d: %w", snap.Iteration(), err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (simulation_id, iteration, delta, trust_scores, timestamp)
			VALUES (?, ?, ?, ?, ?)`,
			rec.SimulationID, snap.Iteration(), snap.Delta(), string(scores), formatTime(snap.Timestamp())); err != nil {
			return fmt.Errorf("failed to insert snapshot %d: %w", snap.Iteration(), err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (simulation.Record, error) {
	if err := validateID(id); err != nil {
		return simulation.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rec       simulation.Record
		createdAt string
		state     string
		seed      sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, state, random_seed FROM simulations WHERE id = ?`, id).
		Scan(&rec.SimulationID, &createdAt, &state, &seed)
	if errors.Is(err, sql.ErrNoRows) {
		return simulation.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return simulation.Record{}, fmt.Errorf("failed to query simulation: %w", err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return simulation.Record{}, err
	}
	rec.State = simulation.State(state)
	if seed.Valid {
		v := seed.Int64
		rec.RandomSeed = &v
	}

	if rec.Peers, err = s.loadPeers(ctx, id); err != nil {
		return simulation.Record{}, err
	}
	if rec.Interactions, err = s.loadInteractions(ctx, id); err != nil {
		return simulation.Record{}, err
	}
	if rec.ConvergenceHistory, err = s.loadSnapshots(ctx, id); err != nil {
		return simulation.Record{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) loadPeers(ctx context.Context, id string) ([]simulation.PeerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT peer_id, display_name, competence, maliciousness, global_trust, local_trust
		FROM peers WHERE simulation_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query peers: %w", err)
	}
	defer rows.Close()

	peers := []simulation.PeerRecord{}
	for rows.Next() {
		var (
			p      simulation.PeerRecord
			global sql.NullFloat64
			local  sql.NullString
		)
		if err := rows.Scan(&p.PeerID, &p.DisplayName, &p.Competence, &p.Maliciousness, &global, &local); err != nil {
			return nil, fmt.Errorf("failed to scan peer: %w", err)
		}
		if global.Valid {
			v := global.Float64
			p.GlobalTrust = &v
		}
		p.LocalTrust = map[string]float64{}
		if local.Valid && local.String != "" {
			if err := json.Unmarshal([]byte(local.String), &p.LocalTrust); err != nil {
				return nil, fmt.Errorf("failed to parse local trust of %s: %w", p.PeerID, err)
			}
			if p.LocalTrust == nil {
				p.LocalTrust = map[string]float64{}
			}
		}
		peers = append(peers, p)
	}
	return peers, rows.Err()
}

func (s *SQLiteStore) loadInteractions(ctx context.Context, id string) ([]models.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT interaction_id, source_peer_id, target_peer_id, outcome, timestamp
		FROM interactions WHERE simulation_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	interactions := []models.Interaction{}
	for rows.Next() {
		var iid, source, target, outcome, ts string
		if err := rows.Scan(&iid, &source, &target, &outcome, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		when, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		in, err := models.NewInteraction(iid, source, target, models.Outcome(outcome), when)
		if err != nil {
			return nil, fmt.Errorf("stored interaction %s: %w", iid, err)
		}
		interactions = append(interactions, in)
	}
	return interactions, rows.Err()
}

func (s *SQLiteStore) loadSnapshots(ctx context.Context, id string) ([]models.ConvergenceSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, delta, trust_scores, timestamp
		FROM snapshots WHERE simulation_id = ? ORDER BY iteration`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	history := []models.ConvergenceSnapshot{}
	for rows.Next() {
		var (
			iteration int
			delta     float64
			raw, ts   string
		)
		if err := rows.Scan(&iteration, &delta, &raw, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		var scores map[string]float64
		if err := json.Unmarshal([]byte(raw), &scores); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot %d: %w", iteration, err)
		}
		when, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		snap, err := models.NewConvergenceSnapshot(iteration, scores, delta, when)
		if err != nil {
			return nil, fmt.Errorf("stored snapshot %d: %w", iteration, err)
		}
		history = append(history, snap)
	}
	return history, rows.Err()
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.created_at, s.state, s.saved_at,
			(SELECT COUNT(*) FROM peers p WHERE p.simulation_id = s.id),
			(SELECT COUNT(*) FROM interactions i WHERE i.simulation_id = s.id)
		FROM simulations s`)
	if err != nil {
		return nil, fmt.Errorf("failed to list simulations: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                  Entry
			createdAt, savedAt string
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.State, &savedAt, &e.PeerCount, &e.InteractionCount); err != nil {
			return nil, fmt.Errorf("failed to scan simulation: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if e.SavedAt, err = parseTime(savedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM simulations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete simulation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete simulation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}
