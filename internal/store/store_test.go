package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nvandessel/eigentrust/internal/simulation"
)

// completedRecord builds a seeded simulation, runs it with history, and
// returns its record.
func completedRecord(t *testing.T, id string, seed int64) simulation.Record {
	t.Helper()
	sim := simulation.New(simulation.WithSeed(seed), simulation.WithID(id))
	if err := sim.GeneratePeers(simulation.PresetAdversarial, 8); err != nil {
		t.Fatalf("GeneratePeers: %v", err)
	}
	if _, err := sim.SimulateInteractions(60, simulation.SimulateOptions{UpdateLocalTrust: true}); err != nil {
		t.Fatalf("SimulateInteractions: %v", err)
	}
	cfg := simulation.DefaultRunConfig()
	cfg.TrackHistory = true
	if _, err := sim.RunAlgorithm(cfg); err != nil {
		t.Fatalf("RunAlgorithm: %v", err)
	}
	return sim.Record()
}

// runStoreContract exercises the SimulationStore behaviour every backend
// must share.
func runStoreContract(t *testing.T, s SimulationStore) {
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		_, err := s.Load(ctx, "absent")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(absent) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("save and load", func(t *testing.T) {
		rec := completedRecord(t, "sim-a", 5)
		if err := s.Save(ctx, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := s.Load(ctx, "sim-a")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		assertSameRecord(t, rec, got)

		// The loaded record must rebuild into a valid simulation.
		sim, err := simulation.FromRecord(got)
		if err != nil {
			t.Fatalf("FromRecord: %v", err)
		}
		if sim.State() != simulation.StateCompleted {
			t.Errorf("State = %s, want COMPLETED", sim.State())
		}
	})

	t.Run("save replaces", func(t *testing.T) {
		rec := completedRecord(t, "sim-a", 6)
		rec.Interactions = rec.Interactions[:10]
		rec.ConvergenceHistory = rec.ConvergenceHistory[:1]
		if err := s.Save(ctx, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := s.Load(ctx, "sim-a")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(got.Interactions) != 10 || len(got.ConvergenceHistory) != 1 {
			t.Errorf("replaced record has %d interactions, %d snapshots; want 10, 1",
				len(got.Interactions), len(got.ConvergenceHistory))
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		older := completedRecord(t, "sim-old", 7)
		older.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		newer := completedRecord(t, "sim-new", 8)
		newer.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for _, rec := range []simulation.Record{older, newer} {
			if err := s.Save(ctx, rec); err != nil {
				t.Fatalf("Save(%s): %v", rec.SimulationID, err)
			}
		}

		entries, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		pos := make(map[string]int)
		for i, e := range entries {
			pos[e.ID] = i
		}
		for _, id := range []string{"sim-a", "sim-old", "sim-new"} {
			if _, ok := pos[id]; !ok {
				t.Fatalf("List() lacks %s: %+v", id, entries)
			}
		}
		if pos["sim-new"] > pos["sim-old"] {
			t.Errorf("sim-new listed after sim-old: %+v", entries)
		}
		e := entries[pos["sim-new"]]
		if e.PeerCount != 8 || e.InteractionCount != 60 || e.State != "COMPLETED" {
			t.Errorf("entry = %+v, want 8 peers, 60 interactions, COMPLETED", e)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.Delete(ctx, "sim-old"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Load(ctx, "sim-old"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load after Delete error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "sim-old"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := completedRecord(t, "sim-x", 9)
		rec.SimulationID = ""
		if err := s.Save(ctx, rec); err == nil {
			t.Error("Save with empty id should fail")
		}
	})
}

func assertSameRecord(t *testing.T, want, got simulation.Record) {
	t.Helper()
	if got.SimulationID != want.SimulationID || got.State != want.State {
		t.Errorf("got (%s, %s), want (%s, %s)", got.SimulationID, got.State, want.SimulationID, want.State)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	if (got.RandomSeed == nil) != (want.RandomSeed == nil) ||
		(got.RandomSeed != nil && *got.RandomSeed != *want.RandomSeed) {
		t.Errorf("RandomSeed = %v, want %v", got.RandomSeed, want.RandomSeed)
	}
	if len(got.Peers) != len(want.Peers) {
		t.Fatalf("got %d peers, want %d", len(got.Peers), len(want.Peers))
	}
	for i, p := range want.Peers {
		q := got.Peers[i]
		if q.PeerID != p.PeerID || q.DisplayName != p.DisplayName ||
			q.Competence != p.Competence || q.Maliciousness != p.Maliciousness {
			t.Errorf("peer %d = %+v, want %+v", i, q, p)
		}
		if q.GlobalTrust == nil || p.GlobalTrust == nil || *q.GlobalTrust != *p.GlobalTrust {
			t.Errorf("peer %s global trust not preserved", p.PeerID)
		}
		if len(q.LocalTrust) != len(p.LocalTrust) {
			t.Errorf("peer %s local trust size %d, want %d", p.PeerID, len(q.LocalTrust), len(p.LocalTrust))
		}
		for k, v := range p.LocalTrust {
			if q.LocalTrust[k] != v {
				t.Errorf("peer %s local trust in %s = %v, want %v", p.PeerID, k, q.LocalTrust[k], v)
			}
		}
	}
	simulation.AssertSameInteractions(t, want.Interactions, got.Interactions)
	if len(got.ConvergenceHistory) != len(want.ConvergenceHistory) {
		t.Fatalf("got %d snapshots, want %d", len(got.ConvergenceHistory), len(want.ConvergenceHistory))
	}
	for i, snap := range want.ConvergenceHistory {
		g := got.ConvergenceHistory[i]
		if g.Iteration() != snap.Iteration() || g.Delta() != snap.Delta() {
			t.Errorf("snapshot %d = (%d, %v), want (%d, %v)", i, g.Iteration(), g.Delta(), snap.Iteration(), snap.Delta())
		}
	}
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	runStoreContract(t, s)
}

func TestFileStore_Compressed(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}
	runStoreContract(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "eigentrust.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	runStoreContract(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eigentrust.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	rec := completedRecord(t, "persisted", 3)
	if err := s.Save(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Load(context.Background(), "persisted")
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	assertSameRecord(t, rec, got)
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer s.Close()
	runStoreContract(t, s)

	if !mr.Exists("eigentrust:sim:sim-a") {
		t.Error("expected eigentrust:sim:sim-a key")
	}
	members, err := mr.Members(simulationsSet)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range members {
		if m == "sim-old" {
			t.Error("deleted id still in the simulations set")
		}
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()

	tests := []struct {
		name    string
		dsn     string
		check   func(SimulationStore) bool
		wantErr bool
	}{
		{"memory", "mem://", func(s SimulationStore) bool { _, ok := s.(*MemoryStore); return ok }, false},
		{"sqlite", "sqlite://" + filepath.Join(dir, "a.db"), func(s SimulationStore) bool { _, ok := s.(*SQLiteStore); return ok }, false},
		{"file", "file://" + filepath.Join(dir, "json"), func(s SimulationStore) bool {
			fs, ok := s.(*FileStore)
			return ok && !fs.compressed
		}, false},
		{"archive", "archive://" + filepath.Join(dir, "etz"), func(s SimulationStore) bool {
			fs, ok := s.(*FileStore)
			return ok && fs.compressed
		}, false},
		{"bare path", filepath.Join(dir, "bare"), func(s SimulationStore) bool { _, ok := s.(*FileStore); return ok }, false},
		{"redis", "redis://" + mr.Addr() + "/0", func(s SimulationStore) bool { _, ok := s.(*RedisStore); return ok }, false},
		{"empty", "", nil, true},
		{"unknown scheme", "postgres://localhost/db", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.dsn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%q) error = %v, wantErr %v", tt.dsn, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer s.Close()
			if !tt.check(s) {
				t.Errorf("Open(%q) returned %T", tt.dsn, s)
			}
		})
	}
}

func TestArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.etz")
	rec := completedRecord(t, "archived", 11)
	if err := WriteArchive(path, rec); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	header, err := ReadArchiveHeader(path)
	if err != nil {
		t.Fatalf("ReadArchiveHeader: %v", err)
	}
	if header.Version != ArchiveVersion || header.SimulationID != "archived" || header.PeerCount != 8 {
		t.Errorf("header = %+v", header)
	}
	if !strings.HasPrefix(header.Checksum, "sha256:") {
		t.Errorf("checksum %q lacks sha256: prefix", header.Checksum)
	}
	if err := VerifyArchive(path); err != nil {
		t.Errorf("VerifyArchive: %v", err)
	}

	got, err := ReadArchive(path)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	assertSameRecord(t, rec, got)
}
