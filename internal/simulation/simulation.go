package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/eigentrust/internal/logging"
	"github.com/nvandessel/eigentrust/internal/matrix"
	"github.com/nvandessel/eigentrust/internal/models"
	"github.com/nvandessel/eigentrust/internal/ranking"
)

// State is the lifecycle stage of a Simulation.
type State string

const (
	StateCreated   State = "CREATED"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// ParseState maps a stored state name to a State.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateCreated, StateRunning, StateCompleted, StateFailed:
		return State(s), nil
	default:
		return "", &models.Error{
			Kind:    models.KindInvalidState,
			Message: fmt.Sprintf("unknown simulation state %q", s),
		}
	}
}

// RunConfig configures one RunAlgorithm call.
type RunConfig struct {
	Engine       ranking.Config
	TrackHistory bool
	Fallback     matrix.Fallback
}

// DefaultRunConfig returns the default engine parameters without history.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Engine:   ranking.DefaultConfig(),
		Fallback: matrix.FallbackInteracted,
	}
}

// SimulateOptions configures SimulateInteractions.
type SimulateOptions struct {
	// Preferential selects providers by their success count instead of
	// uniformly.
	Preferential bool

	// UpdateLocalTrust feeds every outcome back into the requester's local
	// trust (see models.Peer.RecordOutcome). Peers with local trust use it
	// instead of interaction success rates when the matrix is built.
	UpdateLocalTrust bool
}

// Simulation is the aggregate root of one experiment: a set of peers, the
// interactions among them and the result of the latest algorithm run.
// A Simulation is owned by a single caller and is not safe for concurrent
// use.
type Simulation struct {
	id        string
	createdAt time.Time
	seed      *int64
	state     State

	peers        []*models.Peer
	peerIndex    map[string]int
	interactions []models.Interaction
	history      []models.ConvergenceSnapshot
	result       *models.TrustScores

	rng    *Random
	logger *slog.Logger
	tracer *logging.TraceLogger
}

// Option customizes a new Simulation.
type Option func(*Simulation)

// WithSeed makes every random draw of the simulation reproducible.
func WithSeed(seed int64) Option {
	return func(s *Simulation) { s.seed = &seed }
}

// WithID overrides the generated simulation id.
func WithID(id string) Option {
	return func(s *Simulation) { s.id = id }
}

// New creates an empty simulation in the CREATED state.
func New(opts ...Option) *Simulation {
	s := &Simulation{
		createdAt: time.Now().UTC(),
		state:     StateCreated,
		peerIndex: make(map[string]int),
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed != nil {
		s.rng = NewRandom(*s.seed)
	} else {
		s.rng, _ = NewUnseededRandom()
	}
	if s.id == "" {
		s.id = s.rng.NewID()
	}
	return s
}

// SetLogger sets the structured logger and run tracer for observability.
// Either may be nil.
func (s *Simulation) SetLogger(logger *slog.Logger, tracer *logging.TraceLogger) {
	if logger == nil {
		logger = logging.Discard()
	}
	s.logger = logger
	s.tracer = tracer
}

func (s *Simulation) ID() string           { return s.id }
func (s *Simulation) CreatedAt() time.Time { return s.createdAt }
func (s *Simulation) State() State         { return s.state }

// Seed returns the random seed, if one was set.
func (s *Simulation) Seed() (int64, bool) {
	if s.seed == nil {
		return 0, false
	}
	return *s.seed, true
}

// Peers returns the peers in insertion order. The slice is a copy; the
// peers are shared.
func (s *Simulation) Peers() []*models.Peer {
	out := make([]*models.Peer, len(s.peers))
	copy(out, s.peers)
	return out
}

// PeerIDs returns peer ids in insertion order, which is also matrix order.
func (s *Simulation) PeerIDs() []string {
	ids := make([]string, len(s.peers))
	for i, p := range s.peers {
		ids[i] = p.ID
	}
	return ids
}

// Peer looks up a peer by id.
func (s *Simulation) Peer(id string) (*models.Peer, bool) {
	i, ok := s.peerIndex[id]
	if !ok {
		return nil, false
	}
	return s.peers[i], true
}

// Interactions returns a copy of the recorded interactions.
func (s *Simulation) Interactions() []models.Interaction {
	out := make([]models.Interaction, len(s.interactions))
	copy(out, s.interactions)
	return out
}

// History returns the convergence history of the latest run, or nil.
func (s *Simulation) History() []models.ConvergenceSnapshot {
	if s.history == nil {
		return nil
	}
	out := make([]models.ConvergenceSnapshot, len(s.history))
	copy(out, s.history)
	return out
}

// Result returns the scores of the latest successful run.
func (s *Simulation) Result() (models.TrustScores, bool) {
	if s.result == nil {
		return models.TrustScores{}, false
	}
	return *s.result, true
}

// AddPeer appends a peer. Ids must be unique.
func (s *Simulation) AddPeer(p *models.Peer) error {
	if p == nil {
		return &models.Error{Kind: models.KindInvalidParameter, Message: "peer must not be nil"}
	}
	if _, dup := s.peerIndex[p.ID]; dup {
		return &models.Error{
			Kind:    models.KindDuplicatePeer,
			Message: fmt.Sprintf("peer %q already exists", p.ID),
			PeerID:  p.ID,
		}
	}
	s.peerIndex[p.ID] = len(s.peers)
	s.peers = append(s.peers, p)
	return nil
}

// AddPeers appends peers in order, stopping at the first error.
func (s *Simulation) AddPeers(peers ...*models.Peer) error {
	for _, p := range peers {
		if err := s.AddPeer(p); err != nil {
			return err
		}
	}
	return nil
}

// GeneratePeers adds count peers drawn from preset.
func (s *Simulation) GeneratePeers(preset Preset, count int) error {
	peers, err := NewNetwork(preset, count, s.rng)
	if err != nil {
		return err
	}
	if err := s.AddPeers(peers...); err != nil {
		return err
	}
	s.logger.Debug("generated peers", "simulation", s.id, "preset", preset, "count", count)
	return nil
}

// AddInteraction records an interaction between two known peers.
func (s *Simulation) AddInteraction(in models.Interaction) error {
	if _, ok := s.peerIndex[in.Source()]; !ok {
		return models.OrphanError(in.Source(), fmt.Sprintf("interaction %s source", in.ID()))
	}
	if _, ok := s.peerIndex[in.Target()]; !ok {
		return models.OrphanError(in.Target(), fmt.Sprintf("interaction %s target", in.ID()))
	}
	s.interactions = append(s.interactions, in)
	return nil
}

// SimulateInteractions generates count interactions with the simulation's
// generator and records them. Preferential counts start from the successes
// already recorded.
func (s *Simulation) SimulateInteractions(count int, opts SimulateOptions) ([]models.Interaction, error) {
	mode := ModeUniform
	if opts.Preferential {
		mode = ModePreferential
	}
	sim, err := NewSimulator(s.peers, s.rng, mode)
	if err != nil {
		return nil, err
	}
	sim.Replay(s.interactions)
	generated, err := sim.Simulate(count)
	if err != nil {
		return nil, err
	}

	for _, in := range generated {
		if opts.UpdateLocalTrust {
			src, _ := s.Peer(in.Source())
			if err := src.RecordOutcome(in.Target(), in.Succeeded()); err != nil {
				return nil, fmt.Errorf("updating local trust of %s: %w", in.Source(), err)
			}
		}
		s.interactions = append(s.interactions, in)
	}

	s.logger.Debug("simulated interactions",
		"simulation", s.id, "count", count, "mode", mode, "total", len(s.interactions))
	return generated, nil
}

// TrustMatrix builds and column-normalizes the trust matrix for the
// current peers and interactions without touching the simulation state.
func (s *Simulation) TrustMatrix(fallback matrix.Fallback) (*matrix.TrustMatrix, error) {
	m, err := matrix.Build(s.peers, s.interactions, matrix.BuildOptions{Fallback: fallback})
	if err != nil {
		return nil, err
	}
	if err := m.NormalizeColumns(); err != nil {
		return nil, err
	}
	return m, nil
}

// RunAlgorithm computes global trust for every peer.
//
// The simulation must hold at least two peers and be in the CREATED or
// COMPLETED state. On success every peer's GlobalTrust is set and the
// state becomes COMPLETED. On any failure the state becomes FAILED and the
// error is returned unchanged.
func (s *Simulation) RunAlgorithm(cfg RunConfig) (models.TrustScores, error) {
	if len(s.peers) < 2 {
		return models.TrustScores{}, models.InsufficientPeersError("run EigenTrust", len(s.peers))
	}
	if s.state != StateCreated && s.state != StateCompleted {
		return models.TrustScores{}, &models.Error{
			Kind:    models.KindInvalidState,
			Message: fmt.Sprintf("cannot run algorithm from state %s", s.state),
		}
	}

	s.state = StateRunning
	s.tracer.RunStarted(s.id, len(s.peers), len(s.interactions), map[string]any{
		"max_iterations": cfg.Engine.MaxIterations,
		"epsilon":        cfg.Engine.Epsilon,
		"alpha":          cfg.Engine.Alpha,
		"norm":           string(cfg.Engine.Norm),
		"track_history":  cfg.TrackHistory,
	})
	s.logger.Info("running eigentrust",
		"simulation", s.id, "peers", len(s.peers), "interactions", len(s.interactions))

	scores, err := s.run(cfg)
	if err != nil {
		s.state = StateFailed
		s.tracer.RunFailed(s.id, err)
		s.logger.Error("eigentrust run failed", "simulation", s.id, "error", err)
		return models.TrustScores{}, err
	}

	s.state = StateCompleted
	s.tracer.RunCompleted(s.id, scores.Iterations(), scores.Converged(), scores.FinalDelta())
	s.logger.Info("eigentrust run completed",
		"simulation", s.id,
		"iterations", scores.Iterations(),
		"converged", scores.Converged(),
		"final_delta", scores.FinalDelta())
	return scores, nil
}

func (s *Simulation) run(cfg RunConfig) (models.TrustScores, error) {
	m, err := s.TrustMatrix(cfg.Fallback)
	if err != nil {
		return models.TrustScores{}, err
	}

	engineCfg := cfg.Engine
	userObserver := engineCfg.Observer
	engineCfg.Observer = func(iteration int, delta float64) {
		s.tracer.Iteration(s.id, iteration, delta)
		s.logger.Log(context.Background(), logging.LevelTrace, "iteration", "simulation", s.id, "iteration", iteration, "delta", delta)
		if userObserver != nil {
			userObserver(iteration, delta)
		}
	}

	ids := m.PeerIDs()
	pre := ranking.UniformPreTrust(len(ids))
	var res ranking.Result
	if cfg.TrackHistory {
		res, err = ranking.ComputeWithHistory(m.Values(), pre, ids, engineCfg)
	} else {
		res, err = ranking.Compute(m.Values(), pre, engineCfg)
	}
	if err != nil {
		return models.TrustScores{}, err
	}

	scores, err := models.NewTrustScores(
		ranking.ScoreMap(ids, res.Trust),
		res.Iterations,
		res.Converged,
		engineCfg.Epsilon,
		res.FinalDelta,
		res.History,
	)
	if err != nil {
		return models.TrustScores{}, err
	}

	for i, p := range s.peers {
		p.SetGlobalTrust(res.Trust[i])
	}
	s.history = res.History
	s.result = &scores
	return scores, nil
}
