package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/eigentrust/internal/config"
	"github.com/nvandessel/eigentrust/internal/matrix"
	"github.com/nvandessel/eigentrust/internal/ratelimit"
	"github.com/nvandessel/eigentrust/internal/simulation"
	"github.com/nvandessel/eigentrust/internal/store"
	"github.com/nvandessel/eigentrust/internal/visualization"
)

// defaultTop is the number of ranked peers returned when a tool caller does
// not ask for a specific count.
const defaultTop = 10

// registerTools registers all eigentrust MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "eigentrust_run",
		Description: "Generate a peer network, simulate interactions and compute EigenTrust global trust (or rerun a stored simulation)",
	}, s.handleRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "eigentrust_info",
		Description: "Summarize a stored simulation: counts, success rate, convergence and top peers",
	}, s.handleInfo)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "eigentrust_list",
		Description: "List stored simulations, newest first",
	}, s.handleList)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "eigentrust_graph",
		Description: "Render the trust network of a stored simulation in DOT (Graphviz) or JSON format",
	}, s.handleGraph)
}

// handleRun implements the eigentrust_run tool.
func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ RunOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := map[string]interface{}{
			"peers":          args.Peers,
			"interactions":   args.Interactions,
			"preset":         args.Preset,
			"preferential":   args.Preferential,
			"max_iterations": args.MaxIterations,
			"epsilon":        args.Epsilon,
			"alpha":          args.Alpha,
			"norm":           args.Norm,
			"track_history":  args.TrackHistory,
			"top":            args.Top,
			"save":           args.Save,
		}
		if args.SimulationID != "" {
			params["simulation_id"] = args.SimulationID
		}
		if args.Seed != nil {
			params["seed"] = *args.Seed
		}
		s.auditTool("eigentrust_run", start, retErr, sanitizeToolParams(params))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "eigentrust_run"); err != nil {
		return nil, RunOutput{}, err
	}

	cfg := *s.defaults
	applyRunOverrides(&cfg.Algorithm.MaxIterations, args.MaxIterations)
	applyRunOverrides(&cfg.Simulation.Peers, args.Peers)
	applyRunOverrides(&cfg.Simulation.Interactions, args.Interactions)
	if args.Epsilon > 0 {
		cfg.Algorithm.Epsilon = args.Epsilon
	}
	if args.Alpha > 0 {
		cfg.Algorithm.Alpha = args.Alpha
	}
	if args.Norm != "" {
		cfg.Algorithm.Norm = args.Norm
	}
	if args.Preset != "" {
		cfg.Simulation.Preset = args.Preset
	}
	cfg.Algorithm.TrackHistory = cfg.Algorithm.TrackHistory || args.TrackHistory
	cfg.Simulation.PreferentialAttachment = cfg.Simulation.PreferentialAttachment || args.Preferential
	if args.Seed != nil {
		seed := *args.Seed
		cfg.Simulation.Seed = &seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, RunOutput{}, err
	}
	rc, err := cfg.RunConfig()
	if err != nil {
		return nil, RunOutput{}, err
	}

	var sim *simulation.Simulation
	if args.SimulationID != "" {
		sim, err = s.loadSimulation(ctx, args.SimulationID)
		if err != nil {
			return nil, RunOutput{}, err
		}
	} else {
		sim, err = s.generate(&cfg.Simulation)
		if err != nil {
			return nil, RunOutput{}, err
		}
	}
	sim.SetLogger(s.logger, nil)

	runStart := time.Now()
	scores, err := sim.RunAlgorithm(rc)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveFailure(time.Since(runStart))
		}
		return nil, RunOutput{}, fmt.Errorf("run eigentrust: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveRun(scores, len(sim.Peers()), len(sim.Interactions()), time.Since(runStart))
	}

	top := args.Top
	if top <= 0 {
		top = defaultTop
	}
	out := RunOutput{
		SimulationID: sim.ID(),
		Iterations:   scores.Iterations(),
		Converged:    scores.Converged(),
		FinalDelta:   scores.FinalDelta(),
		TopPeers:     sim.Ranking(top),
	}

	if args.Save {
		if err := s.store.Save(ctx, sim.Record()); err != nil {
			return nil, RunOutput{}, fmt.Errorf("save simulation: %w", err)
		}
		out.Saved = true
	}

	verb := "converged"
	if !out.Converged {
		verb = "stopped without converging"
	}
	out.Message = fmt.Sprintf("Simulation %s %s after %d iterations (delta %.2e) over %d peers",
		out.SimulationID, verb, out.Iterations, out.FinalDelta, len(sim.Peers()))
	return nil, out, nil
}

// applyRunOverrides replaces *dst with v when the caller supplied one.
func applyRunOverrides(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// generate creates a fresh simulation from the simulation settings.
func (s *Server) generate(cfg *config.SimulationConfig) (*simulation.Simulation, error) {
	preset, err := simulation.ParsePreset(cfg.Preset)
	if err != nil {
		return nil, err
	}
	var opts []simulation.Option
	if cfg.Seed != nil {
		opts = append(opts, simulation.WithSeed(*cfg.Seed))
	}
	sim := simulation.New(opts...)
	sim.SetLogger(s.logger, nil)
	if err := sim.GeneratePeers(preset, cfg.Peers); err != nil {
		return nil, fmt.Errorf("generate peers: %w", err)
	}
	if _, err := sim.SimulateInteractions(cfg.Interactions, simulation.SimulateOptions{
		Preferential: cfg.PreferentialAttachment,
	}); err != nil {
		return nil, fmt.Errorf("simulate interactions: %w", err)
	}
	return sim, nil
}

// loadSimulation restores a stored simulation by id.
func (s *Server) loadSimulation(ctx context.Context, id string) (*simulation.Simulation, error) {
	if id == "" {
		return nil, fmt.Errorf("simulation_id is required")
	}
	rec, err := s.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("simulation %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load simulation: %w", err)
	}
	return simulation.FromRecord(rec)
}

// handleInfo implements the eigentrust_info tool.
func (s *Server) handleInfo(ctx context.Context, req *sdk.CallToolRequest, args InfoInput) (_ *sdk.CallToolResult, _ InfoOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("eigentrust_info", start, retErr, sanitizeToolParams(map[string]interface{}{
			"simulation_id": args.SimulationID,
			"top":           args.Top,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "eigentrust_info"); err != nil {
		return nil, InfoOutput{}, err
	}

	sim, err := s.loadSimulation(ctx, args.SimulationID)
	if err != nil {
		return nil, InfoOutput{}, err
	}
	top := args.Top
	if top <= 0 {
		top = defaultTop
	}
	return nil, InfoOutput{Summary: sim.Summarize(top)}, nil
}

// handleList implements the eigentrust_list tool.
func (s *Server) handleList(ctx context.Context, req *sdk.CallToolRequest, args ListInput) (_ *sdk.CallToolResult, _ ListOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("eigentrust_list", start, retErr, sanitizeToolParams(map[string]interface{}{
			"limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "eigentrust_list"); err != nil {
		return nil, ListOutput{}, err
	}

	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, ListOutput{}, fmt.Errorf("list simulations: %w", err)
	}
	if args.Limit > 0 && len(entries) > args.Limit {
		entries = entries[:args.Limit]
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	return nil, ListOutput{Simulations: entries, Count: len(entries)}, nil
}

// handleGraph implements the eigentrust_graph tool.
func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("eigentrust_graph", start, retErr, sanitizeToolParams(map[string]interface{}{
			"simulation_id":  args.SimulationID,
			"format":         args.Format,
			"edge_threshold": args.EdgeThreshold,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "eigentrust_graph"); err != nil {
		return nil, GraphOutput{}, err
	}

	format := visualization.FormatJSON
	if args.Format != "" {
		f, err := visualization.ParseFormat(args.Format)
		if err != nil {
			return nil, GraphOutput{}, err
		}
		format = f
	}

	fallback, err := matrix.ParseFallback(s.defaults.Algorithm.ZeroTrustFallback)
	if err != nil {
		return nil, GraphOutput{}, err
	}
	opts := visualization.GraphOptions{
		EdgeThreshold: visualization.DefaultEdgeThreshold,
		Fallback:      fallback,
	}
	if args.EdgeThreshold != 0 {
		opts.EdgeThreshold = args.EdgeThreshold
	}

	sim, err := s.loadSimulation(ctx, args.SimulationID)
	if err != nil {
		return nil, GraphOutput{}, err
	}
	g, err := visualization.BuildGraph(sim, opts)
	if err != nil {
		return nil, GraphOutput{}, fmt.Errorf("build graph: %w", err)
	}

	out := GraphOutput{
		Format:    string(format),
		Graph:     g,
		NodeCount: g.NodeCount,
		EdgeCount: g.EdgeCount,
	}
	if format == visualization.FormatDOT {
		dot, err := visualization.RenderDOT(sim, opts)
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("render DOT: %w", err)
		}
		out.Graph = dot
	}
	return nil, out, nil
}
