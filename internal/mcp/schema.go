// Package mcp provides an MCP (Model Context Protocol) server for eigentrust.
package mcp

import (
	"github.com/nvandessel/eigentrust/internal/simulation"
	"github.com/nvandessel/eigentrust/internal/store"
)

// RunInput defines the input for the eigentrust_run tool. Zero values fall
// back to the server's configured defaults.
type RunInput struct {
	SimulationID  string  `json:"simulation_id,omitempty" jsonschema:"Rerun a stored simulation instead of generating a new one"`
	Peers         int     `json:"peers,omitempty" jsonschema:"Number of peers to generate (2-500)"`
	Interactions  int     `json:"interactions,omitempty" jsonschema:"Number of interactions to simulate"`
	Preset        string  `json:"preset,omitempty" jsonschema:"Network preset: random, uniform or adversarial"`
	Preferential  bool    `json:"preferential,omitempty" jsonschema:"Select providers by past successes instead of uniformly"`
	Seed          *int64  `json:"seed,omitempty" jsonschema:"Random seed for a reproducible network"`
	MaxIterations int     `json:"max_iterations,omitempty" jsonschema:"Power iteration budget"`
	Epsilon       float64 `json:"epsilon,omitempty" jsonschema:"Convergence threshold"`
	Alpha         float64 `json:"alpha,omitempty" jsonschema:"Pre-trust weight in [0, 1]"`
	Norm          string  `json:"norm,omitempty" jsonschema:"Delta norm: l1 or l2"`
	TrackHistory  bool    `json:"track_history,omitempty" jsonschema:"Record a snapshot per iteration"`
	Top           int     `json:"top,omitempty" jsonschema:"Number of top peers to return (default 10)"`
	Save          bool    `json:"save,omitempty" jsonschema:"Persist the simulation to the store"`
}

// RunOutput defines the output for the eigentrust_run tool.
type RunOutput struct {
	SimulationID string                 `json:"simulation_id"`
	Iterations   int                    `json:"iterations"`
	Converged    bool                   `json:"converged"`
	FinalDelta   float64                `json:"final_delta"`
	TopPeers     []simulation.PeerScore `json:"top_peers"`
	Saved        bool                   `json:"saved"`
	Message      string                 `json:"message"`
}

// InfoInput defines the input for the eigentrust_info tool.
type InfoInput struct {
	SimulationID string `json:"simulation_id" jsonschema:"ID of a stored simulation"`
	Top          int    `json:"top,omitempty" jsonschema:"Number of top peers to include (default 10)"`
}

// InfoOutput defines the output for the eigentrust_info tool.
type InfoOutput struct {
	Summary simulation.Summary `json:"summary"`
}

// ListInput defines the input for the eigentrust_list tool.
type ListInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of simulations to return (0 = all)"`
}

// ListOutput defines the output for the eigentrust_list tool.
type ListOutput struct {
	Simulations []store.Entry `json:"simulations"`
	Count       int           `json:"count"`
}

// GraphInput defines the input for the eigentrust_graph tool.
type GraphInput struct {
	SimulationID  string  `json:"simulation_id" jsonschema:"ID of a stored simulation"`
	Format        string  `json:"format,omitempty" jsonschema:"Output format: dot or json (default json)"`
	EdgeThreshold float64 `json:"edge_threshold,omitempty" jsonschema:"Minimum trust for an edge to be drawn (default 0.01)"`
}

// GraphOutput defines the output for the eigentrust_graph tool.
type GraphOutput struct {
	Format    string      `json:"format"`
	Graph     interface{} `json:"graph"`
	NodeCount int         `json:"node_count"`
	EdgeCount int         `json:"edge_count"`
}
