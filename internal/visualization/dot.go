// Package visualization renders trust networks, trust matrices and
// convergence histories as text formats.
package visualization

import (
	"fmt"
	"strings"

	"github.com/nvandessel/eigentrust/internal/matrix"
	"github.com/nvandessel/eigentrust/internal/simulation"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat accepts "dot" or "json".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatDOT:
		return FormatDOT, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown graph format %q (want dot or json)", s)
	}
}

// DefaultEdgeThreshold hides edges carrying less normalized trust than this.
const DefaultEdgeThreshold = 0.01

// GraphOptions controls graph rendering.
type GraphOptions struct {
	// EdgeThreshold is the minimum trust value for an edge to be drawn.
	EdgeThreshold float64

	// Fallback selects the zero-trust policy used to build the matrix.
	Fallback matrix.Fallback
}

// DefaultGraphOptions returns the default rendering options.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		EdgeThreshold: DefaultEdgeThreshold,
		Fallback:      matrix.FallbackInteracted,
	}
}

// GraphNode is one peer in a rendered graph.
type GraphNode struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Competence    float64  `json:"competence"`
	Maliciousness float64  `json:"maliciousness"`
	GlobalTrust   *float64 `json:"global_trust,omitempty"`
	Color         string   `json:"color"`
}

// GraphEdge is a directed trust edge from Source to Target.
type GraphEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// Graph is the JSON graph representation.
type Graph struct {
	Nodes     []GraphNode `json:"nodes"`
	Edges     []GraphEdge `json:"edges"`
	NodeCount int         `json:"node_count"`
	EdgeCount int         `json:"edge_count"`
}

// BuildGraph collects the nodes and the above-threshold edges of the
// simulation's normalized trust matrix.
func BuildGraph(sim *simulation.Simulation, opts GraphOptions) (Graph, error) {
	if opts.EdgeThreshold < 0 {
		return Graph{}, fmt.Errorf("edge threshold must be non-negative, got %g", opts.EdgeThreshold)
	}
	m, err := sim.TrustMatrix(opts.Fallback)
	if err != nil {
		return Graph{}, fmt.Errorf("build trust matrix: %w", err)
	}

	peers := sim.Peers()
	g := Graph{
		Nodes: make([]GraphNode, 0, len(peers)),
		Edges: []GraphEdge{},
	}
	for _, p := range peers {
		node := GraphNode{
			ID:            p.ID,
			Name:          p.DisplayName,
			Competence:    p.Competence(),
			Maliciousness: p.Maliciousness(),
			Color:         maliciousnessColor(p.Maliciousness()),
		}
		if p.GlobalTrust != nil {
			v := *p.GlobalTrust
			node.GlobalTrust = &v
		}
		g.Nodes = append(g.Nodes, node)
	}

	ids := m.PeerIDs()
	for i := range ids {
		for j := range ids {
			if i == j {
				continue
			}
			if w := m.At(i, j); w > opts.EdgeThreshold {
				g.Edges = append(g.Edges, GraphEdge{Source: ids[i], Target: ids[j], Weight: w})
			}
		}
	}

	g.NodeCount = len(g.Nodes)
	g.EdgeCount = len(g.Edges)
	return g, nil
}

// RenderDOT produces a Graphviz DOT representation of the trust network.
// Node colour runs from green (altruistic) to red (malicious), node width
// grows with competence and edge pen width with trust.
func RenderDOT(sim *simulation.Simulation, opts GraphOptions) (string, error) {
	g, err := BuildGraph(sim, opts)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("digraph eigentrust {\n")
	b.WriteString("  layout=circo;\n")
	b.WriteString(fmt.Sprintf("  label=%q;\n", fmt.Sprintf("Trust Network Graph (%d peers)", g.NodeCount)))
	b.WriteString("  node [shape=circle, style=filled, fontname=\"Helvetica\", fontsize=10];\n")
	b.WriteString("  edge [color=gray40, arrowsize=0.6];\n\n")

	for _, n := range g.Nodes {
		tooltip := fmt.Sprintf("competence=%.2f maliciousness=%.2f", n.Competence, n.Maliciousness)
		if n.GlobalTrust != nil {
			tooltip += fmt.Sprintf(" trust=%.4f", *n.GlobalTrust)
		}
		b.WriteString(fmt.Sprintf("  %q [label=%q, fillcolor=%q, width=\"%.2f\", tooltip=%q];\n",
			n.ID, truncate(n.Name, 24), n.Color, 0.5+n.Competence, tooltip))
	}
	b.WriteString("\n")

	for _, e := range g.Edges {
		b.WriteString(fmt.Sprintf("  %q -> %q [penwidth=\"%.2f\", tooltip=\"%.4f\"];\n",
			e.Source, e.Target, 0.5+4*e.Weight, e.Weight))
	}

	b.WriteString("}\n")
	return b.String(), nil
}

// maliciousnessColor interpolates from green (0) to red (1).
func maliciousnessColor(maliciousness float64) string {
	m := maliciousness
	if m < 0 {
		m = 0
	} else if m > 1 {
		m = 1
	}
	r := int(0x2e + m*(0xd7-0x2e))
	g := int(0xcc + m*(0x30-0xcc))
	b := int(0x71 + m*(0x27-0x71))
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
