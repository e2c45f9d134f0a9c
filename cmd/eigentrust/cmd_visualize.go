package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nvandessel/eigentrust/internal/config"
	"github.com/nvandessel/eigentrust/internal/simulation"
	"github.com/nvandessel/eigentrust/internal/visualization"
	"github.com/spf13/cobra"
)

func newVisualizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visualize",
		Short: "Render a simulation as a graph, heat map or convergence table",
		Long: `Render a simulation in text formats.

  matrix       terminal heat map of the normalized trust matrix
  graph        trust network as Graphviz DOT or JSON
  convergence  per-iteration table or CSV (requires run --track-history)

Examples:
  eigentrust visualize matrix
  eigentrust visualize graph --format dot -o trust.dot
  dot -Tpng trust.dot -o trust.png
  eigentrust visualize convergence --format csv -o convergence.csv`,
	}

	cmd.PersistentFlags().StringP("input", "i", defaultSimulationFile, "Simulation file (- for stdin)")
	cmd.PersistentFlags().StringP("output", "o", "", "Output file (default: stdout)")

	cmd.AddCommand(
		newVisualizeMatrixCmd(),
		newVisualizeGraphCmd(),
		newVisualizeConvergenceCmd(),
	)
	return cmd
}

func newVisualizeMatrixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Render the trust matrix as a heat map",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sim, err := loadForVisualize(cmd)
			if err != nil {
				return err
			}
			content, err := renderMatrix(cmd, cfg, sim)
			if err != nil {
				return err
			}
			return writeOutput(cmd, content)
		},
	}
	cmd.Flags().Bool("annotate", false, "Show cell values (default: only for 20 peers or fewer)")
	cmd.Flags().String("title", "", "Heat map title")
	return cmd
}

func newVisualizeGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the trust network as DOT or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sim, err := loadForVisualize(cmd)
			if err != nil {
				return err
			}
			formatStr, _ := cmd.Flags().GetString("format")
			format, err := visualization.ParseFormat(formatStr)
			if err != nil {
				return err
			}
			content, err := renderGraph(cmd, cfg, sim, format)
			if err != nil {
				return err
			}
			return writeOutput(cmd, content)
		},
	}
	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.Flags().Float64("threshold", visualization.DefaultEdgeThreshold, "Minimum trust for an edge to be drawn")
	return cmd
}

func newVisualizeConvergenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convergence",
		Short: "Render the convergence history as a table or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sim, err := loadForVisualize(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			top, _ := cmd.Flags().GetInt("top")
			content, err := renderConvergence(sim, format, top, cfg.Algorithm.Epsilon)
			if err != nil {
				return err
			}
			return writeOutput(cmd, content)
		},
	}
	cmd.Flags().String("format", "table", "Output format: table or csv")
	cmd.Flags().Int("top", visualization.DefaultTopN, "Number of top peers to track")
	return cmd
}

func loadForVisualize(cmd *cobra.Command) (*config.Config, *simulation.Simulation, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	input, _ := cmd.Flags().GetString("input")
	sim, err := readSimulation(cmd, input)
	if err != nil {
		return nil, nil, err
	}
	return cfg, sim, nil
}

func renderMatrix(cmd *cobra.Command, cfg *config.Config, sim *simulation.Simulation) (string, error) {
	rc, err := cfg.RunConfig()
	if err != nil {
		return "", err
	}
	m, err := sim.TrustMatrix(rc.Fallback)
	if err != nil {
		return "", fmt.Errorf("failed to build trust matrix: %w", err)
	}
	opts := visualization.HeatmapOptions{}
	if cmd.Flags().Changed("annotate") {
		annotate, _ := cmd.Flags().GetBool("annotate")
		opts.Annotate = &annotate
	}
	opts.Title, _ = cmd.Flags().GetString("title")
	return visualization.RenderHeatmap(m, opts), nil
}

func renderGraph(cmd *cobra.Command, cfg *config.Config, sim *simulation.Simulation, format visualization.Format) (string, error) {
	rc, err := cfg.RunConfig()
	if err != nil {
		return "", err
	}
	opts := visualization.GraphOptions{
		EdgeThreshold: visualization.DefaultEdgeThreshold,
		Fallback:      rc.Fallback,
	}
	if cmd.Flags().Lookup("threshold") != nil {
		opts.EdgeThreshold, _ = cmd.Flags().GetFloat64("threshold")
	}

	if format == visualization.FormatDOT {
		return visualization.RenderDOT(sim, opts)
	}
	g, err := visualization.BuildGraph(sim, opts)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := writeJSON(&b, g); err != nil {
		return "", err
	}
	return b.String(), nil
}

func renderConvergence(sim *simulation.Simulation, format string, top int, epsilon float64) (string, error) {
	history := sim.History()
	var (
		content string
		err     error
	)
	switch format {
	case "table":
		content, err = visualization.RenderConvergenceTable(history, top, epsilon)
	case "csv":
		var b strings.Builder
		err = visualization.WriteConvergenceCSV(&b, history, top)
		content = b.String()
	default:
		return "", fmt.Errorf("unknown format %q (use 'table' or 'csv')", format)
	}
	if errors.Is(err, visualization.ErrNoHistory) {
		return "", fmt.Errorf("%w: rerun with 'eigentrust run --track-history'", err)
	}
	return content, err
}

// writeOutput writes content to --output, or stdout when unset.
func writeOutput(cmd *cobra.Command, content string) error {
	output, _ := cmd.Flags().GetString("output")
	if output == "" || output == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.WriteFile(output, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
	return nil
}
