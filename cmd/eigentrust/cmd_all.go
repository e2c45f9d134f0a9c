package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/eigentrust/internal/simulation"
	"github.com/nvandessel/eigentrust/internal/store"
	"github.com/nvandessel/eigentrust/internal/visualization"
	"github.com/spf13/cobra"
)

// Files written by the all command.
const (
	allSimulationFile  = "simulation.json"
	allGraphDOTFile    = "trust_graph.dot"
	allGraphJSONFile   = "trust_graph.json"
	allHeatmapFile     = "trust_matrix.txt"
	allConvergenceFile = "convergence.txt"
	allConvergenceCSV  = "convergence.csv"
)

func newAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Create, simulate, run and render in one step",
		Long: `Run the whole pipeline and write every artifact into one directory:

  simulation.json   the complete simulation state
  trust_graph.dot   Graphviz trust network
  trust_graph.json  JSON trust network
  trust_matrix.txt  heat map of the trust matrix
  convergence.txt   per-iteration convergence table
  convergence.csv   per-iteration convergence data

Examples:
  eigentrust all --peers 30 --interactions 1000 --preset adversarial --seed 7
  eigentrust all -d results --preferential`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("peers") {
				cfg.Simulation.Peers, _ = f.GetInt("peers")
			}
			if f.Changed("interactions") {
				cfg.Simulation.Interactions, _ = f.GetInt("interactions")
			}
			if f.Changed("preset") {
				cfg.Simulation.Preset, _ = f.GetString("preset")
			}
			if f.Changed("preferential") {
				cfg.Simulation.PreferentialAttachment, _ = f.GetBool("preferential")
			}
			if f.Changed("seed") {
				seed, _ := f.GetInt64("seed")
				cfg.Simulation.Seed = &seed
			}
			applyAlgorithmFlags(cmd, cfg)
			cfg.Algorithm.TrackHistory = true
			if err := cfg.Validate(); err != nil {
				return err
			}
			rc, err := cfg.RunConfig()
			if err != nil {
				return err
			}
			preset, err := simulation.ParsePreset(cfg.Simulation.Preset)
			if err != nil {
				return err
			}

			dir, _ := f.GetString("output-dir")
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			var opts []simulation.Option
			if cfg.Simulation.Seed != nil {
				opts = append(opts, simulation.WithSeed(*cfg.Simulation.Seed))
			}
			sim := simulation.New(opts...)
			tracer := newTracer(cfg)
			defer tracer.Close()
			logger := newLogger(cmd, cfg)
			sim.SetLogger(logger, tracer)

			if err := sim.GeneratePeers(preset, cfg.Simulation.Peers); err != nil {
				return fmt.Errorf("failed to generate peers: %w", err)
			}
			if _, err := sim.SimulateInteractions(cfg.Simulation.Interactions, simulation.SimulateOptions{
				Preferential: cfg.Simulation.PreferentialAttachment,
			}); err != nil {
				return fmt.Errorf("failed to simulate interactions: %w", err)
			}
			scores, err := runAlgorithm(sim, cfg, rc)
			if err != nil {
				return err
			}

			if err := store.WriteJSONFile(filepath.Join(dir, allSimulationFile), sim.Record()); err != nil {
				return err
			}

			top, _ := f.GetInt("top")
			artifacts := []struct {
				name   string
				render func() (string, error)
			}{
				{allGraphDOTFile, func() (string, error) { return renderGraph(cmd, cfg, sim, visualization.FormatDOT) }},
				{allGraphJSONFile, func() (string, error) { return renderGraph(cmd, cfg, sim, visualization.FormatJSON) }},
				{allHeatmapFile, func() (string, error) { return renderMatrix(cmd, cfg, sim) }},
				{allConvergenceFile, func() (string, error) {
					return renderConvergence(sim, "table", visualization.DefaultTopN, cfg.Algorithm.Epsilon)
				}},
				{allConvergenceCSV, func() (string, error) {
					return renderConvergence(sim, "csv", visualization.DefaultTopN, cfg.Algorithm.Epsilon)
				}},
			}
			for _, a := range artifacts {
				content, err := a.render()
				if err != nil {
					return fmt.Errorf("failed to render %s: %w", a.name, err)
				}
				if err := os.WriteFile(filepath.Join(dir, a.name), []byte(content), 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", a.name, err)
				}
				logger.Debug("wrote artifact", "file", a.name)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"simulation_id": sim.ID(),
					"iterations":    scores.Iterations(),
					"converged":     scores.Converged(),
					"final_delta":   scores.FinalDelta(),
					"top_peers":     sim.Ranking(top),
					"output_dir":    dir,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Simulation %s: %d peers, %d interactions, %d iterations (converged: %v)\n\n",
				sim.ID(), len(sim.Peers()), len(sim.Interactions()), scores.Iterations(), scores.Converged())
			printRanking(w, sim.Ranking(top))
			fmt.Fprintf(w, "\nArtifacts written to %s\n", dir)
			return nil
		},
	}

	cmd.Flags().StringP("output-dir", "d", "eigentrust-output", "Directory for all artifacts")
	cmd.Flags().Int("peers", 10, "Number of peers (2-500)")
	cmd.Flags().Int("interactions", 100, "Number of interactions to simulate")
	cmd.Flags().String("preset", "random", "Network preset: random, uniform or adversarial")
	cmd.Flags().Bool("preferential", false, "Select providers by past successes")
	cmd.Flags().Int64("seed", 0, "Random seed for a reproducible simulation")
	cmd.Flags().Int("top", 10, "Number of top peers to show")
	cmd.Flags().Float64("threshold", visualization.DefaultEdgeThreshold, "Minimum trust for a graph edge")
	addAlgorithmFlags(cmd)

	return cmd
}
