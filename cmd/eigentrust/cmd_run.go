package main

import (
	"context"
	"fmt"
	"io"

	"github.com/nvandessel/eigentrust/internal/config"
	"github.com/nvandessel/eigentrust/internal/simulation"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run EigenTrust on a simulation",
		Long: `Compute global trust for every peer of a simulation.

The power iteration t = (1-alpha) C^T t + alpha p starts from the uniform
pre-trust vector and stops once the distance between two iterates drops
below epsilon, or after max-iterations. Running out of iterations is
reported, not treated as an error.

Examples:
  eigentrust run
  eigentrust run --track-history --epsilon 1e-6 --norm l2 --top 5
  eigentrust run --save --store sqlite:///tmp/sims.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyAlgorithmFlags(cmd, cfg)
			rc, err := cfg.RunConfig()
			if err != nil {
				return err
			}

			input, _ := cmd.Flags().GetString("input")
			sim, err := readSimulation(cmd, input)
			if err != nil {
				return err
			}
			tracer := newTracer(cfg)
			defer tracer.Close()
			sim.SetLogger(newLogger(cmd, cfg), tracer)

			scores, err := runAlgorithm(sim, cfg, rc)
			if err != nil {
				return err
			}

			output := outputOrInput(cmd)
			if output != "-" {
				if err := writeSimulation(cmd, sim, output); err != nil {
					return err
				}
			}

			save, _ := cmd.Flags().GetBool("save")
			if save {
				st, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.Save(context.Background(), sim.Record()); err != nil {
					return fmt.Errorf("failed to save simulation: %w", err)
				}
			}

			top, _ := cmd.Flags().GetInt("top")
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"simulation_id": sim.ID(),
					"iterations":    scores.Iterations(),
					"converged":     scores.Converged(),
					"final_delta":   scores.FinalDelta(),
					"top_peers":     sim.Ranking(top),
					"saved":         save,
				})
			}

			w := cmd.OutOrStdout()
			if scores.Converged() {
				fmt.Fprintf(w, "Converged after %d iterations (delta %.2e < %g)\n",
					scores.Iterations(), scores.FinalDelta(), scores.Epsilon())
			} else {
				fmt.Fprintf(w, "Did not converge within %d iterations (delta %.2e, epsilon %g)\n",
					scores.Iterations(), scores.FinalDelta(), scores.Epsilon())
			}
			fmt.Fprintln(w)
			printRanking(w, sim.Ranking(top))
			if save {
				fmt.Fprintf(w, "\nSaved simulation %s\n", sim.ID())
			}
			return nil
		},
	}

	addAlgorithmFlags(cmd)
	cmd.Flags().StringP("input", "i", defaultSimulationFile, "Simulation file (- for stdin)")
	cmd.Flags().StringP("output", "o", "", "Output file (default: overwrite input, - to skip)")
	cmd.Flags().Int("top", 10, "Number of top peers to show (0 = all)")
	cmd.Flags().Bool("save", false, "Also save the simulation to the store")

	return cmd
}

// addAlgorithmFlags registers the power iteration flags shared by run and all.
func addAlgorithmFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-iterations", 100, "Maximum power iterations")
	cmd.Flags().Float64("epsilon", 0.001, "Convergence threshold")
	cmd.Flags().Float64("alpha", 0.15, "Pre-trust weight in [0, 1]")
	cmd.Flags().String("norm", "l1", "Delta norm: l1 or l2")
	cmd.Flags().Bool("track-history", false, "Record a snapshot of every iteration")
	cmd.Flags().String("fallback", "interacted", "Trust of peers whose every interaction failed: interacted or cold_start")
}

// applyAlgorithmFlags copies explicitly set algorithm flags into cfg.
func applyAlgorithmFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("max-iterations") {
		cfg.Algorithm.MaxIterations, _ = f.GetInt("max-iterations")
	}
	if f.Changed("epsilon") {
		cfg.Algorithm.Epsilon, _ = f.GetFloat64("epsilon")
	}
	if f.Changed("alpha") {
		cfg.Algorithm.Alpha, _ = f.GetFloat64("alpha")
	}
	if f.Changed("norm") {
		cfg.Algorithm.Norm, _ = f.GetString("norm")
	}
	if f.Changed("track-history") {
		cfg.Algorithm.TrackHistory, _ = f.GetBool("track-history")
	}
	if f.Changed("fallback") {
		cfg.Algorithm.ZeroTrustFallback, _ = f.GetString("fallback")
	}
}

// printRanking writes a ranked peer table.
func printRanking(w io.Writer, ranking []simulation.PeerScore) {
	if len(ranking) == 0 {
		fmt.Fprintln(w, "No peers have global trust yet. Run 'eigentrust run' first.")
		return
	}
	fmt.Fprintf(w, "%-4s  %-36s  %-16s  %10s  %10s  %12s\n",
		"RANK", "PEER", "NAME", "COMPETENCE", "MALICIOUS", "GLOBAL TRUST")
	for i, p := range ranking {
		fmt.Fprintf(w, "%-4d  %-36s  %-16s  %10.3f  %10.3f  %12.6f\n",
			i+1, p.PeerID, p.DisplayName, p.Competence, p.Maliciousness, p.GlobalTrust)
	}
}
