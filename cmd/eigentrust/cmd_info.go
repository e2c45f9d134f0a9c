package main

import (
	"context"
	"fmt"
	"io"

	"github.com/nvandessel/eigentrust/internal/simulation"
	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show a summary of a simulation",
		Long: `Show peer and interaction counts, the success rate, convergence and the
top peers of a simulation file or of a stored simulation.

Examples:
  eigentrust info
  eigentrust info --format json --top 3
  eigentrust info --id 1b4e28ba-2fa1-41d2-883f-0016d3cca427`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				format = "json"
			}
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (use 'text' or 'json')", format)
			}

			sim, err := loadSimulationArg(cmd)
			if err != nil {
				return err
			}

			top, _ := cmd.Flags().GetInt("top")
			sum := sim.Summarize(top)
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), sum)
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}

	cmd.Flags().StringP("input", "i", defaultSimulationFile, "Simulation file (- for stdin)")
	cmd.Flags().String("id", "", "Load a stored simulation instead of a file")
	cmd.Flags().String("format", "text", "Output format: text or json")
	cmd.Flags().Int("top", 5, "Number of top peers to show")

	return cmd
}

// loadSimulationArg loads the simulation named by --id from the store, or
// the --input file otherwise.
func loadSimulationArg(cmd *cobra.Command) (*simulation.Simulation, error) {
	id, _ := cmd.Flags().GetString("id")
	if id == "" {
		input, _ := cmd.Flags().GetString("input")
		return readSimulation(cmd, input)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	rec, err := st.Load(context.Background(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load simulation %s: %w", id, err)
	}
	return simulation.FromRecord(rec)
}

func printSummary(w io.Writer, sum simulation.Summary) {
	fmt.Fprintf(w, "Simulation:    %s\n", sum.SimulationID)
	fmt.Fprintf(w, "Created:       %s\n", sum.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "State:         %s\n", sum.State)
	if sum.RandomSeed != nil {
		fmt.Fprintf(w, "Seed:          %d\n", *sum.RandomSeed)
	}
	fmt.Fprintf(w, "Peers:         %d\n", sum.PeerCount)
	fmt.Fprintf(w, "Interactions:  %d (%d successful, %.1f%%)\n",
		sum.InteractionCount, sum.SuccessCount, sum.SuccessRate*100)
	if sum.Iterations > 0 {
		fmt.Fprintf(w, "Iterations:    %d (final delta %.2e)\n", sum.Iterations, sum.FinalDelta)
	}
	if len(sum.TopPeers) > 0 {
		fmt.Fprintln(w)
		printRanking(w, sum.TopPeers)
	}
}
