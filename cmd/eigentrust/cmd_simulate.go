package main

import (
	"fmt"

	"github.com/nvandessel/eigentrust/internal/simulation"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate interactions between the peers of a simulation",
		Long: `Generate interactions and append them to a simulation file.

Each interaction picks a random requester and a provider, either uniformly
or by preferential attachment (providers with more successes are picked
more often). The outcome depends on the provider's competence and
maliciousness plus Gaussian noise.

Examples:
  eigentrust simulate --interactions 500
  eigentrust simulate -i net.json --preferential --update-local-trust`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interactions") {
				cfg.Simulation.Interactions, _ = cmd.Flags().GetInt("interactions")
			}
			if cmd.Flags().Changed("preferential") {
				cfg.Simulation.PreferentialAttachment, _ = cmd.Flags().GetBool("preferential")
			}
			if cfg.Simulation.Interactions < 0 {
				return fmt.Errorf("interactions must be non-negative, got %d", cfg.Simulation.Interactions)
			}
			updateLocal, _ := cmd.Flags().GetBool("update-local-trust")

			input, _ := cmd.Flags().GetString("input")
			sim, err := readSimulation(cmd, input)
			if err != nil {
				return err
			}
			sim.SetLogger(newLogger(cmd, cfg), nil)

			generated, err := sim.SimulateInteractions(cfg.Simulation.Interactions, simulation.SimulateOptions{
				Preferential:     cfg.Simulation.PreferentialAttachment,
				UpdateLocalTrust: updateLocal,
			})
			if err != nil {
				return fmt.Errorf("failed to simulate interactions: %w", err)
			}

			successes := 0
			for _, in := range generated {
				if in.Succeeded() {
					successes++
				}
			}

			output := outputOrInput(cmd)
			if err := writeSimulation(cmd, sim, output); err != nil {
				return err
			}
			if output == "-" {
				return nil
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"simulation_id": sim.ID(),
					"generated":     len(generated),
					"successes":     successes,
					"total":         len(sim.Interactions()),
					"output":        output,
				})
			}
			mode := "uniform"
			if cfg.Simulation.PreferentialAttachment {
				mode = "preferential"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Simulated %d %s interactions (%d successful), %d total -> %s\n",
				len(generated), mode, successes, len(sim.Interactions()), output)
			return nil
		},
	}

	cmd.Flags().StringP("input", "i", defaultSimulationFile, "Simulation file (- for stdin)")
	cmd.Flags().StringP("output", "o", "", "Output file (default: overwrite input)")
	cmd.Flags().Int("interactions", 100, "Number of interactions to simulate")
	cmd.Flags().Bool("preferential", false, "Select providers by past successes")
	cmd.Flags().Bool("update-local-trust", false, "Feed every outcome back into the requester's local trust")

	return cmd
}
