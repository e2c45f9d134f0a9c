package main

import (
	"fmt"

	"github.com/nvandessel/eigentrust/internal/simulation"
	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new simulation with generated peers",
		Long: `Create a simulation and generate its peers from a network preset.

Presets:
  random       competence and maliciousness drawn uniformly from [0, 1]
  uniform      every peer at 0.5 / 0.5
  adversarial  30% good peers, 30% malicious peers, the rest neutral

Examples:
  eigentrust create --peers 20 --preset adversarial --seed 42
  eigentrust create -o net.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("peers") {
				cfg.Simulation.Peers, _ = cmd.Flags().GetInt("peers")
			}
			if cmd.Flags().Changed("preset") {
				cfg.Simulation.Preset, _ = cmd.Flags().GetString("preset")
			}
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetInt64("seed")
				cfg.Simulation.Seed = &seed
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			preset, err := simulation.ParsePreset(cfg.Simulation.Preset)
			if err != nil {
				return err
			}

			var opts []simulation.Option
			if cfg.Simulation.Seed != nil {
				opts = append(opts, simulation.WithSeed(*cfg.Simulation.Seed))
			}
			sim := simulation.New(opts...)
			sim.SetLogger(newLogger(cmd, cfg), nil)
			if err := sim.GeneratePeers(preset, cfg.Simulation.Peers); err != nil {
				return fmt.Errorf("failed to generate peers: %w", err)
			}

			output, _ := cmd.Flags().GetString("output")
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
					"peers":         len(sim.Peers()),
					"preset":        preset,
					"output":        output,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created simulation %s with %d %s peers -> %s\n",
				sim.ID(), len(sim.Peers()), preset, output)
			return nil
		},
	}

	cmd.Flags().Int("peers", 10, "Number of peers (2-500)")
	cmd.Flags().String("preset", "random", "Network preset: random, uniform or adversarial")
	cmd.Flags().Int64("seed", 0, "Random seed for a reproducible simulation")
	cmd.Flags().StringP("output", "o", defaultSimulationFile, "Output file (- for stdout)")

	return cmd
}
