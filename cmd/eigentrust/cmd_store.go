package main

import (
	"context"
	"fmt"

	"github.com/nvandessel/eigentrust/internal/simulation"
	"github.com/nvandessel/eigentrust/internal/store"
	"github.com/spf13/cobra"
)

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Save, load and list stored simulations",
		Long: `Manage simulations kept in the configured store.

The store is chosen by --store, EIGENTRUST_STORE_DSN or store.dsn in the
config file, and defaults to SQLite at ~/.eigentrust/eigentrust.db:

  sqlite:///path/to/eigentrust.db
  redis://localhost:6379/0
  file:///path/to/dir
  archive:///path/to/dir   (gzip archives with checksums)

Examples:
  eigentrust store save -i simulation.json
  eigentrust store list
  eigentrust store load <id> -o simulation.json
  eigentrust store delete <id>`,
	}

	cmd.AddCommand(
		newStoreSaveCmd(),
		newStoreLoadCmd(),
		newStoreListCmd(),
		newStoreDeleteCmd(),
	)
	return cmd
}

// withStore opens the configured store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(context.Context, store.SimulationStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cmd.Context(), st)
}

func newStoreSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a simulation file to the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			sim, err := readSimulation(cmd, input)
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, st store.SimulationStore) error {
				if err := st.Save(ctx, sim.Record()); err != nil {
					return fmt.Errorf("failed to save simulation: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved simulation %s\n", sim.ID())
				return nil
			})
		},
	}
	cmd.Flags().StringP("input", "i", defaultSimulationFile, "Simulation file (- for stdin)")
	return cmd
}

func newStoreLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <id>",
		Short: "Load a stored simulation into a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st store.SimulationStore) error {
				rec, err := st.Load(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to load simulation %s: %w", args[0], err)
				}
				sim, err := simulation.FromRecord(rec)
				if err != nil {
					return err
				}
				output, _ := cmd.Flags().GetString("output")
				if err := writeSimulation(cmd, sim, output); err != nil {
					return err
				}
				if output != "-" {
					fmt.Fprintf(cmd.OutOrStdout(), "Loaded simulation %s -> %s\n", sim.ID(), output)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringP("output", "o", defaultSimulationFile, "Output file (- for stdout)")
	return cmd
}

func newStoreListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored simulations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st store.SimulationStore) error {
				entries, err := st.List(ctx)
				if err != nil {
					return fmt.Errorf("failed to list simulations: %w", err)
				}

				jsonOut, _ := cmd.Flags().GetBool("json")
				if jsonOut {
					if entries == nil {
						entries = []store.Entry{}
					}
					return writeJSON(cmd.OutOrStdout(), map[string]any{
						"simulations": entries,
						"count":       len(entries),
					})
				}

				w := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(w, "No stored simulations.")
					return nil
				}
				fmt.Fprintf(w, "%-36s  %-10s  %6s  %12s  %s\n", "ID", "STATE", "PEERS", "INTERACTIONS", "CREATED")
				for _, e := range entries {
					fmt.Fprintf(w, "%-36s  %-10s  %6d  %12d  %s\n",
						e.ID, e.State, e.PeerCount, e.InteractionCount, e.CreatedAt.Local().Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}
}

func newStoreDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st store.SimulationStore) error {
				if err := st.Delete(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to delete simulation %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted simulation %s\n", args[0])
				return nil
			})
		},
	}
}
