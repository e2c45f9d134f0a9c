package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/nvandessel/eigentrust/internal/config"
	"github.com/nvandessel/eigentrust/internal/logging"
	"github.com/nvandessel/eigentrust/internal/metrics"
	"github.com/nvandessel/eigentrust/internal/models"
	"github.com/nvandessel/eigentrust/internal/simulation"
	"github.com/nvandessel/eigentrust/internal/store"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

// defaultSimulationFile is where create writes and the other commands read
// when no path is given.
const defaultSimulationFile = "simulation.json"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "eigentrust",
		Short: "EigenTrust reputation simulator",
		Long: `eigentrust simulates peer-to-peer networks and computes global trust
with the EigenTrust power iteration.

A typical session creates a network, simulates interactions between its
peers, runs the algorithm and renders the result:

  eigentrust create --peers 20 --preset adversarial --seed 42
  eigentrust simulate --interactions 500
  eigentrust run --track-history
  eigentrust visualize graph -o trust.dot`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.eigentrust/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace")
	rootCmd.PersistentFlags().String("store", "", "Simulation store DSN (sqlite://, redis://, file://, archive://, mem://)")
	rootCmd.PersistentFlags().String("metrics-textfile", "", "Write Prometheus metrics to this file after each run")

	rootCmd.AddCommand(
		newVersionCmd(),
		newCreateCmd(),
		newSimulateCmd(),
		newRunCmd(),
		newInfoCmd(),
		newVisualizeCmd(),
		newAllCmd(),
		newConfigCmd(),
		newStoreCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "eigentrust version %s\n", version)
			}
		},
	}
}

// loadConfig loads the configuration and applies the global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if dsn, _ := cmd.Flags().GetString("store"); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if textfile, _ := cmd.Flags().GetString("metrics-textfile"); textfile != "" {
		cfg.Metrics.Textfile = textfile
	}
	return cfg, nil
}

// newLogger returns a stderr logger at the configured level.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// newTracer returns the run tracer for debug and trace levels, nil otherwise.
func newTracer(cfg *config.Config) *logging.TraceLogger {
	dir, err := store.DefaultDir()
	if err != nil {
		return nil
	}
	return logging.NewTraceLogger(dir, cfg.Logging.Level)
}

// openStore opens the configured store, defaulting to SQLite under
// ~/.eigentrust.
func openStore(cfg *config.Config) (store.SimulationStore, error) {
	dsn := cfg.Store.DSN
	if dsn == "" {
		var err error
		dsn, err = store.DefaultDSN()
		if err != nil {
			return nil, err
		}
	}
	s, err := store.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", config.StoreConfig{DSN: dsn}.RedactedDSN(), err)
	}
	return s, nil
}

// readSimulation loads a simulation from a JSON file, or stdin for "-".
func readSimulation(cmd *cobra.Command, path string) (*simulation.Simulation, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open simulation: %w", err)
		}
		defer f.Close()
		r = f
	}
	sim, err := simulation.ReadJSON(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return sim, nil
}

// writeSimulation saves a simulation as JSON to path, or stdout for "-".
func writeSimulation(cmd *cobra.Command, sim *simulation.Simulation, path string) error {
	if path == "-" {
		return sim.WriteJSON(cmd.OutOrStdout())
	}
	return store.WriteJSONFile(path, sim.Record())
}

// runAlgorithm runs EigenTrust on sim and records metrics when a textfile
// is configured.
func runAlgorithm(sim *simulation.Simulation, cfg *config.Config, rc simulation.RunConfig) (models.TrustScores, error) {
	start := time.Now()
	scores, err := sim.RunAlgorithm(rc)
	elapsed := time.Since(start)

	if cfg.Metrics.Textfile != "" {
		rec := metrics.NewRecorder()
		if err != nil {
			rec.ObserveFailure(elapsed)
		} else {
			rec.ObserveRun(scores, len(sim.Peers()), len(sim.Interactions()), elapsed)
		}
		if werr := rec.WriteToTextfile(cfg.Metrics.Textfile); werr != nil && err == nil {
			return scores, werr
		}
	}
	if err != nil {
		return models.TrustScores{}, fmt.Errorf("run failed: %w", err)
	}
	return scores, nil
}

// outputOrInput returns the output flag, falling back to the input path.
func outputOrInput(cmd *cobra.Command) string {
	out, _ := cmd.Flags().GetString("output")
	if out != "" {
		return out
	}
	in, _ := cmd.Flags().GetString("input")
	return in
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
