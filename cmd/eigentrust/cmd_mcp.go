package main

import (
	"context"
	"fmt"

	"github.com/nvandessel/eigentrust/internal/mcp"
	"github.com/nvandessel/eigentrust/internal/metrics"
	"github.com/nvandessel/eigentrust/internal/store"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve eigentrust tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools:
  eigentrust_run    generate, simulate and rank a network (or rerun a stored one)
  eigentrust_info   summarize a stored simulation
  eigentrust_list   list stored simulations
  eigentrust_graph  render a stored simulation as DOT or JSON

Tool calls are appended to ~/.eigentrust/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}

			auditDir := ""
			if noAudit, _ := cmd.Flags().GetBool("no-audit"); !noAudit {
				if auditDir, err = store.DefaultDir(); err != nil {
					st.Close()
					return err
				}
			}

			var recorder *metrics.Recorder
			if cfg.Metrics.Textfile != "" {
				recorder = metrics.NewRecorder()
			}

			// Logs go to stderr; stdout carries the protocol.
			server, err := mcp.NewServer(&mcp.Config{
				Name:     "eigentrust",
				Version:  version,
				Store:    st,
				Defaults: cfg,
				AuditDir: auditDir,
				Logger:   newLogger(cmd, cfg),
				Metrics:  recorder,
			})
			if err != nil {
				st.Close()
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			runErr := server.Run(ctx)
			if recorder != nil {
				if err := recorder.WriteToTextfile(cfg.Metrics.Textfile); err != nil && runErr == nil {
					runErr = err
				}
			}
			return runErr
		},
	}
	cmd.Flags().Bool("no-audit", false, "Do not write the tool audit log")
	return cmd
}
