package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/eigentrust/internal/config"
	"github.com/nvandessel/eigentrust/internal/logging"
	"github.com/nvandessel/eigentrust/internal/metrics"
	"github.com/nvandessel/eigentrust/internal/ratelimit"
	"github.com/nvandessel/eigentrust/internal/store"
)

// Server wraps the MCP SDK server and exposes simulations as tools.
type Server struct {
	server       *sdk.Server
	store        store.SimulationStore
	defaults     *config.Config
	logger       *slog.Logger
	metrics      *metrics.Recorder
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "eigentrust")
	Version string // Server version

	// Store persists simulations created with save=true. The server takes
	// ownership and closes it.
	Store store.SimulationStore

	// Defaults fill in tool arguments left at their zero value.
	// Nil uses config.Default().
	Defaults *config.Config

	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string

	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// NewServer creates a new MCP server with eigentrust tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("mcp server requires a store")
	}
	defaults := cfg.Defaults
	if defaults == nil {
		defaults = config.Default()
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid defaults: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		store:        cfg.Store,
		defaults:     defaults,
		logger:       logger,
		metrics:      cfg.Metrics,
		toolLimiters: ratelimit.NewToolLimiters(),
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			s.logger.Info("shutting down mcp server")
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close closes the store and the audit log.
func (s *Server) Close() error {
	_ = s.auditLogger.Close()
	return s.store.Close()
}
