// Package mcp exposes the interpretation core as a Model Context
// Protocol tool server for AI-assistant integration. The server is
// self-contained: classification runs in process against the built-in
// threshold tables, interpreted records live in an in-memory TTL cache,
// and overrides persist to an embedded SQLite database under the data
// directory. No external services are required.
package mcp

import (
	"context"
	"fmt"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS-sub000/internal/config"
	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
	"github.com/AzizElGhezal/NRIS-sub000/internal/overrides"
)

const (
	serverName    = "nris-interpreter"
	serverVersion = "v1.0.0"
)

// Server wires the interpretation toolset into an MCP SDK server.
type Server struct {
	config     *config.LiteConfig
	logger     *logrus.Logger
	mcpServer  *mcp.Server
	thresholds domain.ThresholdConfig
	recent     *expirable.LRU[string, *domain.TestRecord]
	overrides  domain.OverrideStore
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server) error

// WithLogger replaces the default logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithOverrideStore sets a custom override store. Without it the server
// opens the embedded SQLite store under the configured data directory.
func WithOverrideStore(store domain.OverrideStore) ServerOption {
	return func(s *Server) error {
		s.overrides = store
		return nil
	}
}

// NewServer creates a standalone MCP server instance.
func NewServer(cfg *config.LiteConfig, opts ...ServerOption) (*Server, error) {
	server := &Server{
		config:     cfg,
		logger:     logrus.New(),
		thresholds: domain.DefaultThresholdConfig(),
	}

	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	server.logger.SetLevel(level)

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	server.recent = expirable.NewLRU[string, *domain.TestRecord](
		cfg.CacheMaxItems, nil, cfg.CacheTTL)

	if server.overrides == nil {
		store, err := overrides.NewSQLiteStore(cfg.OverrideDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to open override store: %w", err)
		}
		server.overrides = store
	}

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)
	server.registerTools()

	server.logger.WithFields(logrus.Fields{
		"data_dir":  cfg.DataDir,
		"cache_max": cfg.CacheMaxItems,
	}).Info("MCP server initialized")
	return server, nil
}

// Start runs the server until ctx is cancelled or the client closes the
// session. Only the stdio transport is supported; any other configured
// transport falls back to stdio with a warning.
func (s *Server) Start(ctx context.Context) error {
	if s.config.Transport != "stdio" {
		s.logger.WithField("transport", s.config.Transport).
			Warn("Unsupported transport, falling back to stdio")
	}

	s.logger.WithFields(logrus.Fields{
		"name":    serverName,
		"version": serverVersion,
	}).Info("Starting MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.overrides != nil {
		if err := s.overrides.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close override store")
		}
	}
	return nil
}
