// Package mcp implements a Model Context Protocol server exposing docfang
// pipeline state as MCP tools over stdio transport, so AI agents can inspect
// workflow progress, session status and staleness before acting.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/docfang/internal/session"
	"github.com/Sumatoshi-tech/docfang/internal/staleness"
	"github.com/Sumatoshi-tech/docfang/internal/workflow"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "docfang"
	// serverVersion is the MCP server implementation version.
	serverVersion = "1.0.0"

	// toolCount is the expected number of registered tools.
	toolCount = 3
)

// ServerDeps holds injectable dependencies for the MCP server.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Sessions reads session records for the sessions tool.
	Sessions *session.Store

	// Ledger reads workflow state for the status tool.
	Ledger *workflow.Store

	// Validator evaluates staleness for the status and staleness tools.
	Validator *staleness.Validator
}

// Server wraps the MCP SDK server with docfang tool registrations.
type Server struct {
	inner *mcpsdk.Server
	mu    sync.RWMutex
	tools []string
	deps  ServerDeps
}

// NewServer creates a new MCP server with all docfang tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		opts,
	)

	srv := &Server{
		inner: inner,
		tools: make([]string, 0, toolCount),
		deps:  deps,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	err := s.inner.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// registerTools adds all docfang MCP tools to the server.
func (s *Server) registerTools() {
	s.registerStatusTool()
	s.registerSessionsTool()
	s.registerStalenessTool()
}

func (s *Server) registerStatusTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameStatus,
		Description: statusToolDescription,
	}, s.handleStatus)

	s.trackTool(ToolNameStatus)
}

func (s *Server) registerSessionsTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameSessions,
		Description: sessionsToolDescription,
	}, s.handleSessions)

	s.trackTool(ToolNameSessions)
}

func (s *Server) registerStalenessTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameStaleness,
		Description: stalenessToolDescription,
	}, s.handleStaleness)

	s.trackTool(ToolNameStaleness)
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}
