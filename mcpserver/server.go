// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// execute_python tool. It uses the mark3labs/mcp-go library to handle the
// protocol details and delegates execution to the environment lifecycle
// orchestrator.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/venvbox/config"
	"github.com/isdmx/venvbox/venv"
)

// CodeExecutor is the orchestration surface the server drives.
type CodeExecutor interface {
	Execute(ctx context.Context, req venv.Request) venv.Result
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  CodeExecutor
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor CodeExecutor) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		executor: executor,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("store.root", s.config.Store.Root),
		zap.Int("venv.create_timeout_sec", s.config.Venv.CreateTimeoutSec),
		zap.Int("venv.install_timeout_sec", s.config.Venv.InstallTimeoutSec),
		zap.Int("venv.exec_timeout_sec", s.config.Venv.ExecTimeoutSec),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("venvbox", "Execute Python code in isolated virtual environments")

	// Register the execute_python tool
	s.registerExecutePythonTool()

	return s, nil
}

// registerExecutePythonTool registers the execute_python tool
func (s *MCPServer) registerExecutePythonTool() {
	tool := mcp.Tool{
		Name:        "execute_python",
		Description: "Execute Python code in an isolated virtual environment with optional dependencies",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Python code to execute",
				},
				"libraries": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Dependency specifiers in requirements.txt format (optional)",
				},
				"environment": map[string]any{
					"type":        "string",
					"description": "Logical name of a cached environment to reuse across calls (optional)",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecutePython)
}

// handleExecutePython handles the execute_python tool
func (s *MCPServer) handleExecutePython(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	libraries := request.GetStringSlice("libraries", nil)
	name := request.GetString("environment", "")

	// Names become directory and metadata file names; unsafe ones never
	// reach the core.
	if name != "" && !venv.ValidName(name) {
		return nil, fmt.Errorf("invalid environment name: %q", name)
	}

	s.logger.Info("code execution requested",
		zap.String("environment", name),
		zap.Int("dependencies", len(libraries)))

	result := s.executor.Execute(ctx, venv.Request{
		Code:      code,
		Libraries: libraries,
		Name:      name,
	})

	s.logger.Info("code execution completed",
		zap.String("environment", name),
		zap.Int("output_len", len(result.Output)),
		zap.Int("error_len", len(result.Error)))

	// User-code failure is routine tool output, not a protocol error.
	resultJSON, err := json.Marshal(map[string]string{
		"output": result.Output,
		"error":  result.Error,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(resultJSON),
			},
		},
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
