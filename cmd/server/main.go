// Package main is the entry point for the venvbox server.
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/venvbox/config"
	"github.com/isdmx/venvbox/httpserver"
	"github.com/isdmx/venvbox/logger"
	"github.com/isdmx/venvbox/mcpserver"
	"github.com/isdmx/venvbox/observability"
	"github.com/isdmx/venvbox/venv"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Metrics registry
			observability.NewMetrics,

			// Environment lifecycle orchestrator
			venv.New,

			// Boundary adapters for the orchestrator
			func(o *venv.Orchestrator) httpserver.CodeExecutor { return o },
			func(o *venv.Orchestrator) mcpserver.CodeExecutor { return o },

			// HTTP server
			httpserver.New,

			// MCP Server
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, httpSrv *httpserver.Server, mcpSrv *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "http":
					go func() {
						if err := httpSrv.Start(); err != nil {
							panic(err)
						}
					}()
				case "mcp-stdio":
					go func() {
						if err := mcpSrv.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "mcp-http":
					go func() {
						if err := mcpSrv.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
