// Package main is the entry point for the venvbox server.
//
// Venvbox executes untrusted Python code inside disposable virtual
// environments, installing requested dependencies per request and caching
// named environments for reuse. It serves either a REST API or an MCP
// transport depending on configuration.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
