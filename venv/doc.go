// Package venv manages the lifecycle of isolated Python virtual environments
// and the execution of untrusted code inside them.
//
// The package implements the full environment lifecycle: the Store keeps a
// durable registry of named environments and decides whether a cached
// environment can be reused for a requested dependency set, the Builder
// creates environments and installs dependencies with bounded timeouts, the
// Runner executes code against an environment's interpreter, and the
// Orchestrator coordinates the whole request flow while guaranteeing cleanup
// of temporary environments.
//
// Usage:
//
//	orch := venv.New(logger, cfg, metrics)
//	result := orch.Execute(ctx, venv.Request{
//	    Code:      "print('Hello, World!')",
//	    Libraries: []string{"requests==2.31.0"},
//	})
package venv
