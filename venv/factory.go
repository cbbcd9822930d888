package venv

import (
	"go.uber.org/zap"

	"github.com/isdmx/venvbox/config"
	"github.com/isdmx/venvbox/observability"
)

// New wires the store, builder and runner into an Orchestrator from the
// application configuration.
func New(logger *zap.Logger, cfg *config.Config, metrics *observability.Metrics) *Orchestrator {
	lifecycleConfig := &Config{
		CreateTimeoutSec:  cfg.Venv.CreateTimeoutSec,
		InstallTimeoutSec: cfg.Venv.InstallTimeoutSec,
		ExecTimeoutSec:    cfg.Venv.ExecTimeoutSec,
	}

	store := NewStore(cfg.Store.Root, logger)
	builder := NewBuilder(logger, lifecycleConfig)
	runner := NewRunner(logger, lifecycleConfig)

	return NewOrchestrator(logger, store, builder, runner, metrics)
}
