package venv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/venvbox/observability"
)

// EnvironmentBuilder creates an environment at a path and installs a
// dependency set into it.
type EnvironmentBuilder interface {
	Build(ctx context.Context, path string, dependencies []string) error
}

// CodeRunner executes code inside an environment.
type CodeRunner interface {
	Run(ctx context.Context, envRoot, code string) Result
}

// Orchestrator coordinates the per-request environment lifecycle: resolving
// which environment to use, driving the Builder and the Store's reuse policy,
// invoking the Runner, and guaranteeing cleanup of temporary environments on
// every exit path.
type Orchestrator struct {
	logger  *zap.Logger
	store   *Store
	builder EnvironmentBuilder
	runner  CodeRunner
	metrics *observability.Metrics

	// Per-name locks serialize rebuild and execution of the same named
	// environment. Entries are created lazily and never removed; the name
	// space is assumed bounded.
	mu        sync.Mutex
	nameLocks map[string]*sync.Mutex
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(logger *zap.Logger, store *Store, builder EnvironmentBuilder, runner CodeRunner, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		logger:    logger,
		store:     store,
		builder:   builder,
		runner:    runner,
		metrics:   metrics,
		nameLocks: make(map[string]*sync.Mutex),
	}
}

// Execute handles one execution request end to end and always returns a
// structured Result; no failure along the path escapes as an error or a
// panic. Requests with a Name execute against a cached environment under a
// per-name lock, requests without one get a fresh temporary environment that
// is destroyed before returning.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (res Result) {
	kind := observability.KindTemporary
	if req.Name != "" {
		kind = observability.KindNamed
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic while handling execution request",
				zap.Any("panic", r),
				zap.String("name", req.Name))
			res = Result{Error: fmt.Sprintf("Unexpected error: %v", r)}
		}

		status := observability.StatusOK
		if res.Error != "" {
			status = observability.StatusError
		}
		o.metrics.RequestsTotal.WithLabelValues(kind, status).Inc()
		o.metrics.RequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	if req.Name != "" {
		return o.executeNamed(ctx, req)
	}
	return o.executeTemporary(ctx, req)
}

// executeTemporary builds a one-shot environment under a unique root and
// removes it unconditionally when the request is done.
func (o *Orchestrator) executeTemporary(ctx context.Context, req Request) Result {
	root := filepath.Join(o.store.TempRoot(), "env-"+uuid.NewString())

	defer func() {
		if err := os.RemoveAll(root); err != nil {
			// Best-effort: a cleanup failure must never mask the result.
			o.logger.Warn("failed to remove temporary environment",
				zap.String("path", root),
				zap.Error(err))
		}
	}()

	if res, ok := o.build(ctx, observability.KindTemporary, root, req.Libraries); !ok {
		return res
	}

	return o.run(ctx, root, req.Code)
}

// executeNamed resolves, possibly rebuilds, and executes against a cached
// environment. The per-name lock is held from resolve through execution so a
// concurrent request for the same name can never observe a half-built
// environment.
func (o *Orchestrator) executeNamed(ctx context.Context, req Request) Result {
	lock := o.lockFor(req.Name)
	lock.Lock()
	defer lock.Unlock()

	if !o.store.Available() {
		return Result{Error: fmt.Sprintf("cached environment %q unavailable: %v", req.Name, o.store.Err())}
	}

	root := o.store.EnvDir(req.Name)

	switch decision := o.store.Resolve(req.Name, req.Libraries); decision {
	case DecisionReuse:
		o.metrics.ReusesTotal.Inc()
		o.logger.Debug("reusing cached environment", zap.String("name", req.Name))

	case DecisionRebuild:
		o.logger.Info("rebuilding cached environment",
			zap.String("name", req.Name),
			zap.Int("dependencies", len(req.Libraries)))
		o.store.Remove(req.Name)

		if res, ok := o.build(ctx, observability.KindNamed, root, req.Libraries); !ok {
			return res
		}

		// Metadata is the last step of a successful build: a crash before
		// this point leaves no record pointing at a partial environment.
		if err := o.store.SaveMetadata(req.Name, req.Libraries); err != nil {
			return Result{Error: fmt.Sprintf("failed to record environment metadata: %v", err)}
		}
	}

	return o.run(ctx, root, req.Code)
}

func (o *Orchestrator) build(ctx context.Context, kind, path string, dependencies []string) (Result, bool) {
	start := time.Now()
	err := o.builder.Build(ctx, path, dependencies)
	o.metrics.BuildDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		o.metrics.BuildsTotal.WithLabelValues(kind, observability.StatusError).Inc()
		o.logger.Warn("environment build failed",
			zap.String("path", path),
			zap.Error(err))
		return Result{Error: err.Error()}, false
	}

	o.metrics.BuildsTotal.WithLabelValues(kind, observability.StatusOK).Inc()
	return Result{}, true
}

func (o *Orchestrator) run(ctx context.Context, envRoot, code string) Result {
	start := time.Now()
	res := o.runner.Run(ctx, envRoot, code)
	o.metrics.ExecutionDuration.Observe(time.Since(start).Seconds())

	status := observability.StatusOK
	switch {
	case res.TimedOut:
		status = observability.StatusTimeout
	case res.Error != "":
		status = observability.StatusFault
	}
	o.metrics.ExecutionsTotal.WithLabelValues(status).Inc()

	return res
}

func (o *Orchestrator) lockFor(name string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.nameLocks[name]
	if !ok {
		lock = &sync.Mutex{}
		o.nameLocks[name] = lock
	}
	return lock
}
