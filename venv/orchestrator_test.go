package venv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/venvbox/observability"
)

type buildCall struct {
	path string
	deps []string
}

// MockBuilder implements EnvironmentBuilder for testing. A successful build
// creates the environment directory the way uv would.
type MockBuilder struct {
	mu       sync.Mutex
	calls    []buildCall
	failWith error
}

func (m *MockBuilder) Build(_ context.Context, path string, deps []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, buildCall{path: path, deps: deps})
	if m.failWith != nil {
		return m.failWith
	}
	return os.MkdirAll(path, DirPermission)
}

func (m *MockBuilder) buildCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MockRunner implements CodeRunner for testing and records whether the
// environment directory existed when execution started.
type MockRunner struct {
	mu          sync.Mutex
	calls       []string
	missingEnvs int
	result      Result
	panicWith   any
}

func (m *MockRunner) Run(_ context.Context, envRoot, _ string) Result {
	m.mu.Lock()
	m.calls = append(m.calls, envRoot)
	if _, err := os.Stat(envRoot); err != nil {
		m.missingEnvs++
	}
	panicValue := m.panicWith
	m.mu.Unlock()

	if panicValue != nil {
		panic(panicValue)
	}
	return m.result
}

func (m *MockRunner) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newTestOrchestrator(t *testing.T, builder *MockBuilder, runner *MockRunner) (*Orchestrator, *Store) {
	t.Helper()
	store := NewStore(t.TempDir(), zaptest.NewLogger(t))
	require.True(t, store.Available())
	orch := NewOrchestrator(zaptest.NewLogger(t), store, builder, runner, observability.NewMetrics())
	return orch, store
}

func TestTemporaryEnvironmentIsAlwaysRemoved(t *testing.T) {
	t.Run("AfterSuccess", func(t *testing.T) {
		builder := &MockBuilder{}
		runner := &MockRunner{result: Result{Output: "hi\n"}}
		orch, store := newTestOrchestrator(t, builder, runner)

		result := orch.Execute(context.Background(), Request{Code: "print('hi')"})
		assert.Equal(t, "hi\n", result.Output)

		require.Len(t, builder.calls, 1)
		builtPath := builder.calls[0].path
		assert.Equal(t, store.TempRoot(), filepath.Dir(builtPath))
		_, err := os.Stat(builtPath)
		assert.True(t, os.IsNotExist(err), "temporary environment must not survive the request")
	})

	t.Run("AfterExecutionFault", func(t *testing.T) {
		builder := &MockBuilder{}
		runner := &MockRunner{result: Result{Error: "ZeroDivisionError"}}
		orch, _ := newTestOrchestrator(t, builder, runner)

		result := orch.Execute(context.Background(), Request{Code: "1/0"})
		assert.Equal(t, "ZeroDivisionError", result.Error)

		_, err := os.Stat(builder.calls[0].path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("AfterPanic", func(t *testing.T) {
		builder := &MockBuilder{}
		runner := &MockRunner{panicWith: "boom"}
		orch, _ := newTestOrchestrator(t, builder, runner)

		result := orch.Execute(context.Background(), Request{Code: "print('hi')"})
		assert.Contains(t, result.Error, "Unexpected error")
		assert.Contains(t, result.Error, "boom")

		_, err := os.Stat(builder.calls[0].path)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestTemporaryEnvironmentsGetUniqueRoots(t *testing.T) {
	builder := &MockBuilder{}
	runner := &MockRunner{}
	orch, _ := newTestOrchestrator(t, builder, runner)

	orch.Execute(context.Background(), Request{Code: "pass"})
	orch.Execute(context.Background(), Request{Code: "pass"})

	require.Len(t, builder.calls, 2)
	assert.NotEqual(t, builder.calls[0].path, builder.calls[1].path)
}

func TestBuildFailureShortCircuits(t *testing.T) {
	builder := &MockBuilder{failWith: errors.New("failed to install dependencies: no matching distribution")}
	runner := &MockRunner{}
	orch, _ := newTestOrchestrator(t, builder, runner)

	result := orch.Execute(context.Background(), Request{Code: "pass", Libraries: []string{"nope==1"}})

	assert.Contains(t, result.Error, "no matching distribution")
	assert.Empty(t, result.Output)
	// Execution is never reached after a failed build.
	assert.Zero(t, runner.runCount())
}

func TestNamedEnvironmentReuse(t *testing.T) {
	builder := &MockBuilder{}
	runner := &MockRunner{result: Result{Output: "ok\n"}}
	orch, store := newTestOrchestrator(t, builder, runner)

	deps := []string{"requests==2.31.0", "flask"}
	req := Request{Code: "pass", Libraries: deps, Name: "proj"}

	first := orch.Execute(context.Background(), req)
	require.Empty(t, first.Error)
	assert.Equal(t, 1, builder.buildCount())

	// Same name, same set: the builder is never invoked again.
	second := orch.Execute(context.Background(), req)
	require.Empty(t, second.Error)
	assert.Equal(t, 1, builder.buildCount())

	// Reordering the specifiers does not force a rebuild either.
	reordered := Request{Code: "pass", Libraries: []string{"flask", "requests==2.31.0"}, Name: "proj"}
	third := orch.Execute(context.Background(), reordered)
	require.Empty(t, third.Error)
	assert.Equal(t, 1, builder.buildCount())

	// The named environment survives the requests.
	_, err := os.Stat(store.EnvDir("proj"))
	assert.NoError(t, err)
}

func TestNamedEnvironmentRebuildOnDependencyChange(t *testing.T) {
	builder := &MockBuilder{}
	runner := &MockRunner{}
	orch, store := newTestOrchestrator(t, builder, runner)

	orch.Execute(context.Background(), Request{Code: "pass", Libraries: []string{"requests==2.31.0"}, Name: "proj"})
	require.Equal(t, 1, builder.buildCount())

	orch.Execute(context.Background(), Request{Code: "pass", Libraries: []string{"requests==2.32.0"}, Name: "proj"})
	assert.Equal(t, 2, builder.buildCount())
	assert.Equal(t, []string{"requests==2.32.0"}, builder.calls[1].deps)

	// The old metadata is fully replaced by the new dependency set.
	assert.Equal(t, DecisionReuse, store.Resolve("proj", []string{"requests==2.32.0"}))
	assert.Equal(t, DecisionRebuild, store.Resolve("proj", []string{"requests==2.31.0"}))
}

func TestNamedEnvironmentSurvivesExecutionFailure(t *testing.T) {
	builder := &MockBuilder{}
	runner := &MockRunner{result: Result{Error: "NameError: name 'x' is not defined"}}
	orch, store := newTestOrchestrator(t, builder, runner)

	orch.Execute(context.Background(), Request{Code: "x", Name: "proj"})

	// Execution failure never deletes a cached environment.
	_, err := os.Stat(store.EnvDir("proj"))
	assert.NoError(t, err)
	assert.Equal(t, DecisionReuse, store.Resolve("proj", nil))
}

func TestNamedRequestFailedBuildLeavesNoMetadata(t *testing.T) {
	builder := &MockBuilder{failWith: errors.New("failed to create virtual environment")}
	runner := &MockRunner{}
	orch, store := newTestOrchestrator(t, builder, runner)

	result := orch.Execute(context.Background(), Request{Code: "pass", Name: "proj"})
	require.Contains(t, result.Error, "failed to create virtual environment")

	// No metadata record points at the broken build.
	assert.Equal(t, DecisionRebuild, store.Resolve("proj", nil))
}

func TestStoreUnavailableDegradation(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	store := NewStore(filepath.Join(blocker, "root"), zaptest.NewLogger(t))
	require.False(t, store.Available())

	builder := &MockBuilder{}
	runner := &MockRunner{result: Result{Output: "still works\n"}}
	orch := NewOrchestrator(zaptest.NewLogger(t), store, builder, runner, observability.NewMetrics())

	// Named requests fail with an observable reason.
	named := orch.Execute(context.Background(), Request{Code: "pass", Name: "proj"})
	assert.Contains(t, named.Error, `cached environment "proj" unavailable`)
	assert.Zero(t, builder.buildCount())

	// Temporary requests are unaffected.
	temp := orch.Execute(context.Background(), Request{Code: "pass"})
	assert.Empty(t, temp.Error)
	assert.Equal(t, "still works\n", temp.Output)
}

func TestConcurrentNamedRequestsNeverObserveHalfBuiltEnvironment(t *testing.T) {
	builder := &MockBuilder{}
	runner := &MockRunner{}
	orch, _ := newTestOrchestrator(t, builder, runner)

	depSets := [][]string{
		{"requests==2.31.0"},
		{"flask==3.0.0"},
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orch.Execute(context.Background(), Request{
				Code:      "pass",
				Libraries: depSets[i%len(depSets)],
				Name:      "shared",
			})
		}(i)
	}
	wg.Wait()

	// Every execution saw a fully built environment despite the
	// rebuild/delete churn between conflicting dependency sets.
	assert.Zero(t, runner.missingEnvs)
	assert.Equal(t, 16, runner.runCount())
}

func TestConcurrentDistinctNamesDoNotSerialize(t *testing.T) {
	builder := &MockBuilder{}
	runner := &MockRunner{}
	orch, _ := newTestOrchestrator(t, builder, runner)

	var wg sync.WaitGroup
	names := []string{"alpha", "beta", "gamma", ""}
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			result := orch.Execute(context.Background(), Request{Code: "pass", Name: name})
			assert.Empty(t, result.Error)
		}(name)
	}
	wg.Wait()

	assert.Equal(t, len(names), runner.runCount())
	assert.Zero(t, runner.missingEnvs)
}
