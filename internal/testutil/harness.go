package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shipline/shipline/internal/app"
	"github.com/shipline/shipline/internal/cachestore"
	"github.com/shipline/shipline/internal/dispatch"
	"github.com/shipline/shipline/internal/environ"
	"github.com/shipline/shipline/internal/hcl"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessOptions configures one integration run.
type HarnessOptions struct {
	// Env is the environment the pipeline sees. Defaults to an empty snapshot.
	Env map[string]string

	// Runner handles every command the pipeline issues. Defaults to a fresh
	// FakeRunner.
	Runner *FakeRunner

	// Workdir overrides the workspace root. Defaults to a temp directory.
	Workdir string

	// ReportPath, when set, asks the app to write its YAML run report there.
	ReportPath string

	// Cache backs the pipeline's cache step. Nil leaves caching disabled.
	Cache cachestore.Store

	// Dispatch overrides the workflow-dispatch client, typically pointed at a
	// local httptest server. Nil uses the production client.
	Dispatch *dispatch.Client

	// DryRun runs the pipeline with outward side effects suppressed. Leave
	// Runner nil to let the app build its own DryRunner.
	DryRun bool
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	Runner    *FakeRunner
	Workdir   string
}

// RunPipelineTest writes the given pipeline definition to a temp file, builds
// the app around the scripted collaborators, and runs it once. It mirrors
// what cmd/cli does minus the process-level plumbing.
func RunPipelineTest(t *testing.T, pipelineHCL string, opts HarnessOptions) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	pipelinePath := filepath.Join(tmpDir, "pipeline.hcl")
	require.NoError(t, os.WriteFile(pipelinePath, []byte(pipelineHCL), 0644))

	workdir := opts.Workdir
	if workdir == "" {
		workdir = filepath.Join(tmpDir, "work")
		require.NoError(t, os.Mkdir(workdir, 0755))
	}

	runner := opts.Runner
	if runner == nil && !opts.DryRun {
		runner = NewFakeRunner()
	}

	appConfig, err := app.NewConfig(app.Config{
		PipelinePath: pipelinePath,
		Workdir:      workdir,
		ReportPath:   opts.ReportPath,
		LogLevel:     "debug",
		LogFormat:    "text",
		DryRun:       opts.DryRun,
	})
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, hcl.NewLoader())
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
			Runner:    runner,
			Workdir:   workdir,
		}
	}

	runOpts := []app.RunOption{
		app.WithEnv(environ.FromMap(opts.Env)),
		app.WithCacheStore(opts.Cache),
		app.WithDispatchClient(opts.Dispatch),
	}
	if runner != nil {
		// A nil *FakeRunner must not reach app.WithRunner: the typed nil
		// would make the interface non-nil and bypass the app's own
		// DryRunner fallback.
		runOpts = append(runOpts, app.WithRunner(runner))
	}

	runErr := testApp.Run(context.Background(), runOpts...)

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
		Runner:    runner,
		Workdir:   workdir,
	}
}
