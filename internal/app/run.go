package app

import (
	"context"
	"os"
	"path/filepath"

	"github.com/shipline/shipline/internal/cachestore"
	"github.com/shipline/shipline/internal/ctxlog"
	"github.com/shipline/shipline/internal/dispatch"
	"github.com/shipline/shipline/internal/engine"
	"github.com/shipline/shipline/internal/environ"
	"github.com/shipline/shipline/internal/shellexec"
	"github.com/shipline/shipline/internal/workspace"
)

// runOverrides collects test-injected collaborators. Production runs build
// everything from the environment.
type runOverrides struct {
	env      *environ.Snapshot
	runner   shellexec.Runner
	cache    cachestore.Store
	cacheSet bool
	dispatch *dispatch.Client
}

// RunOption overrides one collaborator for a run.
type RunOption func(*runOverrides)

// WithEnv substitutes the environment snapshot.
func WithEnv(env *environ.Snapshot) RunOption {
	return func(o *runOverrides) { o.env = env }
}

// WithRunner substitutes the command runner.
func WithRunner(r shellexec.Runner) RunOption {
	return func(o *runOverrides) { o.runner = r }
}

// WithCacheStore substitutes the cache store. Passing nil disables caching.
func WithCacheStore(s cachestore.Store) RunOption {
	return func(o *runOverrides) { o.cache = s; o.cacheSet = true }
}

// WithDispatchClient substitutes the dispatch client.
func WithDispatchClient(c *dispatch.Client) RunOption {
	return func(o *runOverrides) { o.dispatch = c }
}

// Run executes the loaded pipeline once and returns its first fatal error.
func (a *App) Run(ctx context.Context, opts ...RunOption) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	var overrides runOverrides
	for _, opt := range opts {
		opt(&overrides)
	}

	ws, cleanup := a.buildWorkspace(ctx, &overrides)
	defer cleanup()

	a.logger.Info("🚀 Starting pipeline run.",
		"pipeline", a.model.Pipeline.Name,
		"steps", len(a.model.Pipeline.Steps),
		"workdir", ws.Dir,
		"dry_run", a.config.DryRun)

	report, runErr := engine.New(a.registry, ws).Run(ctx, a.model.Pipeline)

	if a.config.ReportPath != "" {
		if err := report.WriteFile(a.config.ReportPath); err != nil {
			a.logger.Warn("Failed to write run report.", "path", a.config.ReportPath, "error", err)
		} else {
			a.logger.Info("Run report written.", "path", a.config.ReportPath)
		}
	}

	a.logger.Info("🏁 Pipeline finished.", "status", report.Status)
	return runErr
}

// buildWorkspace assembles the per-run execution environment, honoring any
// test overrides. The returned cleanup closes owned collaborators.
func (a *App) buildWorkspace(ctx context.Context, overrides *runOverrides) (*workspace.Workspace, func()) {
	env := overrides.env
	if env == nil {
		env = environ.Capture()
	}

	runner := overrides.runner
	if runner == nil {
		if a.config.DryRun {
			runner = &shellexec.DryRunner{}
		} else {
			runner = shellexec.NewExecRunner(env.Environ(), env.Redact)
		}
	}

	store := overrides.cache
	if !overrides.cacheSet {
		store = a.buildCacheStore(ctx, env)
	}

	cleanup := func() {}
	client := overrides.dispatch
	if client == nil {
		client = dispatch.New()
		cleanup = func() { client.Close() }
	}

	return &workspace.Workspace{
		Dir:      a.config.Workdir,
		Env:      env,
		Exec:     runner,
		Cache:    store,
		Dispatch: client,
		DryRun:   a.config.DryRun,
	}, cleanup
}

// buildCacheStore picks the cache backend from the environment: an
// S3-compatible bucket when SHIPLINE_CACHE_BUCKET is set, a local directory
// otherwise. A backend that fails to initialize downgrades the run to
// uncached rather than failing it.
func (a *App) buildCacheStore(ctx context.Context, env *environ.Snapshot) cachestore.Store {
	logger := ctxlog.FromContext(ctx)

	if bucket, ok := env.Lookup("SHIPLINE_CACHE_BUCKET"); ok && bucket != "" {
		endpoint, _ := env.Lookup("SHIPLINE_CACHE_ENDPOINT")
		if endpoint == "" {
			endpoint = "s3.amazonaws.com"
		}
		prefix, _ := env.Lookup("SHIPLINE_CACHE_KEY_PREFIX")
		store, err := cachestore.NewS3Store(cachestore.S3Config{
			Endpoint: endpoint,
			Bucket:   bucket,
			Prefix:   prefix,
		})
		if err != nil {
			logger.Warn("Failed to configure s3 cache; continuing uncached.", "error", err)
			return nil
		}
		logger.Debug("Cache backend configured.", "backend", "s3", "bucket", bucket)
		return store
	}

	dir, ok := env.Lookup("SHIPLINE_CACHE_DIR")
	if !ok || dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			logger.Warn("No cache directory available; continuing uncached.", "error", err)
			return nil
		}
		dir = filepath.Join(base, "shipline")
	}
	store, err := cachestore.NewFSStore(dir)
	if err != nil {
		logger.Warn("Failed to open cache directory; continuing uncached.", "dir", dir, "error", err)
		return nil
	}
	logger.Debug("Cache backend configured.", "backend", "filesystem", "dir", dir)
	return store
}
