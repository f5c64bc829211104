// Package cache restores the dependency directory from a content-addressed
// cache entry before install, and saves it back once the whole pipeline has
// succeeded. A miss never fails the run; it only makes the install slower.
package cache

import (
	"context"
	"fmt"
	"runtime"

	"github.com/zclconf/go-cty/cty"

	"github.com/shipline/shipline/internal/cachekey"
	"github.com/shipline/shipline/internal/ctxlog"
	"github.com/shipline/shipline/internal/registry"
	"github.com/shipline/shipline/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	// Paths are the workspace-relative directories covered by the entry,
	// typically ["node_modules"].
	Paths []string `hcl:"paths"`

	// Lockfile is the workspace-relative dependency lockfile whose content
	// hash keys the entry.
	Lockfile string `hcl:"lockfile"`

	// Prefix namespaces keys, e.g. env.CACHE_PREFIX.
	Prefix string `hcl:"prefix,optional"`

	// RuntimeVersion ties the entry to a runtime, e.g. env.NODE_VERSION.
	RuntimeVersion string `hcl:"runtime_version,optional"`
}

func (in *Input) key(ws *workspace.Workspace) (cachekey.Key, error) {
	return cachekey.Compute(runtime.GOOS, in.RuntimeVersion, in.Prefix, ws.Path(in.Lockfile))
}

// OnRunCache is the handler for the 'cache' step.
func OnRunCache(ctx context.Context, ws *workspace.Workspace, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx)

	if len(in.Paths) == 0 {
		return cty.NilVal, fmt.Errorf("cache step requires at least one path")
	}
	if ws.DryRun {
		logger.Info("Dry run: skipping cache restore.")
		return result(false, ""), nil
	}
	if ws.Cache == nil {
		logger.Warn("No cache backend configured; continuing uncached.")
		return result(false, ""), nil
	}

	key, err := in.key(ws)
	if err != nil {
		return cty.NilVal, err
	}

	hit, err := ws.Cache.Restore(ctx, key.String(), ws.Dir)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cache restore failed: %w", err)
	}
	if hit {
		logger.Info("💾 Cache hit.", "key", key.String())
	} else {
		logger.Info("Cache miss; continuing uncached.", "key", key.String())
	}
	return result(hit, key.String()), nil
}

// SaveAfterRun populates the cache once the pipeline has fully succeeded.
// An entry that already exists is left alone.
func SaveAfterRun(ctx context.Context, ws *workspace.Workspace, input any) error {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx)

	if ws.Cache == nil {
		return nil
	}
	if ws.DryRun {
		logger.Info("Dry run: skipping cache save.")
		return nil
	}

	key, err := in.key(ws)
	if err != nil {
		return err
	}
	exists, err := ws.Cache.Has(ctx, key.String())
	if err != nil {
		return err
	}
	if exists {
		logger.Debug("Cache entry already present; skipping save.", "key", key.String())
		return nil
	}

	if err := ws.Cache.Save(ctx, key.String(), ws.Dir, in.Paths); err != nil {
		return err
	}
	logger.Info("💾 Cache entry saved.", "key", key.String())
	return nil
}

func result(hit bool, key string) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"hit": cty.BoolVal(hit),
		"key": cty.StringVal(key),
	})
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("cache", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunCache,
		Finalize: SaveAfterRun,
	})
}
