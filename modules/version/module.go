// Package version stamps the package manifest with a pre-release version
// derived from the current commit: 0.0.0-<channel>.<short-sha>. The rewrite
// is local only; no version-control tag is created.
package version

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/shipline/shipline/internal/ctxlog"
	"github.com/shipline/shipline/internal/gitver"
	"github.com/shipline/shipline/internal/manifest"
	"github.com/shipline/shipline/internal/registry"
	"github.com/shipline/shipline/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	// Channel is the release channel, e.g. env.RELEASE_CHANNEL.
	Channel string `hcl:"channel"`

	// Manifest is the workspace-relative package manifest. Defaults to
	// package.json.
	Manifest string `hcl:"manifest,optional"`
}

// OnRunVersion is the handler for the 'version' step.
func OnRunVersion(ctx context.Context, ws *workspace.Workspace, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx)

	sha, err := gitver.ShortSHA(ctx, ws.Exec, ws.Dir)
	if err != nil {
		return cty.NilVal, err
	}
	rendered, err := gitver.Prerelease(in.Channel, sha)
	if err != nil {
		return cty.NilVal, err
	}

	manifestPath := in.Manifest
	if manifestPath == "" {
		manifestPath = "package.json"
	}

	if ws.DryRun {
		logger.Info("Dry run: skipping manifest rewrite.", "version", rendered, "manifest", manifestPath)
	} else {
		if err := manifest.SetVersion(ws.Path(manifestPath), rendered); err != nil {
			return cty.NilVal, err
		}
		logger.Info("Manifest version rewritten.", "version", rendered, "manifest", manifestPath)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"version":   cty.StringVal(rendered),
		"short_sha": cty.StringVal(sha),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("version", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunVersion,
	})
}
