// Package publish pushes the package artifact to the registry under a
// distribution tag equal to the release channel. Authentication comes from
// the .npmrc written by the runtime step.
package publish

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/shipline/shipline/internal/ctxlog"
	"github.com/shipline/shipline/internal/registry"
	"github.com/shipline/shipline/internal/shellexec"
	"github.com/shipline/shipline/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	// Tag is the distribution tag, e.g. env.RELEASE_CHANNEL.
	Tag string `hcl:"tag"`

	// Dir publishes from a subdirectory of the workspace.
	Dir string `hcl:"dir,optional"`

	// Access sets the npm access level ("public" for scoped packages).
	Access string `hcl:"access,optional"`
}

// OnRunPublish is the handler for the 'publish' step.
func OnRunPublish(ctx context.Context, ws *workspace.Workspace, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx)

	if in.Tag == "" {
		return cty.NilVal, fmt.Errorf("publish requires a distribution tag")
	}

	argv := []string{"npm", "publish", "--tag", in.Tag}
	if in.Access != "" {
		argv = append(argv, "--access", in.Access)
	}
	if ws.DryRun {
		argv = append(argv, "--dry-run")
	}

	logger.Info("📦 Publishing package.", "tag", in.Tag, "dry_run", ws.DryRun)
	if err := ws.Exec.Run(ctx, shellexec.Spec{Argv: argv, Dir: ws.Path(in.Dir)}); err != nil {
		return cty.NilVal, fmt.Errorf("publish failed: %w", err)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"tag": cty.StringVal(in.Tag),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("publish", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunPublish,
	})
}
