// Package dispatch notifies a downstream repository's automation system that
// a new version exists, by triggering a named workflow with the version
// string as input.
package dispatch

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/shipline/shipline/internal/ctxlog"
	"github.com/shipline/shipline/internal/registry"
	"github.com/shipline/shipline/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	// Repository is the target in "owner/name" form.
	Repository string `hcl:"repository"`

	// Workflow is the target workflow file name or ID.
	Workflow string `hcl:"workflow"`

	// Token authenticates the dispatch, e.g. env.TAILWIND_PLAY_TOKEN.
	Token string `hcl:"token"`

	// Ref is the branch the workflow runs on. Defaults to main.
	Ref string `hcl:"ref,optional"`

	// Inputs is the workflow input payload, typically the computed version:
	// { version = step.version.version }.
	Inputs map[string]string `hcl:"inputs,optional"`
}

// OnRunDispatch is the handler for the 'dispatch' step.
func OnRunDispatch(ctx context.Context, ws *workspace.Workspace, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx)

	if ws.DryRun {
		logger.Info("Dry run: skipping workflow dispatch.", "repository", in.Repository, "workflow", in.Workflow)
		return cty.NilVal, nil
	}
	if ws.Dispatch == nil {
		return cty.NilVal, fmt.Errorf("dispatch client is not configured")
	}

	err := ws.Dispatch.WorkflowDispatch(ctx, in.Token, in.Repository, in.Workflow, in.Ref, in.Inputs)
	if err != nil {
		return cty.NilVal, err
	}
	logger.Info("📣 Downstream workflow dispatched.", "repository", in.Repository, "workflow", in.Workflow)

	return cty.ObjectVal(map[string]cty.Value{
		"repository": cty.StringVal(in.Repository),
		"workflow":   cty.StringVal(in.Workflow),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("dispatch", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunDispatch,
	})
}
