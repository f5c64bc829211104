// Package run executes an arbitrary command in the workspace: the engine-swap
// script, dependency install, build and test scripts all use it. The command
// line goes through the shell, so pipeline authors keep ordinary shell
// syntax.
package run

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/shipline/shipline/internal/registry"
	"github.com/shipline/shipline/internal/shellexec"
	"github.com/shipline/shipline/internal/workspace"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Command string `hcl:"command"`

	// Dir runs the command in a subdirectory of the workspace.
	Dir string `hcl:"dir,optional"`

	// Env adds per-command environment entries on top of the run snapshot.
	Env map[string]string `hcl:"env,optional"`
}

// OnRunCommand is the handler for the 'run' step.
func OnRunCommand(ctx context.Context, ws *workspace.Workspace, input any) (cty.Value, error) {
	in := input.(*Input)
	if in.Command == "" {
		return cty.NilVal, fmt.Errorf("command must not be empty")
	}

	spec := shellexec.Spec{
		Shell:    in.Command,
		Dir:      ws.Path(in.Dir),
		ExtraEnv: renderEnv(in.Env),
	}
	if err := ws.Exec.Run(ctx, spec); err != nil {
		return cty.NilVal, err
	}
	return cty.NilVal, nil
}

// renderEnv produces sorted KEY=value entries so command invocations are
// deterministic.
func renderEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("run", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunCommand,
	})
}
