// Package checkout fetches the repository contents at the triggering commit
// into the workspace. On a reused workspace it fetches and force-checks-out
// instead of recloning.
package checkout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

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
	Repository string `hcl:"repository"`
	Ref        string `hcl:"ref,optional"`
	Depth      int    `hcl:"depth,optional"`
}

// OnRunCheckout is the handler for the 'checkout' step.
func OnRunCheckout(ctx context.Context, ws *workspace.Workspace, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx)

	depth := in.Depth
	if depth <= 0 {
		depth = 1
	}

	if err := os.MkdirAll(ws.Dir, 0755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	if _, err := os.Stat(filepath.Join(ws.Dir, ".git")); err == nil {
		logger.Info("Reusing existing checkout.", "dir", ws.Dir)
		if err := fetchExisting(ctx, ws, in, depth); err != nil {
			return cty.NilVal, err
		}
	} else {
		logger.Info("Cloning repository.", "repository", in.Repository, "depth", depth)
		if err := clone(ctx, ws, in, depth); err != nil {
			return cty.NilVal, err
		}
	}

	head, err := ws.Exec.Output(ctx, shellexec.Spec{
		Argv: []string{"git", "rev-parse", "HEAD"},
		Dir:  ws.Dir,
	})
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to resolve checked-out commit: %w", err)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"dir": cty.StringVal(ws.Dir),
		"sha": cty.StringVal(head),
	}), nil
}

func clone(ctx context.Context, ws *workspace.Workspace, in *Input, depth int) error {
	err := ws.Exec.Run(ctx, shellexec.Spec{
		Argv: []string{"git", "clone", "--depth", strconv.Itoa(depth), in.Repository, ws.Dir},
	})
	if err != nil {
		return fmt.Errorf("failed to clone %q: %w", in.Repository, err)
	}
	if in.Ref == "" {
		return nil
	}
	return checkoutRef(ctx, ws, in.Ref, depth)
}

// fetchExisting refreshes a reused checkout. The workspace may hold a clone
// of anything, so origin is pointed at the requested repository first.
func fetchExisting(ctx context.Context, ws *workspace.Workspace, in *Input, depth int) error {
	err := ws.Exec.Run(ctx, shellexec.Spec{
		Argv: []string{"git", "remote", "set-url", "origin", in.Repository},
		Dir:  ws.Dir,
	})
	if err != nil {
		return fmt.Errorf("failed to point origin at %q: %w", in.Repository, err)
	}
	err = ws.Exec.Run(ctx, shellexec.Spec{
		Argv: []string{"git", "fetch", "--force", "--depth", strconv.Itoa(depth), "origin"},
		Dir:  ws.Dir,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch %q: %w", in.Repository, err)
	}
	if in.Ref == "" {
		return nil
	}
	return checkoutRef(ctx, ws, in.Ref, depth)
}

// checkoutRef pins the workspace to the triggering commit. The ref is fetched
// explicitly first: a shallow clone does not carry arbitrary commits.
func checkoutRef(ctx context.Context, ws *workspace.Workspace, ref string, depth int) error {
	err := ws.Exec.Run(ctx, shellexec.Spec{
		Argv: []string{"git", "fetch", "--depth", strconv.Itoa(depth), "origin", ref},
		Dir:  ws.Dir,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch ref %q: %w", ref, err)
	}
	err = ws.Exec.Run(ctx, shellexec.Spec{
		Argv: []string{"git", "checkout", "--force", "FETCH_HEAD"},
		Dir:  ws.Dir,
	})
	if err != nil {
		return fmt.Errorf("failed to check out ref %q: %w", ref, err)
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("checkout", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunCheckout,
	})
}
