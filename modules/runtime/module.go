// Package runtime verifies the provisioned language runtime and configures
// the package-registry endpoint for the later authenticated publish. The
// registry side effect is a workspace-local .npmrc: a registry line plus an
// auth-token line scoped to the registry host.
package runtime

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/shipline/shipline/internal/ctxlog"
	"github.com/shipline/shipline/internal/registry"
	"github.com/shipline/shipline/internal/shellexec"
	"github.com/shipline/shipline/internal/workspace"
)

const defaultRegistry = "https://registry.npmjs.org"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	// Version is the required runtime version, e.g. env.NODE_VERSION. A
	// major version matches any provisioned minor/patch of that major.
	Version string `hcl:"version"`

	// Registry overrides the package registry endpoint.
	Registry string `hcl:"registry,optional"`

	// Token, when set, is written as the registry auth token, typically
	// env.NPM_TOKEN.
	Token string `hcl:"token,optional"`
}

// OnRunRuntime is the handler for the 'runtime' step.
func OnRunRuntime(ctx context.Context, ws *workspace.Workspace, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx)

	registryURL := in.Registry
	if registryURL == "" {
		registryURL = defaultRegistry
	}

	if ws.DryRun {
		logger.Info("Dry run: skipping runtime verification and registry config.",
			"requested", in.Version, "registry", registryURL)
		return cty.ObjectVal(map[string]cty.Value{
			"version":  cty.StringVal(strings.TrimPrefix(in.Version, "v")),
			"registry": cty.StringVal(registryURL),
		}), nil
	}

	provisioned, err := ws.Exec.Output(ctx, shellexec.Spec{Argv: []string{"node", "--version"}})
	if err != nil {
		return cty.NilVal, fmt.Errorf("runtime is not available: %w", err)
	}
	provisioned = strings.TrimPrefix(provisioned, "v")

	if !versionSatisfies(provisioned, in.Version) {
		return cty.NilVal, fmt.Errorf("provisioned runtime %s does not satisfy requested version %s", provisioned, in.Version)
	}
	logger.Info("Runtime verified.", "provisioned", provisioned, "requested", in.Version)

	if err := writeRegistryConfig(ws, registryURL, in.Token); err != nil {
		return cty.NilVal, err
	}
	logger.Info("Package registry configured.", "registry", registryURL, "authenticated", in.Token != "")

	return cty.ObjectVal(map[string]cty.Value{
		"version":  cty.StringVal(provisioned),
		"registry": cty.StringVal(registryURL),
	}), nil
}

// versionSatisfies matches a provisioned version against a request that may
// omit trailing segments: "20" matches "20.11.1", "20.1" does not match
// "20.11.1".
func versionSatisfies(provisioned, requested string) bool {
	requested = strings.TrimPrefix(requested, "v")
	if requested == "" {
		return true
	}
	return provisioned == requested || strings.HasPrefix(provisioned, requested+".")
}

func writeRegistryConfig(ws *workspace.Workspace, registryURL, token string) error {
	u, err := url.Parse(registryURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid registry url %q", registryURL)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "registry=%s\n", registryURL)
	if token != "" {
		fmt.Fprintf(&b, "//%s/:_authToken=%s\n", u.Host, token)
	}

	path := filepath.Join(ws.Dir, ".npmrc")
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write registry config: %w", err)
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("runtime", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunRuntime,
	})
}
