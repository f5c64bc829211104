package runtime_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shipline/shipline/internal/shellexec"
	"github.com/shipline/shipline/internal/testutil"
	"github.com/shipline/shipline/internal/workspace"
	"github.com/shipline/shipline/modules/runtime"
)

func TestRuntime_MajorVersionMatchesProvisioned(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner()
	runner.StubOutput("node --version", "v20.11.1")
	ws := &workspace.Workspace{Dir: t.TempDir(), Exec: runner}

	out, err := runtime.OnRunRuntime(context.Background(), ws, &runtime.Input{Version: "20"})
	require.NoError(t, err)
	require.Equal(t, "20.11.1", out.GetAttr("version").AsString())
	require.Equal(t, "https://registry.npmjs.org", out.GetAttr("registry").AsString())
}

func TestRuntime_VersionMismatchIsFatal(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner()
	runner.StubOutput("node --version", "v20.11.1")
	ws := &workspace.Workspace{Dir: t.TempDir(), Exec: runner}

	// "20.1" is not a prefix match for 20.11: segments match whole, not textually.
	_, err := runtime.OnRunRuntime(context.Background(), ws, &runtime.Input{Version: "20.1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not satisfy")
}

func TestRuntime_WritesAuthenticatedRegistryConfig(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner()
	runner.StubOutput("node --version", "v20.11.1")
	ws := &workspace.Workspace{Dir: t.TempDir(), Exec: runner}

	_, err := runtime.OnRunRuntime(context.Background(), ws, &runtime.Input{
		Version: "20",
		Token:   "npm_s3cr3t",
	})
	require.NoError(t, err)

	npmrc, err := os.ReadFile(filepath.Join(ws.Dir, ".npmrc"))
	require.NoError(t, err)
	require.Equal(t,
		"registry=https://registry.npmjs.org\n//registry.npmjs.org/:_authToken=npm_s3cr3t\n",
		string(npmrc))
}

func TestRuntime_CustomRegistryWithoutToken(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner()
	runner.StubOutput("node --version", "v22.2.0")
	ws := &workspace.Workspace{Dir: t.TempDir(), Exec: runner}

	out, err := runtime.OnRunRuntime(context.Background(), ws, &runtime.Input{
		Version:  "22",
		Registry: "https://npm.pkg.github.com",
	})
	require.NoError(t, err)
	require.Equal(t, "https://npm.pkg.github.com", out.GetAttr("registry").AsString())

	npmrc, err := os.ReadFile(filepath.Join(ws.Dir, ".npmrc"))
	require.NoError(t, err)
	require.Equal(t, "registry=https://npm.pkg.github.com\n", string(npmrc))
}

func TestRuntime_DryRunSkipsVerificationAndConfig(t *testing.T) {
	t.Parallel()

	// Dry runs use a runner whose canned query output would never satisfy a
	// pinned version, so the step must not consult it at all.
	ws := &workspace.Workspace{Dir: t.TempDir(), Exec: &shellexec.DryRunner{}, DryRun: true}

	out, err := runtime.OnRunRuntime(context.Background(), ws, &runtime.Input{
		Version: "20",
		Token:   "npm_s3cr3t",
	})
	require.NoError(t, err)
	require.Equal(t, "20", out.GetAttr("version").AsString())
	require.Equal(t, "https://registry.npmjs.org", out.GetAttr("registry").AsString())

	_, statErr := os.Stat(filepath.Join(ws.Dir, ".npmrc"))
	require.True(t, os.IsNotExist(statErr), "dry runs must not write registry config")
}

func TestRuntime_MissingRuntimeIsFatal(t *testing.T) {
	t.Parallel()

	// No stub for `node --version` stands in for a host without the runtime.
	ws := &workspace.Workspace{Dir: t.TempDir(), Exec: testutil.NewFakeRunner()}

	_, err := runtime.OnRunRuntime(context.Background(), ws, &runtime.Input{Version: "20"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "runtime is not available")
}
