package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/shipline/shipline/internal/config"
	"github.com/shipline/shipline/internal/environ"
	"github.com/shipline/shipline/internal/registry"
	"github.com/shipline/shipline/internal/workspace"
)

func argsBody(t *testing.T, src string) hcl.Body {
	t.Helper()
	f, diags := hclsyntax.ParseConfig([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	return f.Body
}

func testWorkspace() *workspace.Workspace {
	return &workspace.Workspace{
		Dir: "/tmp/work",
		Env: environ.FromMap(map[string]string{"RELEASE_CHANNEL": "insiders"}),
	}
}

func TestRun_ExecutesStepsInOrderAndThreadsOutputs(t *testing.T) {
	t.Parallel()

	var order []string
	var publishedVersion string

	reg := registry.New()
	reg.RegisterStep("version", &registry.RegisteredStep{
		Fn: func(_ context.Context, _ *workspace.Workspace, _ any) (cty.Value, error) {
			order = append(order, "version")
			return cty.ObjectVal(map[string]cty.Value{
				"version": cty.StringVal("0.0.0-insiders.abc1234"),
			}), nil
		},
	})
	type publishInput struct {
		Version string `hcl:"version"`
		Tag     string `hcl:"tag"`
	}
	reg.RegisterStep("publish", &registry.RegisteredStep{
		NewInput: func() any { return new(publishInput) },
		Fn: func(_ context.Context, _ *workspace.Workspace, input any) (cty.Value, error) {
			order = append(order, "publish")
			in := input.(*publishInput)
			publishedVersion = in.Version
			require.Equal(t, "insiders", in.Tag)
			return cty.NilVal, nil
		},
	})

	pipeline := &config.Pipeline{
		Name: "release",
		Steps: []*config.Step{
			{Type: "version", Name: "version", Arguments: hcl.EmptyBody()},
			{Type: "publish", Name: "npm", Arguments: argsBody(t, `
				version = step.version.version
				tag     = env.RELEASE_CHANNEL
			`)},
		},
	}

	report, err := New(reg, testWorkspace()).Run(context.Background(), pipeline)
	require.NoError(t, err)
	require.Equal(t, []string{"version", "publish"}, order)
	require.Equal(t, "0.0.0-insiders.abc1234", publishedVersion)
	require.Equal(t, StatusSucceeded, report.Status)
	require.NotEmpty(t, report.RunID)
}

func TestRun_FatalFailureSkipsRemainingSteps(t *testing.T) {
	t.Parallel()

	var ran []string
	reg := registry.New()
	record := func(name string, err error) *registry.RegisteredStep {
		return &registry.RegisteredStep{
			Fn: func(context.Context, *workspace.Workspace, any) (cty.Value, error) {
				ran = append(ran, name)
				return cty.NilVal, err
			},
		}
	}
	installErr := errors.New("npm install exploded")
	reg.RegisterStep("install", record("install", installErr))
	reg.RegisterStep("build", record("build", nil))
	reg.RegisterStep("publish", record("publish", nil))

	pipeline := &config.Pipeline{
		Name: "release",
		Steps: []*config.Step{
			{Type: "install", Name: "install", Arguments: hcl.EmptyBody()},
			{Type: "build", Name: "build", Arguments: hcl.EmptyBody()},
			{Type: "publish", Name: "npm", Arguments: hcl.EmptyBody()},
		},
	}

	report, err := New(reg, testWorkspace()).Run(context.Background(), pipeline)
	require.Error(t, err)
	require.ErrorIs(t, err, installErr)

	// Only the failing step ran; everything downstream is skipped.
	require.Equal(t, []string{"install"}, ran)
	require.Equal(t, StatusFailed, report.Status)
	require.Equal(t, StatusFailed, report.Steps[0].Status)
	require.Equal(t, StatusSkipped, report.Steps[1].Status)
	require.Equal(t, StatusSkipped, report.Steps[2].Status)
}

func TestRun_RetrySucceedsWithinBudget(t *testing.T) {
	t.Parallel()

	invocations := 0
	reg := registry.New()
	reg.RegisterStep("test", &registry.RegisteredStep{
		Fn: func(context.Context, *workspace.Workspace, any) (cty.Value, error) {
			invocations++
			if invocations < 3 {
				return cty.NilVal, errors.New("flaky test run")
			}
			return cty.NilVal, nil
		},
	})

	pipeline := &config.Pipeline{
		Name: "release",
		Steps: []*config.Step{
			{Type: "test", Name: "test", Arguments: hcl.EmptyBody(), Retry: &config.Retry{Attempts: 3}},
		},
	}

	report, err := New(reg, testWorkspace()).Run(context.Background(), pipeline)
	require.NoError(t, err)
	require.Equal(t, 3, invocations)
	require.Equal(t, 3, report.Steps[0].Attempts)
	require.Equal(t, StatusSucceeded, report.Status)
}

func TestRun_RetryExhaustionFailsTheRun(t *testing.T) {
	t.Parallel()

	invocations := 0
	reg := registry.New()
	reg.RegisterStep("test", &registry.RegisteredStep{
		Fn: func(context.Context, *workspace.Workspace, any) (cty.Value, error) {
			invocations++
			return cty.NilVal, errors.New("still failing")
		},
	})

	pipeline := &config.Pipeline{
		Name: "release",
		Steps: []*config.Step{
			{Type: "test", Name: "test", Arguments: hcl.EmptyBody(), Retry: &config.Retry{Attempts: 3}},
		},
	}

	_, err := New(reg, testWorkspace()).Run(context.Background(), pipeline)
	require.Error(t, err)
	// The budget is a hard ceiling: exactly 3 invocations, never more.
	require.Equal(t, 3, invocations)
}

func TestRun_FinalizersRunOnlyAfterFullSuccess(t *testing.T) {
	t.Parallel()

	makePipeline := func(failPublish bool) (*config.Pipeline, *registry.Registry, *bool) {
		saved := false
		reg := registry.New()
		reg.RegisterStep("cache", &registry.RegisteredStep{
			Fn: func(context.Context, *workspace.Workspace, any) (cty.Value, error) {
				return cty.NilVal, nil
			},
			Finalize: func(context.Context, *workspace.Workspace, any) error {
				saved = true
				return nil
			},
		})
		reg.RegisterStep("publish", &registry.RegisteredStep{
			Fn: func(context.Context, *workspace.Workspace, any) (cty.Value, error) {
				if failPublish {
					return cty.NilVal, errors.New("registry rejected the artifact")
				}
				return cty.NilVal, nil
			},
		})
		p := &config.Pipeline{
			Name: "release",
			Steps: []*config.Step{
				{Type: "cache", Name: "deps", Arguments: hcl.EmptyBody()},
				{Type: "publish", Name: "npm", Arguments: hcl.EmptyBody()},
			},
		}
		return p, reg, &saved
	}

	p, reg, saved := makePipeline(false)
	_, err := New(reg, testWorkspace()).Run(context.Background(), p)
	require.NoError(t, err)
	require.True(t, *saved, "cache save must run after a successful pipeline")

	p, reg, saved = makePipeline(true)
	_, err = New(reg, testWorkspace()).Run(context.Background(), p)
	require.Error(t, err)
	require.False(t, *saved, "cache save must not run after a failed pipeline")
}

func TestRun_UnknownStepTypeIsFatal(t *testing.T) {
	t.Parallel()

	pipeline := &config.Pipeline{
		Name: "release",
		Steps: []*config.Step{
			{Type: "teleport", Name: "x", Arguments: hcl.EmptyBody()},
		},
	}

	_, err := New(registry.New(), testWorkspace()).Run(context.Background(), pipeline)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown step type")
}

func TestRun_FailedArgumentDecodeIsFatal(t *testing.T) {
	t.Parallel()

	type input struct {
		Version string `hcl:"version"`
	}
	reg := registry.New()
	reg.RegisterStep("publish", &registry.RegisteredStep{
		NewInput: func() any { return new(input) },
		Fn: func(context.Context, *workspace.Workspace, any) (cty.Value, error) {
			t.Fatal("handler must not run when its arguments fail to decode")
			return cty.NilVal, nil
		},
	})

	pipeline := &config.Pipeline{
		Name: "release",
		Steps: []*config.Step{
			// References a step output that does not exist.
			{Type: "publish", Name: "npm", Arguments: argsBody(t, "version = step.version.version")},
		},
	}

	_, err := New(reg, testWorkspace()).Run(context.Background(), pipeline)
	require.Error(t, err)
}
