package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const releasePipelineHCL = `
pipeline "release-insiders" {
  description = "Publish an insiders build on every push to main."

  step "checkout" "source" {
    arguments {
      repository = "https://github.com/tailwindlabs/tailwindcss.git"
    }
  }

  step "run" "test" {
    arguments {
      command = "npm run test"
    }
    retry {
      attempts = 3
    }
  }

  step "publish" "npm" {
    arguments {
      tag = env.RELEASE_CHANNEL
    }
  }
}
`

func writeDefinition(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ParsesPipelineInOrder(t *testing.T) {
	t.Parallel()

	path := writeDefinition(t, "release.hcl", releasePipelineHCL)
	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	p := model.Pipeline
	require.Equal(t, "release-insiders", p.Name)
	require.Len(t, p.Steps, 3)

	// Declaration order is execution order.
	type stepIdentity struct{ Type, Name string }
	var got []stepIdentity
	for _, s := range p.Steps {
		got = append(got, stepIdentity{Type: s.Type, Name: s.Name})
	}
	expected := []stepIdentity{
		{Type: "checkout", Name: "source"},
		{Type: "run", Name: "test"},
		{Type: "publish", Name: "npm"},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("translated steps mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, 1, p.Steps[0].Attempts())
	require.Equal(t, 3, p.Steps[1].Attempts())
}

func TestLoad_DirectoryDiscovery(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "release.hcl"), []byte(releasePipelineHCL), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	model, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, "release-insiders", model.Pipeline.Name)
}

func TestLoad_RejectsMultiplePipelines(t *testing.T) {
	t.Parallel()

	extra := `
pipeline "another" {
  step "run" "x" {
    arguments { command = "true" }
  }
}
`
	path := writeDefinition(t, "both.hcl", releasePipelineHCL+extra)
	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exactly one pipeline")
}

func TestLoad_RejectsDuplicateStepNames(t *testing.T) {
	t.Parallel()

	dup := `
pipeline "dupes" {
  step "run" "build" {
    arguments { command = "npm run build" }
  }
  step "run" "build" {
    arguments { command = "npm run build" }
  }
}
`
	path := writeDefinition(t, "dupes.hcl", dup)
	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "more than once")
}

func TestLoad_RejectsInvalidRetryBudget(t *testing.T) {
	t.Parallel()

	bad := `
pipeline "bad-retry" {
  step "run" "test" {
    arguments { command = "npm run test" }
    retry { attempts = 0 }
  }
}
`
	path := writeDefinition(t, "bad.hcl", bad)
	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
}

func TestLoad_RejectsMalformedHCL(t *testing.T) {
	t.Parallel()

	path := writeDefinition(t, "broken.hcl", `pipeline "x" {`)
	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse")
}

func TestLoad_MissingPath(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "absent.hcl"))
	require.Error(t, err)
}
