package integration_tests

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/shipline/shipline/internal/engine"
	"github.com/shipline/shipline/internal/testutil"
)

// Test for: the run report records per-step outcomes and attempts
func TestPipeline_ReportRecordsOutcomes(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	pipelineHCL := `
		pipeline "release" {
			step "run" "install" {
				arguments {
					command = "pnpm install"
				}
			}
			step "run" "test" {
				arguments {
					command = "pnpm test"
				}
				retry {
					attempts = 3
				}
			}
			step "publish" "npm" {
				arguments {
					tag = "insiders"
				}
			}
		}
	`
	runner := testutil.NewFakeRunner()
	// Two failing attempts, a nil entry for the recovering third.
	runner.StubRunErrors("pnpm test",
		errors.New("1 test failed"),
		errors.New("1 test failed"),
		nil,
	)
	runner.StubRunErrors("npm publish --tag insiders", errors.New("E403 forbidden"))

	reportPath := filepath.Join(t.TempDir(), "report.yaml")

	// --- Act ---
	result := testutil.RunPipelineTest(t, pipelineHCL, testutil.HarnessOptions{
		Runner:     runner,
		ReportPath: reportPath,
	})

	// --- Assert ---
	require.Error(t, result.Err)

	raw, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var report engine.Report
	require.NoError(t, yaml.Unmarshal(raw, &report))

	require.Equal(t, "release", report.Pipeline)
	require.Equal(t, engine.StatusFailed, report.Status)
	require.Contains(t, report.Error, `step "npm" failed`)
	_, err = uuid.Parse(report.RunID)
	require.NoError(t, err, "run_id must be a valid UUID")
	require.False(t, report.FinishedAt.Before(report.StartedAt))

	require.Len(t, report.Steps, 3)

	require.Equal(t, engine.StatusSucceeded, report.Steps[0].Status)
	require.Equal(t, 1, report.Steps[0].Attempts)

	require.Equal(t, engine.StatusSucceeded, report.Steps[1].Status)
	require.Equal(t, 3, report.Steps[1].Attempts)

	require.Equal(t, engine.StatusFailed, report.Steps[2].Status)
	require.Equal(t, 1, report.Steps[2].Attempts)
	require.Contains(t, report.Steps[2].Error, "E403")
}

// Test for: skipped steps appear in the report as skipped
func TestPipeline_ReportMarksSkippedSteps(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	pipelineHCL := `
		pipeline "release" {
			step "run" "install" {
				arguments {
					command = "pnpm install"
				}
			}
			step "run" "build" {
				arguments {
					command = "pnpm build"
				}
			}
		}
	`
	runner := testutil.NewFakeRunner()
	runner.StubRunErrors("pnpm install", errors.New("ERR_PNPM_FETCH_404"))

	reportPath := filepath.Join(t.TempDir(), "report.yaml")

	// --- Act ---
	result := testutil.RunPipelineTest(t, pipelineHCL, testutil.HarnessOptions{
		Runner:     runner,
		ReportPath: reportPath,
	})

	// --- Assert ---
	require.Error(t, result.Err)

	raw, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var report engine.Report
	require.NoError(t, yaml.Unmarshal(raw, &report))

	require.Len(t, report.Steps, 2)
	require.Equal(t, engine.StatusFailed, report.Steps[0].Status)
	require.Equal(t, engine.StatusSkipped, report.Steps[1].Status)
	require.Zero(t, report.Steps[1].Attempts)
}
