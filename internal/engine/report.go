package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/shipline/shipline/internal/config"
)

// Step and run statuses as they appear in the report.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Report summarizes one pipeline run: overall status plus per-step outcome,
// attempt count and duration.
type Report struct {
	Pipeline   string        `yaml:"pipeline"`
	RunID      string        `yaml:"run_id"`
	Status     string        `yaml:"status"`
	StartedAt  time.Time     `yaml:"started_at"`
	FinishedAt time.Time     `yaml:"finished_at"`
	Error      string        `yaml:"error,omitempty"`
	Steps      []*StepReport `yaml:"steps"`
}

// StepReport is the per-step slice of a Report.
type StepReport struct {
	Type     string        `yaml:"type"`
	Name     string        `yaml:"name"`
	Status   string        `yaml:"status"`
	Attempts int           `yaml:"attempts"`
	Duration time.Duration `yaml:"duration"`
	Error    string        `yaml:"error,omitempty"`
}

func newReport(pipeline string) *Report {
	return &Report{
		Pipeline:  pipeline,
		RunID:     uuid.NewString(),
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

func (r *Report) addStep(step *config.Step) *StepReport {
	sr := &StepReport{Type: step.Type, Name: step.Name, Status: StatusPending}
	r.Steps = append(r.Steps, sr)
	return sr
}

func (r *Report) finish(runErr error) {
	r.FinishedAt = time.Now().UTC()
	if runErr != nil {
		r.Status = StatusFailed
		r.Error = runErr.Error()
		return
	}
	r.Status = StatusSucceeded
}

// WriteFile marshals the report as YAML to the given path.
func (r *Report) WriteFile(path string) error {
	raw, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write run report %q: %w", path, err)
	}
	return nil
}
