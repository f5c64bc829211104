package config

import (
	"github.com/hashicorp/hcl/v2"
)

// Model is the unified, format-agnostic representation of a loaded pipeline
// definition.
type Model struct {
	Pipeline *Pipeline
}

// Pipeline is the format-agnostic representation of a `pipeline` block.
type Pipeline struct {
	Name        string
	Description string
	Steps       []*Step
}

// Step is the format-agnostic representation of a `step` block. Arguments
// stays an undecoded body: the engine decodes it against the live eval
// context right before the step runs.
type Step struct {
	Type      string
	Name      string
	Arguments hcl.Body
	Retry     *Retry
}

// Retry is the format-agnostic retry budget for a step.
type Retry struct {
	Attempts int
}

// Attempts returns the total invocation budget for the step: 1 without a
// retry block, the configured figure otherwise.
func (s *Step) Attempts() int {
	if s.Retry == nil || s.Retry.Attempts < 1 {
		return 1
	}
	return s.Retry.Attempts
}
