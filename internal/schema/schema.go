// Package schema declares the HCL shapes of a pipeline definition file. These
// structs mirror the on-disk syntax; the loader translates them into the
// format-agnostic model the engine consumes.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// Document is the top-level structure of one pipeline definition file.
type Document struct {
	Pipelines []*Pipeline `hcl:"pipeline,block"`
	Body      hcl.Body    `hcl:",remain"`
}

// Pipeline is a `pipeline` block: a named, strictly ordered list of steps.
type Pipeline struct {
	Name        string  `hcl:"name,label"`
	Description string  `hcl:"description,optional"`
	Steps       []*Step `hcl:"step,block"`
}

// Step is a `step` block. The first label selects the step type (checkout,
// run, cache, version, publish, dispatch, runtime); the second names this
// instance so later steps can reference its outputs as `step.<name>`.
type Step struct {
	Type      string    `hcl:"step_type,label"`
	Name      string    `hcl:"instance_name,label"`
	Arguments *StepArgs `hcl:"arguments,block"`
	Retry     *Retry    `hcl:"retry,block"`
}

// StepArgs holds the raw body of an `arguments` block. Its expressions are
// evaluated at execution time, when earlier step outputs are available.
type StepArgs struct {
	Body hcl.Body `hcl:",remain"`
}

// Retry bounds re-invocation of a failing step. attempts counts total
// invocations, so `attempts = 3` means at most two retries after the first
// failure. Attempts run back to back with no delay.
type Retry struct {
	Attempts int `hcl:"attempts"`
}
