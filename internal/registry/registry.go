// Package registry holds the step handlers compiled into the binary. Each
// step type a pipeline may reference (checkout, run, cache, version, publish,
// dispatch, runtime) registers exactly one handler here at startup.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/shipline/shipline/internal/workspace"
)

// Module is the interface every step module implements to be registered.
type Module interface {
	Register(r *Registry)
}

// RunFunc executes one attempt of a step. input is the handler's decoded
// argument struct (from NewInput). The returned value, when non-nil, is
// published to later steps as `step.<name>`.
type RunFunc func(ctx context.Context, ws *workspace.Workspace, input any) (cty.Value, error)

// FinalizeFunc runs after the whole pipeline has succeeded, in reverse step
// order. The cache step uses it to save a populated dependency directory.
type FinalizeFunc func(ctx context.Context, ws *workspace.Workspace, input any) error

// RegisteredStep holds the compiled parts of one step type.
type RegisteredStep struct {
	// NewInput returns a fresh argument struct for HCL decoding. Nil means
	// the step takes no arguments.
	NewInput func() any

	// Fn is the step body. Required.
	Fn RunFunc

	// Finalize, when set, is queued after a successful run of the step and
	// executed once the whole pipeline succeeds.
	Finalize FinalizeFunc
}

// Registry maps step types to their handlers for one application instance.
type Registry struct {
	steps map[string]*RegisteredStep
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{steps: make(map[string]*RegisteredStep)}
}

// RegisterStep registers the handler for a step type. Double registration is
// a programmer error.
func (r *Registry) RegisterStep(stepType string, step *RegisteredStep) {
	if _, exists := r.steps[stepType]; exists {
		panic(fmt.Sprintf("step handler for type %q already registered", stepType))
	}
	if step.Fn == nil {
		panic(fmt.Sprintf("step handler for type %q has no Fn", stepType))
	}
	slog.Debug("Registering step handler.", "type", stepType)
	r.steps[stepType] = step
}

// Lookup returns the handler for a step type.
func (r *Registry) Lookup(stepType string) (*RegisteredStep, bool) {
	s, ok := r.steps[stepType]
	return s, ok
}

// Types lists the registered step types, sorted for stable logs.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.steps))
	for t := range r.steps {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
