// Package engine executes a loaded pipeline: every step in declaration
// order, each blocking until done, halting the run at the first fatal
// failure. The only recovery construct is a per-step attempt budget, applied
// back to back with no delay. After a fully successful run, queued
// finalizers (cache saves) execute in reverse order.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"

	"github.com/shipline/shipline/internal/config"
	"github.com/shipline/shipline/internal/ctxlog"
	"github.com/shipline/shipline/internal/registry"
	"github.com/shipline/shipline/internal/workspace"
)

// Engine runs pipelines against a registry of step handlers and a workspace.
type Engine struct {
	registry *registry.Registry
	ws       *workspace.Workspace
}

// New creates an engine.
func New(reg *registry.Registry, ws *workspace.Workspace) *Engine {
	return &Engine{registry: reg, ws: ws}
}

// finalizer is a deferred post-success action queued by a completed step.
type finalizer struct {
	stepName string
	fn       registry.FinalizeFunc
	input    any
}

// Run executes the pipeline and returns its report. The returned error is the
// first fatal step failure, already reflected in the report.
func (e *Engine) Run(ctx context.Context, p *config.Pipeline) (*Report, error) {
	report := newReport(p.Name)
	logger := ctxlog.FromContext(ctx).With("pipeline", p.Name, "run_id", report.RunID)
	ctx = ctxlog.WithLogger(ctx, logger)

	outputs := make(map[string]cty.Value)
	var finalizers []finalizer
	var runErr error

	for _, step := range p.Steps {
		sr := report.addStep(step)

		if runErr != nil || ctx.Err() != nil {
			logger.Info("⏭️ Skipping step.", "step", step.Name)
			sr.Status = StatusSkipped
			continue
		}

		stepLogger := logger.With("step", step.Name, "type", step.Type)
		stepCtx := ctxlog.WithLogger(ctx, stepLogger)
		started := time.Now()
		sr.Status = StatusRunning

		output, fin, attempts, err := e.runStep(stepCtx, step, outputs)
		sr.Attempts = attempts
		sr.Duration = time.Since(started)

		if err != nil {
			stepLogger.Error("❌ Step failed.", "attempts", attempts, "error", err)
			sr.Status = StatusFailed
			sr.Error = err.Error()
			runErr = fmt.Errorf("step %q failed: %w", step.Name, err)
			continue
		}

		stepLogger.Info("✅ Finished step.", "attempts", attempts)
		sr.Status = StatusSucceeded
		if !output.IsNull() {
			outputs[step.Name] = output
		}
		if fin != nil {
			finalizers = append(finalizers, *fin)
		}
	}

	if runErr == nil {
		e.runFinalizers(ctx, finalizers)
	}

	report.finish(runErr)
	return report, runErr
}

// runStep decodes the step's arguments against the live eval context and
// drives its attempt loop.
func (e *Engine) runStep(ctx context.Context, step *config.Step, outputs map[string]cty.Value) (cty.Value, *finalizer, int, error) {
	logger := ctxlog.FromContext(ctx)

	handler, ok := e.registry.Lookup(step.Type)
	if !ok {
		return cty.NilVal, nil, 0, fmt.Errorf("unknown step type %q", step.Type)
	}

	var input any
	if handler.NewInput != nil {
		input = handler.NewInput()
		if diags := gohcl.DecodeBody(step.Arguments, e.evalContext(outputs), input); diags.HasErrors() {
			return cty.NilVal, nil, 0, fmt.Errorf("failed to decode arguments: %w", diags)
		}
	}

	logger.Info("▶️ Starting step.")

	budget := step.Attempts()
	var lastErr error
	for attempt := 1; attempt <= budget; attempt++ {
		if attempt > 1 {
			logger.Warn("🔁 Retrying step.", "attempt", attempt, "budget", budget)
		}
		output, err := handler.Fn(ctx, e.ws, input)
		if err == nil {
			var fin *finalizer
			if handler.Finalize != nil {
				fin = &finalizer{stepName: step.Name, fn: handler.Finalize, input: input}
			}
			return output, fin, attempt, nil
		}
		lastErr = err
		logger.Warn("Step attempt failed.", "attempt", attempt, "budget", budget, "error", err)

		if ctx.Err() != nil {
			return cty.NilVal, nil, attempt, ctx.Err()
		}
	}
	return cty.NilVal, nil, budget, lastErr
}

// runFinalizers executes queued post-success actions in reverse order. A
// failed finalizer degrades the artifact (an unsaved cache) but never the
// completed run.
func (e *Engine) runFinalizers(ctx context.Context, finalizers []finalizer) {
	logger := ctxlog.FromContext(ctx)
	for i := len(finalizers) - 1; i >= 0; i-- {
		fin := finalizers[i]
		logger.Debug("Running post-run finalizer.", "step", fin.stepName)
		if err := fin.fn(ctx, e.ws, fin.input); err != nil {
			logger.Warn("Post-run finalizer failed.", "step", fin.stepName, "error", err)
		}
	}
}

// evalContext builds the HCL evaluation context for a step: the environment
// snapshot under `env`, and completed step outputs under `step.<name>`.
func (e *Engine) evalContext(outputs map[string]cty.Value) *hcl.EvalContext {
	vars := map[string]cty.Value{
		"env": e.ws.Env.CtyObject(),
	}
	if len(outputs) > 0 {
		vars["step"] = cty.ObjectVal(outputs)
	}
	return &hcl.EvalContext{Variables: vars}
}
