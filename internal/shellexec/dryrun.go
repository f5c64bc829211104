package shellexec

import (
	"context"

	"github.com/shipline/shipline/internal/ctxlog"
)

// DryRunner logs every command it is asked to execute and reports success
// without running anything. Queries return canned values so steps that derive
// state from tool output still complete.
type DryRunner struct {
	// QueryOutput is returned from Output calls. Defaults to "dry-run".
	QueryOutput string
}

// Run implements Runner.
func (d *DryRunner) Run(ctx context.Context, spec Spec) error {
	ctxlog.FromContext(ctx).Info("Dry run: skipping command.", "command", spec.Display(), "dir", spec.Dir)
	return nil
}

// Output implements Runner.
func (d *DryRunner) Output(ctx context.Context, spec Spec) (string, error) {
	ctxlog.FromContext(ctx).Info("Dry run: skipping query.", "command", spec.Display())
	if d.QueryOutput == "" {
		return "dry-run", nil
	}
	return d.QueryOutput, nil
}
