// Package shellexec runs the external tools a release pipeline delegates to:
// git, the package manager, build and test scripts. Every invocation goes
// through the Runner interface so steps can be exercised in tests without
// touching the host.
package shellexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shipline/shipline/internal/ctxlog"
)

// Spec describes a single external command invocation.
type Spec struct {
	// Argv invokes a program directly, bypassing the shell. Used for tool
	// invocations the runner composes itself (git, npm).
	Argv []string

	// Shell is a command line executed via `sh -c`. Used for user-authored
	// pipeline commands, which may rely on shell syntax. Mutually exclusive
	// with Argv.
	Shell string

	// Dir is the working directory. Empty means the process working directory.
	Dir string

	// ExtraEnv entries (KEY=value) are appended to the runner's base
	// environment for this invocation only.
	ExtraEnv []string
}

// Display renders the spec for logging.
func (s Spec) Display() string {
	if s.Shell != "" {
		return s.Shell
	}
	return strings.Join(s.Argv, " ")
}

// Runner executes external commands on behalf of pipeline steps.
type Runner interface {
	// Run executes the command, streaming its output to the run log. A
	// non-zero exit is returned as an error.
	Run(ctx context.Context, spec Spec) error

	// Output executes the command and returns its trimmed stdout. Used for
	// short queries like `git rev-parse`.
	Output(ctx context.Context, spec Spec) (string, error)
}

// ExecRunner is the production Runner backed by os/exec. It carries the run's
// environment snapshot and a redaction function applied to all logged output.
type ExecRunner struct {
	baseEnv []string
	redact  func(string) string
}

// NewExecRunner builds a runner over the given base environment. redact may
// be nil when no secret masking is required.
func NewExecRunner(baseEnv []string, redact func(string) string) *ExecRunner {
	if redact == nil {
		redact = func(s string) string { return s }
	}
	return &ExecRunner{baseEnv: baseEnv, redact: redact}
}

func (r *ExecRunner) command(ctx context.Context, spec Spec) (*exec.Cmd, error) {
	var cmd *exec.Cmd
	switch {
	case spec.Shell != "" && len(spec.Argv) > 0:
		return nil, fmt.Errorf("command spec sets both Argv and Shell")
	case spec.Shell != "":
		cmd = exec.CommandContext(ctx, "sh", "-c", spec.Shell)
	case len(spec.Argv) > 0:
		cmd = exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	default:
		return nil, fmt.Errorf("command spec is empty")
	}
	cmd.Dir = spec.Dir
	cmd.Env = append(append([]string{}, r.baseEnv...), spec.ExtraEnv...)
	return cmd, nil
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) error {
	logger := ctxlog.FromContext(ctx)
	cmd, err := r.command(ctx, spec)
	if err != nil {
		return err
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.Debug("Executing command.", "command", spec.Display(), "dir", spec.Dir)
	runErr := cmd.Run()

	for _, line := range strings.Split(strings.TrimRight(output.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		logger.Info(r.redact(line), "source", "tool")
	}

	if runErr != nil {
		return fmt.Errorf("command %q failed: %w", spec.Display(), runErr)
	}
	return nil
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, spec Spec) (string, error) {
	cmd, err := r.command(ctx, spec)
	if err != nil {
		return "", err
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("command %q failed: %w (stderr: %s)",
			spec.Display(), err, r.redact(strings.TrimSpace(stderr.String())))
	}
	return strings.TrimSpace(string(out)), nil
}
