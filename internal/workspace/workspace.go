// Package workspace bundles the collaborators a step handler works against:
// the checkout directory, the environment snapshot, the command runner, the
// cache store and the dispatch client. Handlers receive one Workspace per run
// and never reach for process-global state, which is what makes them
// testable with fakes.
package workspace

import (
	"path/filepath"

	"github.com/shipline/shipline/internal/cachestore"
	"github.com/shipline/shipline/internal/dispatch"
	"github.com/shipline/shipline/internal/environ"
	"github.com/shipline/shipline/internal/shellexec"
)

// Workspace is the per-run execution environment shared by all steps.
type Workspace struct {
	// Dir is the root working directory; checkout places the repository
	// here and relative step paths resolve against it.
	Dir string

	// Env is the immutable environment snapshot taken at startup.
	Env *environ.Snapshot

	// Exec runs external tools.
	Exec shellexec.Runner

	// Cache persists dependency-cache entries across runs. Nil when no
	// cache backend is configured; the cache step then degrades to a miss.
	Cache cachestore.Store

	// Dispatch sends downstream notifications.
	Dispatch *dispatch.Client

	// DryRun suppresses outward side effects (publishes, dispatches);
	// commands are logged instead of executed.
	DryRun bool
}

// Path resolves a step-supplied path against the workspace root. Absolute
// paths are kept as given.
func (w *Workspace) Path(p string) string {
	if p == "" {
		return w.Dir
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.Dir, p)
}
