// Package environ snapshots the process environment once at startup. The
// snapshot is the only environment surface the rest of the pipeline sees:
// steps read configuration like RELEASE_CHANNEL or NODE_VERSION through HCL
// `env.*` expressions evaluated against it, and it never changes mid-run.
package environ

import (
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// secretSuffixes classify variables whose values must never reach logs.
var secretSuffixes = []string{"_TOKEN", "_SECRET", "_PASSWORD", "_KEY"}

// Snapshot is an immutable copy of the environment taken at startup.
type Snapshot struct {
	vars map[string]string
}

// Capture snapshots the current process environment.
func Capture() *Snapshot {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if name, val, ok := strings.Cut(kv, "="); ok {
			vars[name] = val
		}
	}
	return &Snapshot{vars: vars}
}

// FromMap builds a snapshot from an explicit set of variables. Tests use this
// to run pipelines against a controlled environment.
func FromMap(vars map[string]string) *Snapshot {
	copied := make(map[string]string, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	return &Snapshot{vars: copied}
}

// Lookup returns the value of a variable and whether it was set at capture time.
func (s *Snapshot) Lookup(name string) (string, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Environ renders the snapshot in the KEY=value form expected by os/exec.
func (s *Snapshot) Environ() []string {
	out := make([]string, 0, len(s.vars))
	for k, v := range s.vars {
		out = append(out, k+"="+v)
	}
	return out
}

// CtyObject exposes the snapshot as a cty object for HCL evaluation, so a
// pipeline can write `channel = env.RELEASE_CHANNEL`.
func (s *Snapshot) CtyObject() cty.Value {
	if len(s.vars) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(s.vars))
	for k, v := range s.vars {
		attrs[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(attrs)
}

// Redact replaces every occurrence of a secret-classified value in the given
// string with a placeholder. Step output is passed through here before it is
// logged, so a tool that echoes its environment cannot leak NPM_TOKEN.
func (s *Snapshot) Redact(text string) string {
	for name, val := range s.vars {
		if val == "" || !isSecretName(name) {
			continue
		}
		text = strings.ReplaceAll(text, val, "***")
	}
	return text
}

func isSecretName(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range secretSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}
