package config

import "context"

// Loader is the interface for a format-specific pipeline definition loader.
type Loader interface {
	// Load reads every definition file under the given paths (files or
	// directories), translates them into the format-agnostic model, and
	// validates the result.
	Load(ctx context.Context, paths ...string) (*Model, error)
}
