// Package cachestore persists dependency-cache entries between pipeline runs.
// An entry is an opaque tar.gz blob addressed by a cachekey string. Two
// backends exist: a local directory for single-host runners, and an
// S3-compatible object store for fleets of ephemeral workers. Eviction is the
// backing store's concern, never the pipeline's.
package cachestore

import "context"

// Store is the contract the cache step runs against.
type Store interface {
	// Restore extracts the entry for key into root. It returns false with a
	// nil error on a miss: a missing entry degrades the run, it does not
	// fail it.
	Restore(ctx context.Context, key string, root string) (bool, error)

	// Save archives the given paths (relative to root) under key. Called
	// only after a fully successful run.
	Save(ctx context.Context, key string, root string, paths []string) error

	// Has reports whether an entry already exists, so a hit can skip the
	// post-run save.
	Has(ctx context.Context, key string) (bool, error)
}
