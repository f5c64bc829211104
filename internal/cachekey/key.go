// Package cachekey composes dependency-cache keys. A key binds a cache entry
// to the operating system, the provisioned runtime version, a caller-chosen
// prefix, and the content hash of the dependency lockfile, so any change to
// the resolved dependency set produces a different key.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Key identifies one dependency-cache entry.
type Key struct {
	OS             string
	RuntimeVersion string
	Prefix         string
	LockfileSHA    string
}

// Compute hashes the lockfile at the given path and assembles the composite key.
func Compute(osName, runtimeVersion, prefix, lockfilePath string) (Key, error) {
	sum, err := fileSHA256(lockfilePath)
	if err != nil {
		return Key{}, fmt.Errorf("failed to hash lockfile %q: %w", lockfilePath, err)
	}
	return Key{
		OS:             osName,
		RuntimeVersion: runtimeVersion,
		Prefix:         prefix,
		LockfileSHA:    sum,
	}, nil
}

// String renders the key in the form used as a storage identifier, e.g.
// "linux-node20-deps-<sha256>". Segments are sanitized so the result is safe
// as a file or object name.
func (k Key) String() string {
	segments := []string{k.OS, k.RuntimeVersion, k.Prefix, k.LockfileSHA}
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if s == "" {
			continue
		}
		out = append(out, sanitize(s))
	}
	return strings.Join(out, "-")
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
