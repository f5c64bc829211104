// Package manifest rewrites the version field of a package manifest
// (package.json) in place. The rewrite replaces only the bytes of the
// top-level version value, so key order, indentation and the trailing
// newline survive byte for byte, the way `npm version --no-git-tag-version`
// leaves them. No version-control tag is created.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// SetVersion overwrites the version field of the manifest at path.
func SetVersion(path, version string) error {
	if version == "" {
		return fmt.Errorf("version must not be empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest %q: %w", path, err)
	}

	start, end, err := versionSpan(raw)
	if err != nil {
		return fmt.Errorf("manifest %q: %w", path, err)
	}

	var updated []byte
	updated = append(updated, raw[:start]...)
	updated = append(updated, []byte(fmt.Sprintf("%q", version))...)
	updated = append(updated, raw[end:]...)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, updated, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write manifest %q: %w", path, err)
	}
	return nil
}

// versionSpan locates the byte range of the top-level version value,
// including its quotes. Nested objects may contain version keys of their
// own, so the scan walks decoder tokens and skips every non-matching value
// whole instead of matching text.
func versionSpan(raw []byte) (int, int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return 0, 0, fmt.Errorf("not valid JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return 0, 0, fmt.Errorf("root is not an object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return 0, 0, fmt.Errorf("not valid JSON: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return 0, 0, fmt.Errorf("malformed object key")
		}

		if key != "version" {
			var skipped json.RawMessage
			if err := dec.Decode(&skipped); err != nil {
				return 0, 0, fmt.Errorf("not valid JSON: %w", err)
			}
			continue
		}

		afterKey := int(dec.InputOffset())
		valTok, err := dec.Token()
		if err != nil {
			return 0, 0, fmt.Errorf("not valid JSON: %w", err)
		}
		if _, ok := valTok.(string); !ok {
			return 0, 0, fmt.Errorf("version field is not a string")
		}
		end := int(dec.InputOffset())

		// The value's opening quote is the first one after the key's colon.
		offset := bytes.IndexByte(raw[afterKey:end], '"')
		if offset < 0 {
			return 0, 0, fmt.Errorf("failed to locate version value")
		}
		return afterKey + offset, end, nil
	}
	return 0, 0, fmt.Errorf("has no version field")
}

// Version reads the current version field of the manifest at path.
func Version(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read manifest %q: %w", path, err)
	}
	var parsed struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("manifest %q is not valid JSON: %w", path, err)
	}
	return parsed.Version, nil
}
