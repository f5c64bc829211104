// Package gitver derives pre-release version strings from the repository
// state. Insiders-style builds are versioned as 0.0.0-<channel>.<short-sha>,
// which keeps them unordered relative to real releases while staying
// traceable to a commit.
package gitver

import (
	"context"
	"fmt"
	"strings"

	"github.com/shipline/shipline/internal/shellexec"
)

// shortSHALength matches the abbreviation git itself would pick for small
// repos while staying stable as history grows.
const shortSHALength = 7

// ShortSHA resolves the abbreviated hash of HEAD in the given repository.
func ShortSHA(ctx context.Context, runner shellexec.Runner, dir string) (string, error) {
	out, err := runner.Output(ctx, shellexec.Spec{
		Argv: []string{"git", "rev-parse", fmt.Sprintf("--short=%d", shortSHALength), "HEAD"},
		Dir:  dir,
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve short commit hash: %w", err)
	}
	if out == "" {
		return "", fmt.Errorf("git returned an empty commit hash")
	}
	return out, nil
}

// Prerelease renders the pre-release version for a channel and short hash.
// The result is never "v"-prefixed.
func Prerelease(channel, shortSHA string) (string, error) {
	if channel == "" {
		return "", fmt.Errorf("release channel must not be empty")
	}
	if shortSHA == "" {
		return "", fmt.Errorf("short commit hash must not be empty")
	}
	if strings.ContainsAny(channel, " \t") {
		return "", fmt.Errorf("release channel %q must not contain whitespace", channel)
	}
	return fmt.Sprintf("0.0.0-%s.%s", channel, shortSHA), nil
}
