// Package hcl loads pipeline definitions written in HCL and translates them
// into the format-agnostic config model.
package hcl

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/shipline/shipline/internal/config"
	"github.com/shipline/shipline/internal/ctxlog"
	"github.com/shipline/shipline/internal/schema"
)

const fileExtension = ".hcl"

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a loader with a fresh parser.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load implements config.Loader.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := collectFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found under %v", fileExtension, paths)
	}
	logger.Debug("Pipeline definition files discovered.", "count", len(files))

	var pipelines []*schema.Pipeline
	for _, path := range files {
		doc, err := l.parseFile(path)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, doc.Pipelines...)
	}

	if len(pipelines) == 0 {
		return nil, fmt.Errorf("no pipeline block found in %v", paths)
	}
	if len(pipelines) > 1 {
		names := make([]string, 0, len(pipelines))
		for _, p := range pipelines {
			names = append(names, p.Name)
		}
		return nil, fmt.Errorf("exactly one pipeline is expected per run, found %d: %s",
			len(pipelines), strings.Join(names, ", "))
	}

	model := &config.Model{Pipeline: translatePipeline(pipelines[0])}
	if err := validate(model.Pipeline); err != nil {
		return nil, err
	}
	logger.Debug("Pipeline definition loaded.", "pipeline", model.Pipeline.Name, "steps", len(model.Pipeline.Steps))
	return model, nil
}

func (l *Loader) parseFile(path string) (*schema.Document, error) {
	file, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %q: %w", path, diags)
	}

	var doc schema.Document
	// No eval context at load time: step arguments are evaluated when the
	// step runs, once earlier outputs exist.
	if diags := gohcl.DecodeBody(file.Body, nil, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %q: %w", path, diags)
	}
	return &doc, nil
}

// collectFiles resolves each path to the definition files beneath it. A file
// path is taken as-is; a directory is walked recursively. Results are sorted
// for deterministic merging.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read pipeline path %q: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), fileExtension) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}
