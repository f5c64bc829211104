package cachestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shipline/shipline/internal/ctxlog"
)

const indexFile = "index.yaml"

// FSStore keeps cache entries as tar.gz files in a local directory, with a
// small YAML index recording when each entry was written. The index is
// informational only; the blobs are the source of truth.
type FSStore struct {
	root string
}

type fsIndex struct {
	Entries []fsIndexEntry `yaml:"entries"`
}

type fsIndexEntry struct {
	Key       string    `yaml:"key"`
	SizeBytes int64     `yaml:"size_bytes"`
	CreatedAt time.Time `yaml:"created_at"`
}

// NewFSStore opens (creating if needed) a filesystem-backed store rooted at dir.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %q: %w", dir, err)
	}
	return &FSStore{root: dir}, nil
}

func (s *FSStore) blobPath(key string) string {
	return filepath.Join(s.root, key+".tar.gz")
}

// Has implements Store.
func (s *FSStore) Has(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.blobPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Restore implements Store.
func (s *FSStore) Restore(ctx context.Context, key string, root string) (bool, error) {
	logger := ctxlog.FromContext(ctx)

	f, err := os.Open(s.blobPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	if err := unpack(f, root); err != nil {
		return false, fmt.Errorf("failed to restore cache entry %q: %w", key, err)
	}
	logger.Debug("Cache entry restored from filesystem store.", "key", key)
	return true, nil
}

// Save implements Store.
func (s *FSStore) Save(ctx context.Context, key string, root string, paths []string) error {
	logger := ctxlog.FromContext(ctx)

	// Write through a temp file so a crashed save never leaves a torn blob
	// behind a valid key.
	tmp, err := os.CreateTemp(s.root, ".partial-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := pack(tmp, root, paths); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to archive cache entry %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.blobPath(key)); err != nil {
		return err
	}

	if err := s.appendIndex(key); err != nil {
		// The blob landed; a stale index is not worth failing the save for.
		logger.Warn("Failed to update cache index.", "key", key, "error", err)
	}
	logger.Debug("Cache entry saved to filesystem store.", "key", key)
	return nil
}

func (s *FSStore) appendIndex(key string) error {
	indexPath := filepath.Join(s.root, indexFile)

	var idx fsIndex
	if raw, err := os.ReadFile(indexPath); err == nil {
		if err := yaml.Unmarshal(raw, &idx); err != nil {
			idx = fsIndex{}
		}
	}

	info, err := os.Stat(s.blobPath(key))
	if err != nil {
		return err
	}
	idx.Entries = append(idx.Entries, fsIndexEntry{
		Key:       key,
		SizeBytes: info.Size(),
		CreatedAt: time.Now().UTC(),
	})

	raw, err := yaml.Marshal(&idx)
	if err != nil {
		return err
	}
	return os.WriteFile(indexPath, raw, 0644)
}
