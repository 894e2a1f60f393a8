package metadata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Snapshot is the metadata of one environment as stored on disk or in Redis.
// Attributes are keyed by entity logical name.
type Snapshot struct {
	Entities   []EntitySuggestion               `json:"entities"   yaml:"entities"`
	Attributes map[string][]AttributeSuggestion `json:"attributes" yaml:"attributes"`
}

// snapshotExts are the extensions tried, in order, for an environment file.
// JSON is read with the YAML decoder.
var snapshotExts = []string{".yaml", ".yml", ".json"}

// LoadSnapshot reads a YAML or JSON snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var snap Snapshot

	err = yaml.Unmarshal(data, &snap)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	return &snap, nil
}

// FileRepository serves metadata from a directory of per-environment
// snapshot files named <environment>.yaml (or .yml, .json).
// Files are read on every call, so edits show up once the caller's cache
// drops the environment.
type FileRepository struct {
	dir string
}

// NewFileRepository creates a repository reading snapshots from dir.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

// EntitySuggestions implements Repository.
func (r *FileRepository) EntitySuggestions(ctx context.Context, environmentID string) ([]EntitySuggestion, error) {
	snap, err := r.snapshot(ctx, environmentID)
	if err != nil {
		return nil, err
	}

	return snap.Entities, nil
}

// AttributeSuggestions implements Repository.
func (r *FileRepository) AttributeSuggestions(
	ctx context.Context,
	environmentID, entity string,
) ([]AttributeSuggestion, error) {
	snap, err := r.snapshot(ctx, environmentID)
	if err != nil {
		return nil, err
	}

	attrs, ok := snap.Attributes[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownEntity, environmentID, entity)
	}

	return attrs, nil
}

// Environments lists the environments with a snapshot file in the directory.
func (r *FileRepository) Environments() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)

	var envs []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		ext := filepath.Ext(e.Name())
		for _, want := range snapshotExts {
			if ext != want {
				continue
			}

			env := e.Name()[:len(e.Name())-len(ext)]
			if !seen[env] {
				seen[env] = true
				envs = append(envs, env)
			}
		}
	}

	return envs, nil
}

func (r *FileRepository) snapshot(ctx context.Context, environmentID string) (*Snapshot, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	// Environment ids name files; reject anything that would escape dir.
	if environmentID == "" || filepath.Base(environmentID) != environmentID {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvironment, environmentID)
	}

	for _, ext := range snapshotExts {
		snap, err := LoadSnapshot(filepath.Join(r.dir, environmentID+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return nil, err
		}

		return snap, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownEnvironment, environmentID)
}
