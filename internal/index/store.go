package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// SpecsDir is the default output directory for derived artifacts.
	SpecsDir = "specs"
	// IndexFile is the task index filename inside SpecsDir.
	IndexFile = "task_index.json"
)

// IndexPath returns the default absolute path to the task index for a
// project root.
func IndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, SpecsDir, IndexFile)
}

// Store defines the persistence interface for the task index.
// Abstracted for testability (DIP).
type Store interface {
	Load(path string) (*TaskIndex, error)
	Save(path string, idx *TaskIndex) error
}

// FileStore implements Store using the local filesystem with
// pretty-printed JSON.
type FileStore struct{}

// NewFileStore creates a filesystem-backed index store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Load reads and parses a task index file.
func (fs *FileStore) Load(path string) (*TaskIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("task index not found at %s — run sync first", path)
		}
		return nil, fmt.Errorf("reading task index: %w", err)
	}

	var idx TaskIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing task index %s: %w", path, err)
	}
	return &idx, nil
}

// Save writes the task index, creating parent directories as needed.
// Counters are recomputed before every write so the persisted
// aggregates can never disagree with the task list.
func (fs *FileStore) Save(path string, idx *TaskIndex) error {
	idx.Recount()

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling task index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}
