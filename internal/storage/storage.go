package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when a record does not exist on disk.
var ErrNotFound = errors.New("record not found")

// Store is the flat-file JSON persistence layer. One file per record,
// written via a temp file and os.Rename so readers never see a partial
// write. A given job is only ever written by the worker processing it,
// so no cross-process locking is needed at this scale.
type Store struct {
	dataDir string
}

// New creates a store rooted at dataDir, creating its subdirectories.
func New(dataDir string) (*Store, error) {
	for _, sub := range []string{"users", "jobs", "posts", "audio"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	return &Store{dataDir: dataDir}, nil
}

// DataDir returns the store's root directory.
func (s *Store) DataDir() string { return s.dataDir }

// PostsDir returns the directory holding scraped-post artifacts.
func (s *Store) PostsDir() string { return filepath.Join(s.dataDir, "posts") }

// AudioDir returns the audio output directory for a job. Outputs are
// namespaced per job so concurrent jobs cannot collide.
func (s *Store) AudioDir(jobID string) string {
	return filepath.Join(s.dataDir, "audio", jobID)
}

func (s *Store) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace record: %w", err)
	}
	return nil
}

func (s *Store) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read record: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}
