// Package runstate persists the pointer to the active run between sessions,
// so a reloaded client can resume state polling where it left off.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const runFile = "run.json"

type blob struct {
	RunID string `json:"runId"`
}

// Store reads and writes the run-id blob in the client data dir.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, runFile)
}

// Load returns the persisted run id, or "" when none is stored. A corrupt
// blob reads as no run.
func (s *Store) Load() string {
	data, err := os.ReadFile(s.path())
	if err != nil {
		return ""
	}
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return ""
	}
	return b.RunID
}

// Save stores the active run id.
func (s *Store) Save(runID string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.Marshal(blob{RunID: runID})
	if err != nil {
		return fmt.Errorf("encode run state: %w", err)
	}
	if err := os.WriteFile(s.path(), data, 0o644); err != nil {
		return fmt.Errorf("write run state: %w", err)
	}
	return nil
}

// Clear drops the persisted run pointer, used when a run ends.
func (s *Store) Clear() error {
	err := os.Remove(s.path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear run state: %w", err)
	}
	return nil
}
