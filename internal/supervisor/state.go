// Package supervisor restarts the render engine on failure or hang and
// records what it is doing in .kurokku/engine-state.json.
package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State tracks the supervisor's operational state, persisted to
// .kurokku/engine-state.json.
type State struct {
	PID             int       `json:"pid"`
	Attempt         int       `json:"attempt"`
	ConsecutiveErrs int       `json:"consecutive_errors"`
	LastOutputAt    time.Time `json:"last_output_at"`
	ConfigHash      string    `json:"config_hash"`
	Widget          string    `json:"widget"`
	Brightness      int       `json:"brightness"`
	LastError       string    `json:"last_error"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Stopped         bool      `json:"stopped"` // finished without error
}

// Running reports whether the state describes a live engine.
func (s State) Running() bool {
	return s.PID != 0 && !s.StartedAt.IsZero() && s.FinishedAt.IsZero()
}

// stateFileName is the path within the .kurokku directory.
const stateFileName = "engine-state.json"

// StateDirName is the directory that holds the state file.
const StateDirName = ".kurokku"

// StatePath is the state file location for dir.
func StatePath(dir string) string {
	return filepath.Join(dir, StateDirName, stateFileName)
}

// LoadState reads the state from .kurokku/engine-state.json in dir.
// Returns a zero State (not an error) if the file does not exist.
func LoadState(dir string) (State, error) {
	data, err := os.ReadFile(StatePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("supervisor: read state: %w", err)
	}

	var s State
	if jsonErr := json.Unmarshal(data, &s); jsonErr != nil {
		return State{}, fmt.Errorf("supervisor: parse state: %w", jsonErr)
	}
	return s, nil
}

// SaveState writes the state to .kurokku/engine-state.json in dir, creating
// the directory if needed. The file is written to a temporary name and
// renamed so readers never observe a partial write.
func SaveState(dir string, s State) error {
	stateDir := filepath.Join(dir, StateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("supervisor: create state dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("supervisor: marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(stateDir, ".engine-state-*.tmp")
	if err != nil {
		return fmt.Errorf("supervisor: create temp state: %w", err)
	}
	if _, writeErr := tmp.Write(data); writeErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("supervisor: write state: %w", writeErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("supervisor: close state: %w", closeErr)
	}
	if renameErr := os.Rename(tmp.Name(), StatePath(dir)); renameErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("supervisor: finalize state: %w", renameErr)
	}
	return nil
}
