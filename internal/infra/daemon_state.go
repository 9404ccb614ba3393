package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

const daemonStateFileName = "daemon.json"

// DaemonState describes the running tracker, for the status command.
type DaemonState struct {
	PID        int       `json:"pid"`
	ParentPID  int       `json:"parent_pid,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	AppVersion string    `json:"app_version,omitempty"`
	Platform   string    `json:"platform"`
}

// DaemonStateFile records the running daemon in the data directory.
type DaemonStateFile struct {
	path           string
	processManager domain.ProcessManager
}

// NewDaemonStateFile creates a state file in dataDir.
func NewDaemonStateFile(dataDir string, pm domain.ProcessManager) *DaemonStateFile {
	return &DaemonStateFile{
		path:           filepath.Join(dataDir, daemonStateFileName),
		processManager: pm,
	}
}

// Register saves the current daemon's state.
func (f *DaemonStateFile) Register(state DaemonState) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return atomicWriteJSON(f.path, state)
}

// Get returns the recorded state, or nil if none.
func (f *DaemonStateFile) Get() (*DaemonState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var state DaemonState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Running returns the recorded state if its PID is still alive.
func (f *DaemonStateFile) Running() (*DaemonState, bool) {
	state, err := f.Get()
	if err != nil || state == nil {
		return nil, false
	}
	return state, f.processManager.IsRunning(state.PID)
}

// Clear removes the state file if it still belongs to pid.
func (f *DaemonStateFile) Clear(pid int) error {
	state, err := f.Get()
	if err != nil || state == nil || state.PID != pid {
		return err
	}
	return os.Remove(f.path)
}

// atomicWriteJSON writes v to path atomically (write + rename).
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}
