package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

// IdentityFileName is written by the desktop app on sign-in.
const IdentityFileName = "user.json"

// IdentityFile implements domain.IdentitySource backed by a small JSON file
// that another process may rewrite at any time.
type IdentityFile struct {
	path string
}

// NewIdentityFile creates an identity source reading path.
func NewIdentityFile(path string) *IdentityFile {
	return &IdentityFile{path: path}
}

// Path returns the identity file location.
func (f *IdentityFile) Path() string {
	return f.path
}

// Current re-reads the file. A missing or malformed file is reported as
// an empty identity (no active user), never as an error.
func (f *IdentityFile) Current() (domain.Identity, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Identity{}, nil
		}
		return domain.Identity{}, fmt.Errorf("failed to read identity file: %w", err)
	}

	var id domain.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return domain.Identity{}, nil
	}
	return id, nil
}

// Save writes the identity atomically, preserving unknown keys the desktop app may own.
func (f *IdentityFile) Save(id domain.Identity) error {
	doc := map[string]any{}
	if data, err := os.ReadFile(f.path); err == nil {
		_ = json.Unmarshal(data, &doc)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	doc["userId"] = id.UserID
	doc["paused"] = id.Paused

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create identity directory: %w", err)
	}
	return atomicWriteJSON(f.path, doc)
}

// SetPaused flips the pause flag, keeping the user.
func (f *IdentityFile) SetPaused(paused bool) error {
	id, err := f.Current()
	if err != nil {
		return err
	}
	if id.UserID == "" {
		return domain.ErrNoIdentity
	}
	id.Paused = paused
	return f.Save(id)
}

// Ensure IdentityFile implements domain.IdentitySource.
var _ domain.IdentitySource = (*IdentityFile)(nil)
