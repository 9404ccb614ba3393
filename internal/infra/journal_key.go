package infra

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	journalKeyName = "journal.key"
	journalKeySize = 32 // SQLCipher raw key
)

// ErrNoJournal is returned when the data directory has no journal key yet.
var ErrNoJournal = errors.New("no journal in data directory")

// JournalKeyFile holds the journal's SQLCipher key, base64 encoded, in a
// 0600 file next to journal.db. Losing it makes the journal unreadable.
type JournalKeyFile struct {
	path string
}

// NewJournalKeyFile returns the key file for the journal in dataDir.
func NewJournalKeyFile(dataDir string) *JournalKeyFile {
	return &JournalKeyFile{path: filepath.Join(dataDir, journalKeyName)}
}

// Path returns the key file location.
func (f *JournalKeyFile) Path() string {
	return f.path
}

// Exists reports whether a key has been written.
func (f *JournalKeyFile) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Load reads and validates the stored key.
func (f *JournalKeyFile) Load() ([]byte, error) {
	encoded, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoJournal
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal key: %w", err)
	}
	// Hand edits usually leave a trailing newline.
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode journal key: %w", err)
	}
	if len(key) != journalKeySize {
		return nil, fmt.Errorf("invalid journal key size: got %d, want %d", len(key), journalKeySize)
	}
	return key, nil
}

// Save replaces the key atomically.
func (f *JournalKeyFile) Save(key []byte) error {
	pending, err := f.stage(key)
	if err != nil {
		return err
	}
	return f.commit(pending)
}

// stage writes key beside the live key file and returns the staged path.
func (f *JournalKeyFile) stage(key []byte) (string, error) {
	if len(key) != journalKeySize {
		return "", fmt.Errorf("invalid journal key size: got %d, want %d", len(key), journalKeySize)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return "", fmt.Errorf("failed to create key directory: %w", err)
	}
	pending := f.path + ".new"
	if err := os.WriteFile(pending, []byte(base64.StdEncoding.EncodeToString(key)), 0600); err != nil {
		return "", fmt.Errorf("failed to write journal key: %w", err)
	}
	return pending, nil
}

func (f *JournalKeyFile) commit(pending string) error {
	if err := os.Rename(pending, f.path); err != nil {
		os.Remove(pending)
		return fmt.Errorf("failed to install journal key: %w", err)
	}
	return nil
}

// LoadOrCreate returns the stored key, generating one on first use.
// created is true when a new key was written.
func (f *JournalKeyFile) LoadOrCreate() (key []byte, created bool, err error) {
	key, err = f.Load()
	if !errors.Is(err, ErrNoJournal) {
		return key, false, err
	}
	if key, err = newJournalKey(); err != nil {
		return nil, false, err
	}
	if err := f.Save(key); err != nil {
		return nil, false, err
	}
	return key, true, nil
}

func newJournalKey() ([]byte, error) {
	key := make([]byte, journalKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate journal key: %w", err)
	}
	return key, nil
}
