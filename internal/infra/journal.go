package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

const journalDBName = "journal.db"

// Journal implements domain.EventJournal using a SQLCipher encrypted
// SQLite database in the data directory.
type Journal struct {
	db     *sql.DB
	dbPath string
	keys   *JournalKeyFile // nil when opened with a bare key
}

// OpenJournal opens the journal in dataDir, creating its key on first use.
// A journal.db left behind without a key is moved aside, since nothing
// can decrypt it.
func OpenJournal(dataDir string) (*Journal, error) {
	keys := NewJournalKeyFile(dataDir)
	key, created, err := keys.LoadOrCreate()
	if err != nil {
		return nil, err
	}
	if created {
		dbPath := filepath.Join(dataDir, journalDBName)
		if _, err := os.Stat(dbPath); err == nil {
			orphan := fmt.Sprintf("%s.orphaned-%d", dbPath, time.Now().Unix())
			if err := os.Rename(dbPath, orphan); err != nil {
				return nil, fmt.Errorf("failed to move aside unreadable journal: %w", err)
			}
		}
	}
	j, err := NewJournal(dataDir, key)
	if err != nil {
		return nil, err
	}
	j.keys = keys
	return j, nil
}

// OpenExistingJournal opens the journal without creating a key.
// It returns ErrNoJournal if the daemon never wrote one.
func OpenExistingJournal(dataDir string) (*Journal, error) {
	keys := NewJournalKeyFile(dataDir)
	key, err := keys.Load()
	if err != nil {
		return nil, err
	}
	j, err := NewJournal(dataDir, key)
	if err != nil {
		return nil, err
	}
	j.keys = keys
	return j, nil
}

// NewJournal opens (or creates) the encrypted journal.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewJournal(dataDir string, key []byte) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, journalDBName)
	db, err := openCipherDB(dbPath, key)
	if err != nil {
		return nil, err
	}

	j := &Journal{db: db, dbPath: dbPath}
	if err := j.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

func openCipherDB(dbPath string, key []byte) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// One writer (the dispatcher) and occasional CLI readers.
	db.SetMaxOpenConns(1)

	// Wrong key surfaces here as "file is not a database"
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}
	return db, nil
}

// RotateKey re-encrypts the journal under a fresh key and replaces the
// key file. The new key is staged on disk before the database changes.
func (j *Journal) RotateKey() error {
	if j.keys == nil {
		return errors.New("journal has no key file to rotate")
	}
	key, err := newJournalKey()
	if err != nil {
		return err
	}
	pending, err := j.keys.stage(key)
	if err != nil {
		return err
	}
	if _, err := j.db.Exec(fmt.Sprintf(`PRAGMA rekey = "x'%s'"`, hex.EncodeToString(key))); err != nil {
		os.Remove(pending)
		return fmt.Errorf("failed to rekey journal: %w", err)
	}
	if err := j.keys.commit(pending); err != nil {
		return fmt.Errorf("journal rekeyed, new key left in %s: %w", pending, err)
	}

	// The pool's DSN still carries the old key.
	j.db.Close()
	db, err := openCipherDB(j.dbPath, key)
	if err != nil {
		return err
	}
	j.db = db
	return nil
}

func (j *Journal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		app_name TEXT NOT NULL,
		window_title TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		duration_seconds INTEGER NOT NULL,
		is_idle INTEGER NOT NULL DEFAULT 0,
		recorded_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS events_started_at ON events (started_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record stores an event. Re-recording the same ID is a no-op.
func (j *Journal) Record(ctx context.Context, ev domain.ActivityEvent) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events
			(id, user_id, started_at, app_name, window_title, url, duration_seconds, is_idle, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, ev.Timestamp.UnixMilli(), ev.AppName, ev.WindowTitle, ev.URL,
		ev.DurationSeconds, ev.IsIdle, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(limit int) ([]domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(`
		SELECT id, user_id, started_at, app_name, window_title, url, duration_seconds, is_idle
		FROM events ORDER BY started_at DESC, recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.ActivityEvent
	for rows.Next() {
		var ev domain.ActivityEvent
		var startedMs int64
		if err := rows.Scan(&ev.ID, &ev.UserID, &startedMs, &ev.AppName, &ev.WindowTitle,
			&ev.URL, &ev.DurationSeconds, &ev.IsIdle); err != nil {
			return nil, err
		}
		ev.Timestamp = time.UnixMilli(startedMs).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count returns the number of stored events.
func (j *Journal) Count() (int, error) {
	var n int
	err := j.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.dbPath
}

// Close releases the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Ensure Journal implements domain.EventJournal.
var _ domain.EventJournal = (*Journal)(nil)
