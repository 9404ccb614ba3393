package infra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/eliteGoblin/kronosd/internal/domain"
)

const defaultConnectTimeout = 10 * time.Second

// PostgresSink inserts events directly into an existing events table.
// The schema is owned by the backend; this sink never creates it.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink connects to dsn and verifies the connection.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("PostgreSQL connection string not provided")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	return newPostgresSink(ctx, db)
}

func newPostgresSink(ctx context.Context, db *sql.DB) (*PostgresSink, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// Record inserts one event.
func (s *PostgresSink) Record(ctx context.Context, ev domain.ActivityEvent) error {
	var url sql.NullString
	if ev.URL != "" {
		url = sql.NullString{String: ev.URL, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (user_id, timestamp, app_name, window_title, url, duration_seconds, is_idle)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.UserID, ev.Timestamp.UTC(), ev.AppName, ev.WindowTitle, url, ev.DurationSeconds, ev.IsIdle,
	)
	if err != nil {
		return fmt.Errorf("postgres insert: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// Ensure PostgresSink implements domain.EventSink.
var _ domain.EventSink = (*PostgresSink)(nil)
