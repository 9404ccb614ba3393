package domain

import (
	"context"
	"time"
)

// IdleDetector reports time since the last user input.
// Implementations: ioreg (macOS), Mutter IdleMonitor (GNOME), GetLastInputInfo (Windows).
type IdleDetector interface {
	IdleTime(ctx context.Context) (time.Duration, error)
}

// WindowProbe reports the foreground window.
type WindowProbe interface {
	// ActiveWindow returns nil, nil when no window can be determined.
	ActiveWindow(ctx context.Context) (*WindowInfo, error)

	// BrowserURL returns the active tab address for a browser app, or "" if unknown.
	BrowserURL(ctx context.Context, appName string) (string, error)
}

// IdentitySource supplies the active user and pause state.
// Re-read on every call; no caching across ticks.
type IdentitySource interface {
	Current() (Identity, error)
}

// EventSink accepts finished activity events.
// Implementations: track-event HTTP function, PostgreSQL, encrypted local journal.
type EventSink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// EventJournal is a local, queryable record of emitted events.
type EventJournal interface {
	EventSink

	// Recent returns up to limit events, newest first.
	Recent(limit int) ([]ActivityEvent, error)

	// Count returns the number of stored events.
	Count() (int, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// ProcessManager handles OS process queries.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Name returns the executable name of a process.
	Name(pid int) (string, error)

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int

	// GetParentPID returns the PID of the process that launched us.
	GetParentPID() int
}
