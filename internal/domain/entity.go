// Package domain contains core tracking entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"strings"
	"time"
)

// Sentinel values used when no real window describes the user's activity.
const (
	IdleApp    = "System"
	IdleTitle  = "Away"
	UnknownApp = "Unknown"
)

var (
	// ErrUnsupportedPlatform is returned by probes on operating systems without a backend.
	ErrUnsupportedPlatform = errors.New("platform not supported")

	// ErrProbeUnavailable means the OS API exists but could not answer (permission, no session).
	ErrProbeUnavailable = errors.New("probe unavailable")

	// ErrNoIdentity means no signed-in user is present in the identity file.
	ErrNoIdentity = errors.New("no active identity")
)

// WindowInfo is what a WindowProbe reports about the foreground window.
type WindowInfo struct {
	AppName     string
	WindowTitle string
	PID         int
}

// RawSample is produced once per poll tick.
type RawSample struct {
	AppName     string
	WindowTitle string
	URL         string // empty when unknown or not a browser
	IsIdle      bool
	Timestamp   time.Time
}

// TrackedWindow is the currently-open, not-yet-emitted activity segment.
type TrackedWindow struct {
	AppName     string
	WindowTitle string
	URL         string
	IsIdle      bool
}

// WindowFromSample builds the segment description carried by a sample.
func WindowFromSample(s RawSample) TrackedWindow {
	return TrackedWindow{
		AppName:     s.AppName,
		WindowTitle: s.WindowTitle,
		URL:         s.URL,
		IsIdle:      s.IsIdle,
	}
}

// ActivityEvent is a closed segment, handed to the sinks exactly once.
type ActivityEvent struct {
	ID              string
	UserID          string
	Timestamp       time.Time // segment start
	AppName         string
	WindowTitle     string
	URL             string
	DurationSeconds int
	IsIdle          bool
}

// Identity is the signed-in user and pause flag written by the desktop app.
type Identity struct {
	UserID string `json:"userId"`
	Paused bool   `json:"paused"`
}

// Active reports whether samples should be collected for this identity.
func (i Identity) Active() bool {
	return i.UserID != "" && !i.Paused
}

// AppAlias renames a generic host process (e.g. Electron) using a title heuristic.
type AppAlias struct {
	Process  string      `yaml:"process"`
	Rules    []AliasRule `yaml:"rules"`
	Fallback string      `yaml:"fallback,omitempty"` // empty keeps the process name
}

// AliasRule maps titles starting with TitlePrefix to App.
type AliasRule struct {
	TitlePrefix string `yaml:"title_prefix"`
	App         string `yaml:"app"`
}

// Resolve returns the display name for a window owned by the alias' process.
func (a AppAlias) Resolve(title string) string {
	for _, r := range a.Rules {
		if strings.HasPrefix(title, r.TitlePrefix) {
			return r.App
		}
	}
	if a.Fallback != "" {
		return a.Fallback
	}
	return a.Process
}
