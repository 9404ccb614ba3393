// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"sync"
	"time"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

// ScriptedDesktop is a scriptable window probe and idle detector. Tests set
// the foreground window and idle time before each tick.
type ScriptedDesktop struct {
	mu          sync.Mutex
	window      *domain.WindowInfo
	url         string
	idle        time.Duration
	windowCalls int
	idleCalls   int
}

// NewScriptedDesktop creates a desktop with no focused window.
func NewScriptedDesktop() *ScriptedDesktop {
	return &ScriptedDesktop{}
}

// Focus puts app/title in the foreground with an optional browser URL and
// marks the user as active.
func (d *ScriptedDesktop) Focus(app, title, url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = &domain.WindowInfo{AppName: app, WindowTitle: title}
	d.url = url
	d.idle = 0
}

// SetIdle sets the time since last input.
func (d *ScriptedDesktop) SetIdle(idle time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.idle = idle
}

// ProbeCalls returns how many times each probe was invoked.
func (d *ScriptedDesktop) ProbeCalls() (window, idle int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.windowCalls, d.idleCalls
}

func (d *ScriptedDesktop) ActiveWindow(ctx context.Context) (*domain.WindowInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windowCalls++
	if d.window == nil {
		return nil, nil
	}
	w := *d.window
	return &w, nil
}

func (d *ScriptedDesktop) BrowserURL(ctx context.Context, app string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *ScriptedDesktop) IdleTime(ctx context.Context) (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.idleCalls++
	return d.idle, nil
}

var (
	_ domain.WindowProbe  = (*ScriptedDesktop)(nil)
	_ domain.IdleDetector = (*ScriptedDesktop)(nil)
)
