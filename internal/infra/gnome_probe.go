package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

// D-Bus endpoints for GNOME Shell's FocusedWindow extension and Mutter's idle monitor.
const (
	focusedWindowDest   = "org.gnome.Shell"
	focusedWindowPath   = "/org/gnome/shell/extensions/FocusedWindow"
	focusedWindowMethod = "org.gnome.shell.extensions.FocusedWindow.Get"

	idleMonitorDest   = "org.gnome.Mutter.IdleMonitor"
	idleMonitorPath   = "/org/gnome/Mutter/IdleMonitor/Core"
	idleMonitorMethod = "org.gnome.Mutter.IdleMonitor.GetIdletime"
)

// mutterWindow is the subset of the FocusedWindow JSON we use.
type mutterWindow struct {
	Title   string `json:"title"`
	WmClass string `json:"wm_class"`
	Pid     int32  `json:"pid"`
}

// BusCaller performs one method call and stores the single reply value in out.
type BusCaller interface {
	Call(ctx context.Context, dest, path, method string, out any) error
}

// SessionBusCaller calls methods on the shared D-Bus session bus.
// A failed or dropped connection is reopened on the next call.
type SessionBusCaller struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

func (c *SessionBusCaller) session() (*dbus.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && c.conn.Connected() {
		return c.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// Call implements BusCaller.
func (c *SessionBusCaller) Call(ctx context.Context, dest, path, method string, out any) error {
	conn, err := c.session()
	if err != nil {
		return err
	}

	call := conn.Object(dest, dbus.ObjectPath(path)).CallWithContext(ctx, method, 0)
	if call.Err != nil {
		return fmt.Errorf("failed to call %s: %w", method, call.Err)
	}
	if err := call.Store(out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	return nil
}

// GnomeProbe implements domain.WindowProbe and domain.IdleDetector on
// GNOME/Mutter sessions.
type GnomeProbe struct {
	bus BusCaller
}

// NewGnomeProbe creates a GNOME probe. A nil bus uses the session bus.
func NewGnomeProbe(bus BusCaller) *GnomeProbe {
	if bus == nil {
		bus = &SessionBusCaller{}
	}
	return &GnomeProbe{bus: bus}
}

// ActiveWindow returns the focused window's WM class and title.
func (p *GnomeProbe) ActiveWindow(ctx context.Context) (*domain.WindowInfo, error) {
	var raw string
	if err := p.bus.Call(ctx, focusedWindowDest, focusedWindowPath, focusedWindowMethod, &raw); err != nil {
		return nil, err
	}
	if raw == "" || raw == "{}" {
		return nil, nil
	}

	var w mutterWindow
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("failed to decode focused window: %w", err)
	}
	if w.WmClass == "" && w.Title == "" {
		return nil, nil
	}
	return &domain.WindowInfo{AppName: w.WmClass, WindowTitle: w.Title, PID: int(w.Pid)}, nil
}

// BrowserURL is not exposed by GNOME; titles carry the page instead.
func (p *GnomeProbe) BrowserURL(ctx context.Context, app string) (string, error) {
	return "", nil
}

// IdleTime returns Mutter's idle time.
func (p *GnomeProbe) IdleTime(ctx context.Context) (time.Duration, error) {
	var ms uint64
	if err := p.bus.Call(ctx, idleMonitorDest, idleMonitorPath, idleMonitorMethod, &ms); err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Available reports whether the FocusedWindow extension answers.
func (p *GnomeProbe) Available(ctx context.Context) bool {
	var raw string
	return p.bus.Call(ctx, focusedWindowDest, focusedWindowPath, focusedWindowMethod, &raw) == nil
}

var (
	_ domain.WindowProbe  = (*GnomeProbe)(nil)
	_ domain.IdleDetector = (*GnomeProbe)(nil)
)
