package infra

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

// Platform bundles the OS probes chosen once at startup.
type Platform struct {
	Name   string
	Window domain.WindowProbe
	Idle   domain.IdleDetector
}

// Supported reports whether a real probe backend was found.
func (p Platform) Supported() bool {
	_, unsupported := p.Window.(UnsupportedProbe)
	return !unsupported
}

// UnsupportedProbe is used where no backend exists. Every window probe
// fails, so the tracker skips all ticks and emits nothing.
type UnsupportedProbe struct {
	Reason string
}

func (p UnsupportedProbe) ActiveWindow(ctx context.Context) (*domain.WindowInfo, error) {
	return nil, domain.ErrUnsupportedPlatform
}

func (p UnsupportedProbe) BrowserURL(ctx context.Context, app string) (string, error) {
	return "", nil
}

func (p UnsupportedProbe) IdleTime(ctx context.Context) (time.Duration, error) {
	return 0, domain.ErrUnsupportedPlatform
}

// PlatformDeps are the collaborators probes may need.
type PlatformDeps struct {
	Runner         CommandRunner
	Bus            BusCaller
	ProcessManager domain.ProcessManager
	Logger         *zap.Logger
}

// NewPlatform selects probes for goos (normally runtime.GOOS).
func NewPlatform(ctx context.Context, goos string, deps PlatformDeps) Platform {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch goos {
	case "darwin":
		p := NewAppleScriptProbe(deps.Runner)
		return Platform{Name: "macos-applescript", Window: p, Idle: p}

	case "linux":
		// The extension may load after the daemon; ticks fail until it answers.
		p := NewGnomeProbe(deps.Bus)
		if !p.Available(ctx) {
			logger.Warn("GNOME FocusedWindow extension not reachable on the session bus, retrying every tick")
		}
		return Platform{Name: "gnome-dbus", Window: p, Idle: p}

	case "windows":
		pm := deps.ProcessManager
		if pm == nil {
			pm = NewProcessManager()
		}
		p, err := newWin32Probe(pm)
		if err != nil {
			logger.Warn("win32 probe unavailable", zap.Error(err))
			return unsupported("win32 api unavailable")
		}
		return Platform{Name: "win32", Window: p, Idle: p}
	}

	return unsupported(goos)
}

func unsupported(reason string) Platform {
	p := UnsupportedProbe{Reason: reason}
	return Platform{Name: "unsupported", Window: p, Idle: p}
}

var (
	_ domain.WindowProbe  = UnsupportedProbe{}
	_ domain.IdleDetector = UnsupportedProbe{}
)
