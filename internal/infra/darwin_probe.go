package infra

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

const appleScriptSeparator = "|||"

const frontWindowScript = `
tell application "System Events"
  set frontApp to first application process whose frontmost is true
  set appName to name of frontApp
  try
    set windowTitle to name of front window of frontApp
  on error
    set windowTitle to ""
  end try
  return appName & "|||" & windowTitle
end tell
`

// Chromium-based browsers share Chrome's scripting dictionary.
var chromiumBrowsers = map[string]bool{
	"Google Chrome":  true,
	"Chromium":       true,
	"Brave Browser":  true,
	"Microsoft Edge": true,
	"Vivaldi":        true,
}

func browserURLScript(app string) string {
	tab := ""
	switch {
	case chromiumBrowsers[app]:
		tab = "active tab"
	case app == "Safari" || app == "Safari Technology Preview":
		tab = "current tab"
	default:
		return ""
	}
	return fmt.Sprintf(`
tell application %q
  if (count of windows) > 0 then
    return URL of %s of front window
  end if
end tell
return ""
`, app, tab)
}

// AppleScriptProbe implements domain.WindowProbe and domain.IdleDetector on
// macOS using osascript and ioreg.
type AppleScriptProbe struct {
	runner CommandRunner
}

// NewAppleScriptProbe creates a macOS probe.
func NewAppleScriptProbe(runner CommandRunner) *AppleScriptProbe {
	if runner == nil {
		runner = &RealCommandRunner{}
	}
	return &AppleScriptProbe{runner: runner}
}

// ActiveWindow returns the frontmost app and its front window title.
// A script failure (locked screen, automation permission denied) means
// no window can be determined and yields nil, nil.
func (p *AppleScriptProbe) ActiveWindow(ctx context.Context) (*domain.WindowInfo, error) {
	out, err := p.runner.Output(ctx, "osascript", "-e", frontWindowScript)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, exec.ErrNotFound) {
			return nil, err
		}
		return nil, nil
	}
	return parseFrontWindow(out), nil
}

func parseFrontWindow(out []byte) *domain.WindowInfo {
	line := strings.TrimSpace(string(out))
	if line == "" {
		return nil
	}
	app, title, _ := strings.Cut(line, appleScriptSeparator)
	return &domain.WindowInfo{
		AppName:     strings.TrimSpace(app),
		WindowTitle: strings.TrimSpace(title),
	}
}

// BrowserURL returns the active tab URL for scriptable browsers.
// Browsers without a scripting dictionary (e.g. Firefox) return "".
func (p *AppleScriptProbe) BrowserURL(ctx context.Context, app string) (string, error) {
	script := browserURLScript(app)
	if script == "" {
		return "", nil
	}
	out, err := p.runner.Output(ctx, "osascript", "-e", script)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// IdleTime reads HIDIdleTime (nanoseconds) from the IOHIDSystem registry entry.
func (p *AppleScriptProbe) IdleTime(ctx context.Context) (time.Duration, error) {
	out, err := p.runner.Output(ctx, "ioreg", "-c", "IOHIDSystem")
	if err != nil {
		return 0, err
	}
	return parseHIDIdleTime(out)
}

func parseHIDIdleTime(out []byte) (time.Duration, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, `"HIDIdleTime"`) {
			continue
		}
		_, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		ns, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid HIDIdleTime %q: %w", strings.TrimSpace(value), err)
		}
		return time.Duration(ns), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("HIDIdleTime: %w", domain.ErrProbeUnavailable)
}

var (
	_ domain.WindowProbe  = (*AppleScriptProbe)(nil)
	_ domain.IdleDetector = (*AppleScriptProbe)(nil)
)
