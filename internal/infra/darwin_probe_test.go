package infra

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

func TestParseFrontWindow(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want *domain.WindowInfo
	}{
		{name: "app and title", out: "Code|||main.go — kronos\n", want: &domain.WindowInfo{AppName: "Code", WindowTitle: "main.go — kronos"}},
		{name: "no window title", out: "Finder|||\n", want: &domain.WindowInfo{AppName: "Finder"}},
		{name: "title containing separator", out: "Notes|||a|||b", want: &domain.WindowInfo{AppName: "Notes", WindowTitle: "a|||b"}},
		{name: "empty output", out: "  \n", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseFrontWindow([]byte(tt.out)))
		})
	}
}

func TestParseHIDIdleTime(t *testing.T) {
	ioreg := `+-o IOHIDSystem  <class IOHIDSystem, id 0x100000298>
    {
      "HIDIdleTimeDelta" = 1
      "HIDIdleTime" = 12500000000
      "HIDParameters" = {}
    }
`
	d, err := parseHIDIdleTime([]byte(ioreg))
	require.NoError(t, err)
	assert.Equal(t, 12500*time.Millisecond, d)

	_, err = parseHIDIdleTime([]byte("nothing here"))
	assert.ErrorIs(t, err, domain.ErrProbeUnavailable)

	_, err = parseHIDIdleTime([]byte(`"HIDIdleTime" = lots`))
	assert.ErrorContains(t, err, "invalid HIDIdleTime")
}

func TestBrowserURLScript(t *testing.T) {
	assert.Contains(t, browserURLScript("Google Chrome"), "active tab")
	assert.Contains(t, browserURLScript("Brave Browser"), `tell application "Brave Browser"`)
	assert.Contains(t, browserURLScript("Safari"), "current tab")
	assert.Empty(t, browserURLScript("Firefox"))
	assert.Empty(t, browserURLScript("Code"))
}

func TestAppleScriptProbe_ActiveWindow(t *testing.T) {
	t.Run("parses osascript output", func(t *testing.T) {
		runner := newFakeCommandRunner()
		runner.outputs["osascript"] = []byte("Safari|||Docs\n")

		w, err := NewAppleScriptProbe(runner).ActiveWindow(context.Background())
		require.NoError(t, err)
		assert.Equal(t, &domain.WindowInfo{AppName: "Safari", WindowTitle: "Docs"}, w)
	})

	t.Run("script failure means no window", func(t *testing.T) {
		runner := newFakeCommandRunner()
		runner.errs["osascript"] = errors.New("exit status 1: not authorized")

		w, err := NewAppleScriptProbe(runner).ActiveWindow(context.Background())
		assert.NoError(t, err)
		assert.Nil(t, w)
	})

	t.Run("missing binary is an error", func(t *testing.T) {
		runner := newFakeCommandRunner()
		runner.errs["osascript"] = fmt.Errorf("osascript: %w", exec.ErrNotFound)

		_, err := NewAppleScriptProbe(runner).ActiveWindow(context.Background())
		assert.ErrorIs(t, err, exec.ErrNotFound)
	})

	t.Run("timeout is an error", func(t *testing.T) {
		runner := newFakeCommandRunner()
		runner.errs["osascript"] = context.DeadlineExceeded
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewAppleScriptProbe(runner).ActiveWindow(ctx)
		assert.Error(t, err)
	})
}

func TestAppleScriptProbe_BrowserURL(t *testing.T) {
	runner := newFakeCommandRunner()
	runner.outputs["osascript"] = []byte("https://x.test/a\n")
	p := NewAppleScriptProbe(runner)

	url, err := p.BrowserURL(context.Background(), "Google Chrome")
	require.NoError(t, err)
	assert.Equal(t, "https://x.test/a", url)

	url, err = p.BrowserURL(context.Background(), "Firefox")
	require.NoError(t, err)
	assert.Empty(t, url)
	assert.Len(t, runner.Calls(), 1, "unscriptable browsers never run osascript")
}

func TestAppleScriptProbe_IdleTime(t *testing.T) {
	runner := newFakeCommandRunner()
	runner.outputs["ioreg"] = []byte(`      "HIDIdleTime" = 301000000000`)

	d, err := NewAppleScriptProbe(runner).IdleTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 301*time.Second, d)
	assert.Equal(t, []string{"ioreg -c IOHIDSystem"}, runner.Calls())
}
