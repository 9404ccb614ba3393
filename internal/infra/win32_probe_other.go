//go:build !windows

package infra

import (
	"context"
	"time"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

// Win32Probe is only functional on Windows.
type Win32Probe struct{}

func newWin32Probe(pm domain.ProcessManager) (*Win32Probe, error) {
	return nil, domain.ErrUnsupportedPlatform
}

func (p *Win32Probe) ActiveWindow(ctx context.Context) (*domain.WindowInfo, error) {
	return nil, domain.ErrUnsupportedPlatform
}

func (p *Win32Probe) BrowserURL(ctx context.Context, app string) (string, error) {
	return "", nil
}

func (p *Win32Probe) IdleTime(ctx context.Context) (time.Duration, error) {
	return 0, domain.ErrUnsupportedPlatform
}
