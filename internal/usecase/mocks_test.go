package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

// mockWindowProbe implements domain.WindowProbe for testing
type mockWindowProbe struct {
	window    *domain.WindowInfo
	windowErr error
	url       string
	urlErr    error

	windowCalls int
	urlCalls    []string
}

func (m *mockWindowProbe) ActiveWindow(ctx context.Context) (*domain.WindowInfo, error) {
	m.windowCalls++
	if m.windowErr != nil {
		return nil, m.windowErr
	}
	return m.window, nil
}

func (m *mockWindowProbe) BrowserURL(ctx context.Context, app string) (string, error) {
	m.urlCalls = append(m.urlCalls, app)
	return m.url, m.urlErr
}

// mockIdleDetector implements domain.IdleDetector for testing
type mockIdleDetector struct {
	idle  time.Duration
	err   error
	calls int
}

func (m *mockIdleDetector) IdleTime(ctx context.Context) (time.Duration, error) {
	m.calls++
	return m.idle, m.err
}

// mockIdentitySource implements domain.IdentitySource for testing
type mockIdentitySource struct {
	identity domain.Identity
	err      error
}

func (m *mockIdentitySource) Current() (domain.Identity, error) {
	return m.identity, m.err
}

var errProbe = errors.New("probe denied")
