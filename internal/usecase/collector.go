package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

const (
	DefaultIdleThreshold = 300 * time.Second
	DefaultProbeTimeout  = 2 * time.Second
)

// BrowserMatcher decides which apps get a URL probe.
type BrowserMatcher interface {
	IsBrowser(app string) bool
}

// CollectorConfig holds sampling configuration.
type CollectorConfig struct {
	IdleThreshold time.Duration
	ProbeTimeout  time.Duration
	Aliases       []domain.AppAlias
}

// DefaultAliases maps the desktop app's own Electron shell to its name.
func DefaultAliases() []domain.AppAlias {
	return []domain.AppAlias{{
		Process: "Electron",
		Rules:   []domain.AliasRule{{TitlePrefix: "Kronos", App: "Kronos"}},
	}}
}

// DefaultCollectorConfig returns default sampling configuration.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		IdleThreshold: DefaultIdleThreshold,
		ProbeTimeout:  DefaultProbeTimeout,
		Aliases:       DefaultAliases(),
	}
}

// Collector turns OS probe results into one RawSample per tick.
type Collector struct {
	config   CollectorConfig
	window   domain.WindowProbe
	idle     domain.IdleDetector
	browsers BrowserMatcher
	logger   *zap.Logger

	probeFailing bool
}

// NewCollector creates a sample collector.
func NewCollector(
	config CollectorConfig,
	window domain.WindowProbe,
	idle domain.IdleDetector,
	browsers BrowserMatcher,
	logger *zap.Logger,
) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		config:   config,
		window:   window,
		idle:     idle,
		browsers: browsers,
		logger:   logger,
	}
}

// Collect probes the OS once. It returns false when no usable sample
// could be produced and the tick should be skipped.
func (c *Collector) Collect(ctx context.Context, now time.Time) (domain.RawSample, bool) {
	if c.IdleSeconds(ctx) >= c.config.IdleThreshold.Seconds() {
		return domain.RawSample{
			AppName:     domain.IdleApp,
			WindowTitle: domain.IdleTitle,
			IsIdle:      true,
			Timestamp:   now,
		}, true
	}

	info, err := c.activeWindow(ctx)
	if err != nil {
		if !c.probeFailing {
			c.logger.Warn("window probe failed, skipping tick", zap.Error(err))
		} else {
			c.logger.Debug("window probe still failing", zap.Error(err))
		}
		c.probeFailing = true
		return domain.RawSample{}, false
	}
	if c.probeFailing {
		c.logger.Info("window probe recovered")
		c.probeFailing = false
	}

	s := domain.RawSample{AppName: domain.UnknownApp, Timestamp: now}
	if info != nil {
		s.AppName = c.resolveApp(info.AppName, info.WindowTitle)
		s.WindowTitle = info.WindowTitle
	}

	if c.browsers != nil && c.browsers.IsBrowser(s.AppName) {
		s.URL = c.browserURL(ctx, s.AppName)
	}
	return s, true
}

// IdleSeconds returns seconds since last input, or 0 when unknown.
func (c *Collector) IdleSeconds(ctx context.Context) float64 {
	if c.idle == nil {
		return 0
	}
	pctx, cancel := c.probeContext(ctx)
	defer cancel()

	d, err := c.idle.IdleTime(pctx)
	if err != nil {
		c.logger.Debug("idle probe failed, assuming active", zap.Error(err))
		return 0
	}
	if d < 0 {
		return 0
	}
	return d.Seconds()
}

func (c *Collector) activeWindow(ctx context.Context) (*domain.WindowInfo, error) {
	pctx, cancel := c.probeContext(ctx)
	defer cancel()
	return c.window.ActiveWindow(pctx)
}

func (c *Collector) browserURL(ctx context.Context, app string) string {
	pctx, cancel := c.probeContext(ctx)
	defer cancel()

	url, err := c.window.BrowserURL(pctx, app)
	if err != nil {
		c.logger.Debug("browser url unavailable", zap.String("app", app), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(url)
}

func (c *Collector) resolveApp(process, title string) string {
	for _, a := range c.config.Aliases {
		if strings.EqualFold(a.Process, process) {
			return a.Resolve(title)
		}
	}
	if process == "" {
		return domain.UnknownApp
	}
	return process
}

func (c *Collector) probeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.ProbeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.ProbeTimeout)
}
