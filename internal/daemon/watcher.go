// Package daemon implements the sampling loop and its supervisors.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

const DefaultPollInterval = 2 * time.Second

// EventSource is the per-tick pipeline driven by the watcher.
type EventSource interface {
	Tick(ctx context.Context, now time.Time) []domain.ActivityEvent
	Shutdown(now time.Time) []domain.ActivityEvent
}

// EventQueue accepts closed events for asynchronous delivery.
type EventQueue interface {
	Submit(ev domain.ActivityEvent)
	Close(timeout time.Duration) error
}

// WatcherConfig holds watcher daemon configuration.
type WatcherConfig struct {
	PollInterval time.Duration // How often to sample (default 2s)
	DrainTimeout time.Duration // How long to wait for queued events on shutdown
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		PollInterval: DefaultPollInterval,
		DrainTimeout: DefaultDrainTimeout,
	}
}

// Watcher is the sampling daemon. It ticks the tracker on a fixed
// interval and flushes the open segment when its context ends.
type Watcher struct {
	config WatcherConfig
	source EventSource
	queue  EventQueue
	now    func() time.Time
	logger *zap.Logger
}

// NewWatcher creates a new watcher daemon.
func NewWatcher(config WatcherConfig, source EventSource, queue EventQueue, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		config: config,
		source: source,
		queue:  queue,
		now:    time.Now,
		logger: logger,
	}
}

// Run starts the watcher loop.
// This blocks until context is canceled, then flushes and drains.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher daemon started",
		zap.Duration("poll_interval", w.config.PollInterval))

	// Sample immediately on startup
	w.tick(ctx)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher daemon stopping")
			w.shutdown()
			return ctx.Err()

		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	for _, ev := range w.source.Tick(ctx, w.now()) {
		w.queue.Submit(ev)
	}
}

func (w *Watcher) shutdown() {
	for _, ev := range w.source.Shutdown(w.now()) {
		w.queue.Submit(ev)
	}
	if err := w.queue.Close(w.config.DrainTimeout); err != nil {
		w.logger.Warn("event queue not fully drained", zap.Error(err))
	}
}
