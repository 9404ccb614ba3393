package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/kronosd/internal/config"
	"github.com/eliteGoblin/kronosd/internal/daemon"
	"github.com/eliteGoblin/kronosd/internal/domain"
	"github.com/eliteGoblin/kronosd/internal/infra"
	"github.com/eliteGoblin/kronosd/internal/normalize"
	"github.com/eliteGoblin/kronosd/internal/usecase"
)

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	logger := createLogger(cfg.LogFile(), debug)
	defer func() { _ = logger.Sync() }()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	pm := infra.NewProcessManager()
	tracker, platform, err := buildTracker(ctx, cfg, pm, logger)
	if err != nil {
		return err
	}
	if !platform.Supported() {
		logger.Warn("no activity probe for this platform, no events will be recorded",
			zap.String("goos", runtime.GOOS))
	}

	sink, closeSinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	dispatcher := daemon.NewDispatcher(sink, cfg.QueueSize, cfg.SinkTimeout, logger)
	watcher := daemon.NewWatcher(daemon.WatcherConfig{
		PollInterval: cfg.PollInterval,
		DrainTimeout: cfg.DrainTimeout,
	}, tracker, dispatcher, logger)

	if noParentWatch {
		parentPID = 0
	}
	guardian := daemon.NewGuardian(daemon.GuardianConfig{
		ParentPID:     parentPID,
		CheckInterval: cfg.ParentCheckInterval,
	}, pm, logger)
	go guardian.Run(ctx, cancel)

	state := infra.NewDaemonStateFile(cfg.DataDir, pm)
	if err := state.Register(infra.DaemonState{
		PID:        pm.GetCurrentPID(),
		ParentPID:  parentPID,
		StartedAt:  time.Now(),
		AppVersion: Version,
		Platform:   platform.Name,
	}); err != nil {
		logger.Warn("failed to write daemon state", zap.Error(err))
	}
	defer func() { _ = state.Clear(pm.GetCurrentPID()) }()

	logger.Info("tracker starting",
		zap.String("version", Version),
		zap.String("platform", platform.Name),
		zap.String("data_dir", cfg.DataDir),
		zap.Duration("idle_threshold", cfg.IdleThreshold),
		zap.Duration("title_debounce", cfg.TitleDebounce))

	err = watcher.Run(ctx)
	if dropped := dispatcher.Dropped(); dropped > 0 {
		logger.Warn("events dropped during this run", zap.Int("count", dropped))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildTracker wires the sampling pipeline for the current platform.
func buildTracker(ctx context.Context, cfg *config.Config, pm domain.ProcessManager, logger *zap.Logger) (*usecase.Tracker, infra.Platform, error) {
	normalizer, err := normalize.NewFromFile(cfg.RulesFile)
	if err != nil {
		return nil, infra.Platform{}, err
	}

	platform := infra.NewPlatform(ctx, runtime.GOOS, infra.PlatformDeps{
		ProcessManager: pm,
		Logger:         logger,
	})

	segmenter := usecase.NewSegmenter(usecase.SegmenterConfig{
		TitleDebounce: cfg.TitleDebounce,
		Browsers:      cfg.Browsers,
	}, normalizer)

	collector := usecase.NewCollector(usecase.CollectorConfig{
		IdleThreshold: cfg.IdleThreshold,
		ProbeTimeout:  cfg.ProbeTimeout,
		Aliases:       cfg.AppAliases,
	}, platform.Window, platform.Idle, segmenter, logger)

	identity := infra.NewIdentityFile(cfg.IdentityFile)
	return usecase.NewTracker(identity, collector, segmenter, logger), platform, nil
}

// buildSinks opens every configured event store. The returned func closes them.
func buildSinks(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.EventSink, func(), error) {
	var sinks []infra.NamedSink
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	if cfg.SupabaseURL != "" {
		httpSink, err := infra.NewHTTPSink(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, infra.NamedSink{Name: "track-event", Sink: httpSink})
	}

	if cfg.PostgresDSN != "" {
		pg, err := infra.NewPostgresSink(ctx, cfg.PostgresDSN)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, infra.NamedSink{Name: "postgres", Sink: pg})
		closers = append(closers, pg.Close)
	}

	if cfg.Journal {
		journal, err := infra.OpenJournal(cfg.DataDir)
		if err != nil {
			// The journal is a local copy; remote delivery still works without it.
			logger.Warn("local journal unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, infra.NamedSink{Name: "journal", Sink: journal})
			closers = append(closers, journal.Close)
		}
	}

	multi := infra.NewMultiSink(sinks...)
	logger.Info("event sinks ready", zap.Strings("sinks", multi.Names()))
	return multi, closeAll, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	pm := infra.NewProcessManager()
	state := infra.NewDaemonStateFile(cfg.DataDir, pm)
	if s, running := state.Running(); running {
		color.Yellow("kronosd is already running (pid %d)", s.PID)
		return nil
	}

	// A background daemon has no parent to follow.
	daemonArgs := []string{"--parent-pid", "0", "--data-dir", cfg.DataDir, "--env-file", envFile}
	if configFile != "" {
		daemonArgs = append(daemonArgs, "--config", configFile)
	}
	if debug {
		daemonArgs = append(daemonArgs, "--debug")
	}

	pid, err := daemon.Spawn("", daemonArgs...)
	if err != nil {
		return err
	}

	// Wait a moment for the daemon to register
	time.Sleep(500 * time.Millisecond)

	if _, running := state.Running(); !running && !pm.IsRunning(pid) {
		color.Red("kronosd exited right after start, see %s", cfg.LogFile())
		return fmt.Errorf("daemon did not start")
	}
	color.New(color.FgGreen, color.Bold).Printf("kronosd started (pid %d)\n", pid)
	fmt.Printf("Log: %s\n", cfg.LogFile())
	return nil
}

func setPaused(paused bool) error {
	cfg, err := config.Load(config.Options{File: configFile, DataDir: dataDir, EnvFile: envFile})
	if err != nil {
		return err
	}

	identity := infra.NewIdentityFile(cfg.IdentityFile)
	if err := identity.SetPaused(paused); err != nil {
		if errors.Is(err, domain.ErrNoIdentity) {
			color.Yellow("No signed-in user in %s", identity.Path())
		}
		return err
	}

	if paused {
		color.Yellow("Tracking paused")
	} else {
		color.Green("Tracking resumed")
	}
	return nil
}
