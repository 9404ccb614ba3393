package main

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/kronosd/internal/infra"
	"github.com/eliteGoblin/kronosd/internal/normalize"
	"github.com/eliteGoblin/kronosd/internal/usecase"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	good    = color.New(color.FgGreen).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
	bad     = color.New(color.FgRed).SprintFunc()
)

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pm := infra.NewProcessManager()

	heading.Println("\n=== kronosd Status ===")

	state := infra.NewDaemonStateFile(cfg.DataDir, pm)
	if s, running := state.Running(); running {
		fmt.Printf("Daemon: %s (pid %d, up %s)\n", good("RUNNING"), s.PID,
			time.Since(s.StartedAt).Round(time.Second))
		fmt.Printf("Platform: %s\n", s.Platform)
		if s.ParentPID > 1 {
			fmt.Printf("Parent pid: %d\n", s.ParentPID)
		}
	} else {
		fmt.Printf("Daemon: %s\n", bad("NOT RUNNING"))
	}

	id, err := infra.NewIdentityFile(cfg.IdentityFile).Current()
	switch {
	case err != nil:
		fmt.Printf("User: %s (%v)\n", bad("unreadable"), err)
	case id.UserID == "":
		fmt.Printf("User: %s\n", warn("not signed in"))
	case id.Paused:
		fmt.Printf("User: %s %s\n", id.UserID, warn("(paused)"))
	default:
		fmt.Printf("User: %s %s\n", id.UserID, good("(tracking)"))
	}

	fmt.Println("\nEvent stores:")
	if cfg.SupabaseURL != "" {
		fmt.Printf("  - track-event: %s\n", cfg.SupabaseURL)
	}
	if cfg.PostgresDSN != "" {
		fmt.Println("  - postgres")
	}
	if !cfg.HasRemoteSink() {
		fmt.Printf("  %s\n", bad("no remote store configured"))
	}
	if cfg.Journal {
		count := "unavailable"
		if journal, err := infra.OpenExistingJournal(cfg.DataDir); err == nil {
			if n, err := journal.Count(); err == nil {
				count = fmt.Sprintf("%d events", n)
			}
			journal.Close()
		}
		fmt.Printf("  - journal: %s\n", count)
	}

	fmt.Printf("\nData dir: %s\n", cfg.DataDir)
	fmt.Printf("Log: %s\n", cfg.LogFile())
	heading.Println("======================")
	return nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	journal, err := infra.OpenExistingJournal(cfg.DataDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	events, err := journal.Recent(eventLimit)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(events) == 0 {
		color.Yellow("No events recorded yet.")
		return nil
	}

	for _, ev := range events {
		app := ev.AppName
		if ev.IsIdle {
			app = warn(app)
		}
		line := fmt.Sprintf("%s  %6ds  %s  %s",
			ev.Timestamp.Local().Format("2006-01-02 15:04:05"), ev.DurationSeconds, app, ev.WindowTitle)
		if ev.URL != "" {
			line += "  " + color.BlueString(ev.URL)
		}
		fmt.Println(line)
	}
	return nil
}

func runRekey(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The daemon holds the journal open for writing.
	if s, running := infra.NewDaemonStateFile(cfg.DataDir, infra.NewProcessManager()).Running(); running {
		return fmt.Errorf("kronosd is running (pid %d), stop it before rotating the journal key", s.PID)
	}

	journal, err := infra.OpenExistingJournal(cfg.DataDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	if err := journal.RotateKey(); err != nil {
		return err
	}
	color.Green("Journal key rotated")
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := zap.NewNop()
	if debug {
		logger, _ = zap.NewDevelopment()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	normalizer, err := normalize.NewFromFile(cfg.RulesFile)
	if err != nil {
		return err
	}
	platform := infra.NewPlatform(ctx, runtime.GOOS, infra.PlatformDeps{
		ProcessManager: infra.NewProcessManager(),
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

	heading.Printf("\n=== Probe (%s) ===\n", platform.Name)
	if !platform.Supported() {
		color.Red("No activity probe available on %s", runtime.GOOS)
		return nil
	}

	fmt.Printf("Idle: %.1fs (threshold %s)\n", collector.IdleSeconds(ctx), cfg.IdleThreshold)

	sample, ok := collector.Collect(ctx, time.Now())
	if !ok {
		color.Red("Window probe failed; the daemon would skip this tick")
		return nil
	}
	fmt.Printf("App: %s\n", sample.AppName)
	fmt.Printf("Title: %q\n", sample.WindowTitle)
	fmt.Printf("Normalized: %q\n", normalizer.Normalize(sample.WindowTitle))
	fmt.Printf("Browser: %t\n", segmenter.IsBrowser(sample.AppName))
	if sample.URL != "" {
		fmt.Printf("URL: %s\n", sample.URL)
	}
	if sample.IsIdle {
		fmt.Println(warn("User is idle"))
	}
	return nil
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	normalizer, err := normalize.NewFromFile(cfg.RulesFile)
	if err != nil {
		return err
	}

	title := args[0]
	out := normalizer.Normalize(title)
	fmt.Printf("%q\n", out)

	if explain {
		names := make([]string, 0, len(normalizer.Rules()))
		for _, r := range normalizer.Rules() {
			names = append(names, r.Name)
		}
		fmt.Printf("rules: %s\n", strings.Join(names, ", "))
	}
	return nil
}
