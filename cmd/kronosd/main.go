// Package main is the CLI entry point for kronosd.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/kronosd/internal/config"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kronosd",
	Short: "Kronos activity tracker daemon",
	Long: `kronosd samples the foreground window and idle time every few seconds,
groups the samples into activity events and sends each finished event to
the Kronos backend.

The desktop app normally starts it with "kronosd run --parent-pid <pid>"
so the tracker exits together with the app.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracker in the foreground",
	Long: `Runs the sampling loop until interrupted (SIGINT/SIGTERM) or until the
parent process exits. The open event is flushed on shutdown.`,
	RunE: runDaemon,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tracker in the background",
	Long:  `Launches "kronosd run" as a detached background process that is not tied to this shell.`,
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracker status",
	RunE:  runStatus,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent events from the local journal",
	RunE:  runEvents,
}

var rekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Re-encrypt the local journal under a new key",
	Long:  `Generates a new journal key, re-encrypts journal.db with it and replaces journal.key. The daemon must be stopped.`,
	RunE:  runRekey,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Take one sample and print it",
	Long:  `Runs the platform probes once and prints the raw sample, the normalized title and the idle time.`,
	RunE:  runProbe,
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <title>",
	Short: "Show how a window title is normalized",
	Args:  cobra.ExactArgs(1),
	RunE:  runNormalize,
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause tracking for the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(true)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume tracking",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(false)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configFile string
	dataDir    string
	envFile    string

	pollInterval  time.Duration
	idleThreshold time.Duration
	titleDebounce time.Duration
	parentPID     int
	noParentWatch bool
	debug         bool

	eventLimit int
	explain    bool
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (default <data-dir>/tracker.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default ~/.kronos)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", ".env file with backend credentials")

	runCmd.Flags().DurationVar(&pollInterval, "poll", 0, "Sampling interval (default 2s)")
	runCmd.Flags().DurationVar(&idleThreshold, "idle", 0, "Idle threshold (default 5m)")
	runCmd.Flags().DurationVar(&titleDebounce, "debounce", 0, "Title change debounce (default 10s)")
	runCmd.Flags().IntVar(&parentPID, "parent-pid", os.Getppid(), "Exit when this process exits (0 disables)")
	runCmd.Flags().BoolVar(&noParentWatch, "no-parent-watch", false, "Do not watch the parent process")
	runCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	startCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging in the daemon")

	probeCmd.Flags().BoolVar(&debug, "debug", false, "Log probe errors")
	normalizeCmd.Flags().BoolVar(&explain, "explain", false, "List the rules applied")
	eventsCmd.Flags().IntVarP(&eventLimit, "limit", "n", 20, "Number of events to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(rekeyCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig applies config sources in order, then command-line flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		File:    configFile,
		DataDir: dataDir,
		EnvFile: envFile,
	})
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("poll") {
		cfg.PollInterval = pollInterval
	}
	if flags.Changed("idle") {
		cfg.IdleThreshold = idleThreshold
	}
	if flags.Changed("debounce") {
		cfg.TitleDebounce = titleDebounce
	}
	return cfg, nil
}

// createLogger logs JSON to stderr and to the daemon log file.
func createLogger(logFile string, debug bool) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr", logFile}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr only if the log file can't be opened
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("kronosd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
