// Package config loads daemon configuration from defaults, an optional YAML
// file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/kronosd/internal/daemon"
	"github.com/eliteGoblin/kronosd/internal/domain"
	"github.com/eliteGoblin/kronosd/internal/usecase"
)

const (
	DefaultDataDirName = ".kronos"
	ConfigFileName     = "tracker.yaml"
	RulesFileName      = "title-rules.yaml"
	IdentityFileName   = "user.json"
	LogFileName        = "tracker.log"

	minPollInterval = 100 * time.Millisecond
)

// Environment variables read by Load.
const (
	EnvSupabaseURL     = "SUPABASE_URL"
	EnvSupabaseAnonKey = "SUPABASE_ANON_KEY"
	EnvPostgresDSN     = "KRONOS_POSTGRES_DSN"
	EnvDataDir         = "KRONOS_DATA_DIR"
	EnvPollInterval    = "KRONOS_POLL_INTERVAL"
	EnvIdleThreshold   = "KRONOS_IDLE_THRESHOLD"
	EnvTitleDebounce   = "KRONOS_TITLE_DEBOUNCE"
)

// Config holds all daemon settings.
type Config struct {
	PollInterval        time.Duration `yaml:"poll_interval"`
	IdleThreshold       time.Duration `yaml:"idle_threshold"`
	TitleDebounce       time.Duration `yaml:"title_debounce"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`
	ParentCheckInterval time.Duration `yaml:"parent_check_interval"`

	DataDir      string `yaml:"data_dir"`
	IdentityFile string `yaml:"identity_file"`
	RulesFile    string `yaml:"rules_file"`

	Browsers   []string          `yaml:"browsers"`
	AppAliases []domain.AppAlias `yaml:"app_aliases"`

	QueueSize    int           `yaml:"queue_size"`
	SinkTimeout  time.Duration `yaml:"sink_timeout"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	SupabaseURL     string `yaml:"supabase_url"`
	SupabaseAnonKey string `yaml:"supabase_anon_key"`
	PostgresDSN     string `yaml:"postgres_dsn"`
	Journal         bool   `yaml:"journal"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		PollInterval:        daemon.DefaultPollInterval,
		IdleThreshold:       usecase.DefaultIdleThreshold,
		TitleDebounce:       usecase.DefaultTitleDebounce,
		ProbeTimeout:        usecase.DefaultProbeTimeout,
		ParentCheckInterval: daemon.DefaultParentCheckInterval,
		DataDir:             filepath.Join(RealUserHome(), DefaultDataDirName),
		Browsers:            usecase.DefaultBrowsers(),
		AppAliases:          usecase.DefaultAliases(),
		QueueSize:           daemon.DefaultQueueSize,
		SinkTimeout:         daemon.DefaultSinkTimeout,
		DrainTimeout:        daemon.DefaultDrainTimeout,
		Journal:             true,
	}
}

// Options control where Load looks.
type Options struct {
	File    string // explicit YAML file; must exist when set
	DataDir string // overrides data_dir from every other source
	EnvFile string // .env file; missing is fine
}

// Load builds a Config: defaults, then YAML, then .env, then environment.
// Command-line flags are applied by the caller afterwards.
func Load(opts Options) (*Config, error) {
	cfg := Default()
	if dir := os.Getenv(EnvDataDir); dir != "" {
		cfg.DataDir = dir
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	cfg.DataDir = ExpandHome(cfg.DataDir)

	file := opts.File
	required := file != ""
	if file == "" {
		file = filepath.Join(cfg.DataDir, ConfigFileName)
	}
	if err := cfg.loadYAML(ExpandHome(file), required); err != nil {
		return nil, err
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	cfg.DataDir = ExpandHome(cfg.DataDir)

	if opts.EnvFile != "" {
		if err := LoadEnvFile(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.resolvePaths()
	return cfg, nil
}

func (c *Config) loadYAML(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvSupabaseURL); v != "" {
		c.SupabaseURL = v
	}
	if v := os.Getenv(EnvSupabaseAnonKey); v != "" {
		c.SupabaseAnonKey = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.PostgresDSN = v
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{EnvPollInterval, &c.PollInterval},
		{EnvIdleThreshold, &c.IdleThreshold},
		{EnvTitleDebounce, &c.TitleDebounce},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.env, err)
		}
		*d.dst = parsed
	}
	return nil
}

func (c *Config) resolvePaths() {
	if c.IdentityFile == "" {
		c.IdentityFile = filepath.Join(c.DataDir, IdentityFileName)
	}
	if c.RulesFile == "" {
		c.RulesFile = filepath.Join(c.DataDir, RulesFileName)
	}
	c.IdentityFile = ExpandHome(c.IdentityFile)
	c.RulesFile = ExpandHome(c.RulesFile)
}

// LogFile returns the daemon log path.
func (c *Config) LogFile() string {
	return filepath.Join(c.DataDir, LogFileName)
}

// HasRemoteSink reports whether at least one non-local sink is configured.
func (c *Config) HasRemoteSink() bool {
	return (c.SupabaseURL != "" && c.SupabaseAnonKey != "") || c.PostgresDSN != ""
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.PollInterval < minPollInterval {
		errs = append(errs, fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval))
	}
	positive := []struct {
		name  string
		value time.Duration
	}{
		{"idle_threshold", c.IdleThreshold},
		{"probe_timeout", c.ProbeTimeout},
		{"parent_check_interval", c.ParentCheckInterval},
		{"sink_timeout", c.SinkTimeout},
		{"drain_timeout", c.DrainTimeout},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", p.name, p.value))
		}
	}
	if c.TitleDebounce < 0 {
		errs = append(errs, fmt.Errorf("title_debounce must not be negative, got %s", c.TitleDebounce))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue_size must be positive, got %d", c.QueueSize))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if (c.SupabaseURL == "") != (c.SupabaseAnonKey == "") {
		errs = append(errs, fmt.Errorf("%s and %s must be set together", EnvSupabaseURL, EnvSupabaseAnonKey))
	}
	if !c.HasRemoteSink() {
		errs = append(errs, fmt.Errorf("no event store configured: set %s and %s, or %s",
			EnvSupabaseURL, EnvSupabaseAnonKey, EnvPostgresDSN))
	}
	return errors.Join(errs...)
}

// ParseDuration accepts Go durations ("2s") or bare seconds ("300").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// ExpandHome expands a leading ~ to the real user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return RealUserHome()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(RealUserHome(), path[2:])
	}
	return path
}

// RealUserHome returns the real user's home directory, even when running under sudo.
func RealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
