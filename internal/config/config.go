// Package config loads Friday's configuration from config.yaml in the home
// directory, with environment overrides for the settings that matter in
// scripts and tests.
package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fridayhq/friday/internal/otel"
)

// SchedulerConfig controls the background task poll loop.
type SchedulerConfig struct {
	// PollIntervalSeconds is how often the scheduler scans for due tasks.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`

	// CatchUp names the missed-run policy: "skip" drops missed firings and
	// keeps the schedule's phase, "immediate" runs once as soon as possible.
	CatchUp string `yaml:"catch_up"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	// DBPath overrides the default <home>/friday.db location.
	DBPath string `yaml:"db_path"`

	LogLevel string `yaml:"log_level"`

	// SessionID is the default conversation session for the daemon's own
	// messages, such as task-due notifications.
	SessionID string `yaml:"session_id"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	OTel      otel.Config     `yaml:"otel"`

	// NeedsGenesis is true when no config.yaml existed at load time.
	NeedsGenesis bool `yaml:"-"`
}

// ConfigPath returns the path to config.yaml within the given home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

func defaultConfig() Config {
	return Config{
		LogLevel:  "info",
		SessionID: "main",
		Scheduler: SchedulerConfig{
			PollIntervalSeconds: 30,
			CatchUp:             "skip",
		},
	}
}

// HomeDir returns Friday's home directory, honoring the FRIDAY_HOME override.
func HomeDir() string {
	if override := os.Getenv("FRIDAY_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".friday")
}

// Load reads config.yaml from the home directory, applies env overrides, and
// normalizes defaults. A missing file is not an error.
func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create friday home: %w", err)
	}

	configPath := ConfigPath(cfg.HomeDir)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.NeedsGenesis = true
		} else {
			return cfg, fmt.Errorf("read config.yaml: %w", err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.HomeDir, "friday.db")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SessionID == "" {
		cfg.SessionID = "main"
	}
	if cfg.Scheduler.PollIntervalSeconds <= 0 {
		cfg.Scheduler.PollIntervalSeconds = 30
	}
	if strings.TrimSpace(cfg.Scheduler.CatchUp) == "" {
		cfg.Scheduler.CatchUp = "skip"
	}
}

func validate(cfg Config) error {
	switch cfg.Scheduler.CatchUp {
	case "skip", "immediate":
	default:
		return fmt.Errorf("scheduler.catch_up: unknown policy %q (supported: skip, immediate)", cfg.Scheduler.CatchUp)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("FRIDAY_DB"); raw != "" {
		cfg.DBPath = raw
	}
	if raw := os.Getenv("FRIDAY_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("FRIDAY_SESSION"); raw != "" {
		cfg.SessionID = raw
	}
	if raw := os.Getenv("FRIDAY_POLL_INTERVAL_SECONDS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.Scheduler.PollIntervalSeconds = v
		}
	}
	if raw := os.Getenv("FRIDAY_CATCH_UP"); raw != "" {
		cfg.Scheduler.CatchUp = raw
	}
}

// loadRawConfig reads config.yaml into a generic map, returning an empty map
// if the file doesn't exist.
func loadRawConfig(path string) (map[string]interface{}, error) {
	raw := make(map[string]interface{})
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config.yaml: %w", err)
		}
	}
	return raw, nil
}

// saveRawConfig marshals and writes a generic map back to config.yaml.
func saveRawConfig(path string, raw map[string]interface{}) error {
	out, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal config.yaml: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// SetLogLevel updates log_level in config.yaml, preserving other settings.
func SetLogLevel(homeDir, level string) error {
	configPath := ConfigPath(homeDir)
	raw, err := loadRawConfig(configPath)
	if err != nil {
		return err
	}
	raw["log_level"] = level
	return saveRawConfig(configPath, raw)
}

// SetCatchUp updates the scheduler catch-up policy in config.yaml.
func SetCatchUp(homeDir, policy string) error {
	configPath := ConfigPath(homeDir)
	raw, err := loadRawConfig(configPath)
	if err != nil {
		return err
	}
	sched, _ := raw["scheduler"].(map[string]interface{})
	if sched == nil {
		sched = make(map[string]interface{})
	}
	sched["catch_up"] = policy
	raw["scheduler"] = sched
	return saveRawConfig(configPath, raw)
}

// Fingerprint returns a stable hash of the active config, logged at startup
// so operators can tell which settings a running daemon picked up.
func (c Config) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "db=%s|log=%s|session=%s|poll=%d|catchup=%s",
		c.DBPath, c.LogLevel, c.SessionID, c.Scheduler.PollIntervalSeconds, c.Scheduler.CatchUp)
	return fmt.Sprintf("cfg-%x", h.Sum64())
}
