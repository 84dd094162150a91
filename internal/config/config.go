// Package config handles configuration loading for drover.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for a drover worker.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	LogSink  LogSinkConfig  `mapstructure:"logsink"`
	Artifact ArtifactConfig `mapstructure:"artifact"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// StoreConfig holds coordination store settings.
type StoreConfig struct {
	// DSN is the coordination database location. Required.
	DSN string `mapstructure:"dsn"`
}

// LogSinkConfig holds log sink settings.
type LogSinkConfig struct {
	// DSN is the log database location. Required.
	DSN string `mapstructure:"dsn"`
}

// ArtifactConfig holds object storage settings. All optional: with no
// endpoint configured, artifact upload is skipped.
type ArtifactConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

// WorkerConfig holds the polling and execution settings.
type WorkerConfig struct {
	// ID is the owner/worker identity. Required.
	ID string `mapstructure:"id"`
	// PollIntervalSeconds is the idle sleep between polls, also the
	// heartbeat cadence.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	// RunTaskTimeoutSeconds is the hard bound on one task execution.
	RunTaskTimeoutSeconds int `mapstructure:"run_task_timeout_seconds"`
	// WorkRoot is the directory work dirs are allocated under.
	WorkRoot string `mapstructure:"work_root"`
	// TaskCommand is the external program that executes a task.
	TaskCommand string `mapstructure:"task_command"`
	// PolicyFile optionally overrides the outcome policy.
	PolicyFile string `mapstructure:"policy_file"`
	// DebugLog optionally enables the file-based debug log.
	DebugLog string `mapstructure:"debug_log"`
}

// Enabled reports whether artifact upload is configured.
func (a ArtifactConfig) Enabled() bool {
	return a.Endpoint != ""
}

// PollInterval returns the poll interval as a duration.
func (w WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// RunTaskTimeout returns the execution bound as a duration.
func (w WorkerConfig) RunTaskTimeout() time.Duration {
	return time.Duration(w.RunTaskTimeoutSeconds) * time.Second
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (DROVER_STORE_DSN, DROVER_LOG_DSN, ...)
// 2. Project config (.drover.yaml in current directory or parent)
// 3. User config (~/.config/drover/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	bindEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Artifact.SecretKey = os.ExpandEnv(cfg.Artifact.SecretKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the required settings are present.
func (c *Config) Validate() error {
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required (set DROVER_STORE_DSN)")
	}
	if c.LogSink.DSN == "" {
		return fmt.Errorf("logsink.dsn is required (set DROVER_LOG_DSN)")
	}
	if c.Worker.ID == "" {
		return fmt.Errorf("worker.id is required (set DROVER_WORKER_ID)")
	}
	if c.Worker.PollIntervalSeconds <= 0 {
		return fmt.Errorf("worker.poll_interval_seconds must be positive")
	}
	if c.Worker.RunTaskTimeoutSeconds <= 0 {
		return fmt.Errorf("worker.run_task_timeout_seconds must be positive")
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it
// exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.dsn", "")
	v.SetDefault("logsink.dsn", "")

	v.SetDefault("artifact.endpoint", "")
	v.SetDefault("artifact.access_key", "")
	v.SetDefault("artifact.secret_key", "")
	v.SetDefault("artifact.bucket", "artifacts")
	v.SetDefault("artifact.region", "us-east-1")

	v.SetDefault("worker.id", "")
	v.SetDefault("worker.poll_interval_seconds", 5)
	v.SetDefault("worker.run_task_timeout_seconds", 300)
	v.SetDefault("worker.work_root", filepath.Join(os.TempDir(), "drover-work"))
	v.SetDefault("worker.task_command", "run-task")
	v.SetDefault("worker.policy_file", "")
	v.SetDefault("worker.debug_log", "")
}

// bindEnv maps the recognized environment variables.
func bindEnv(v *viper.Viper) {
	v.BindEnv("store.dsn", "DROVER_STORE_DSN")
	v.BindEnv("logsink.dsn", "DROVER_LOG_DSN")
	v.BindEnv("worker.id", "DROVER_WORKER_ID")
	v.BindEnv("worker.poll_interval_seconds", "POLL_INTERVAL_SECONDS")
	v.BindEnv("worker.run_task_timeout_seconds", "RUN_TASK_TIMEOUT_SECONDS")
	v.BindEnv("artifact.endpoint", "ARTIFACT_ENDPOINT")
	v.BindEnv("artifact.access_key", "ARTIFACT_ACCESS_KEY")
	v.BindEnv("artifact.secret_key", "ARTIFACT_SECRET_KEY")
	v.BindEnv("artifact.bucket", "ARTIFACT_BUCKET")
}

// getUserConfigDir returns the XDG config directory for drover.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "drover")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "drover")
	}
	return filepath.Join(home, ".config", "drover")
}

// findProjectConfig searches for .drover.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".drover.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Artifact: ArtifactConfig{
			Bucket: "artifacts",
			Region: "us-east-1",
		},
		Worker: WorkerConfig{
			PollIntervalSeconds:   5,
			RunTaskTimeoutSeconds: 300,
			WorkRoot:              filepath.Join(os.TempDir(), "drover-work"),
			TaskCommand:           "run-task",
		},
	}
}
