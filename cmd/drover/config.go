package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/drover/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show configuration",
	Long: `Display the resolved drover configuration.

Without arguments, displays all configuration values. With one argument,
displays the value for that key.

Configuration is read from ~/.config/drover/config.yaml, overridden by a
.drover.yaml found in the current directory or a parent, overridden by
environment variables (DROVER_STORE_DSN, DROVER_LOG_DSN, DROVER_WORKER_ID,
ARTIFACT_* and the interval settings).`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		if len(args) == 0 {
			displayAllConfig(cfg)
			return
		}
		displayConfigKey(cfg, args[0])
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	secretDisplay := "(not set)"
	if cfg.Artifact.SecretKey != "" {
		secretDisplay = "****"
	}

	fmt.Printf("store.dsn: %s\n", orUnset(cfg.Store.DSN))
	fmt.Printf("logsink.dsn: %s\n", orUnset(cfg.LogSink.DSN))
	fmt.Printf("artifact.endpoint: %s\n", orUnset(cfg.Artifact.Endpoint))
	fmt.Printf("artifact.access_key: %s\n", orUnset(cfg.Artifact.AccessKey))
	fmt.Printf("artifact.secret_key: %s\n", secretDisplay)
	fmt.Printf("artifact.bucket: %s\n", cfg.Artifact.Bucket)
	fmt.Printf("artifact.region: %s\n", cfg.Artifact.Region)
	fmt.Printf("worker.id: %s\n", orUnset(cfg.Worker.ID))
	fmt.Printf("worker.poll_interval_seconds: %d\n", cfg.Worker.PollIntervalSeconds)
	fmt.Printf("worker.run_task_timeout_seconds: %d\n", cfg.Worker.RunTaskTimeoutSeconds)
	fmt.Printf("worker.work_root: %s\n", cfg.Worker.WorkRoot)
	fmt.Printf("worker.task_command: %s\n", cfg.Worker.TaskCommand)
	fmt.Printf("worker.policy_file: %s\n", orUnset(cfg.Worker.PolicyFile))
	fmt.Printf("worker.debug_log: %s\n", orUnset(cfg.Worker.DebugLog))
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "store.dsn":
		return orUnset(cfg.Store.DSN), nil
	case "logsink.dsn":
		return orUnset(cfg.LogSink.DSN), nil
	case "artifact.endpoint":
		return orUnset(cfg.Artifact.Endpoint), nil
	case "artifact.access_key":
		return orUnset(cfg.Artifact.AccessKey), nil
	case "artifact.secret_key":
		if cfg.Artifact.SecretKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "artifact.bucket":
		return cfg.Artifact.Bucket, nil
	case "artifact.region":
		return cfg.Artifact.Region, nil
	case "worker.id":
		return orUnset(cfg.Worker.ID), nil
	case "worker.poll_interval_seconds":
		return strconv.Itoa(cfg.Worker.PollIntervalSeconds), nil
	case "worker.run_task_timeout_seconds":
		return strconv.Itoa(cfg.Worker.RunTaskTimeoutSeconds), nil
	case "worker.work_root":
		return cfg.Worker.WorkRoot, nil
	case "worker.task_command":
		return cfg.Worker.TaskCommand, nil
	case "worker.policy_file":
		return orUnset(cfg.Worker.PolicyFile), nil
	case "worker.debug_log":
		return orUnset(cfg.Worker.DebugLog), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
