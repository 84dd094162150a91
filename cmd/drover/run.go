package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/drover/internal/artifact"
	"github.com/ShayCichocki/drover/internal/config"
	"github.com/ShayCichocki/drover/internal/exec"
	"github.com/ShayCichocki/drover/internal/logsink"
	"github.com/ShayCichocki/drover/internal/policy"
	"github.com/ShayCichocki/drover/internal/store"
	"github.com/ShayCichocki/drover/internal/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the worker poll loop",
	Long: `Start polling the coordination store for tasks.

The worker claims pending tasks (or reclaims its own unfinished ones),
executes each through the configured task program, and records progress,
response and final status back to the store. Produced artifacts are uploaded
to object storage when an artifact endpoint is configured.

The loop runs until interrupted. SIGINT and SIGTERM stop the worker
cooperatively: a task in flight is finished and finalized first.`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	debug, err := worker.NewDebugLogger(cfg.Worker.DebugLog)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	defer debug.Close()

	db, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open coordination store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate coordination store: %w", err)
	}
	printStatus("✓", "Coordination store ready", color.FgGreen)

	sink, err := logsink.Open(cfg.LogSink.DSN, cfg.Worker.ID)
	if err != nil {
		return fmt.Errorf("open log sink: %w", err)
	}
	defer sink.Close()
	printStatus("✓", "Log sink ready", color.FgGreen)

	var uploader artifact.Uploader
	if cfg.Artifact.Enabled() {
		opts := artifact.Options{
			Endpoint:  cfg.Artifact.Endpoint,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			Region:    cfg.Artifact.Region,
			OwnerID:   cfg.Worker.ID,
		}
		as, err := artifact.New(ctx, opts)
		if err != nil {
			return fmt.Errorf("connect artifact store: %w", err)
		}
		if err := as.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket %s: %w", cfg.Artifact.Bucket, err)
		}
		uploader = as
		printStatus("✓", fmt.Sprintf("Artifact store ready (bucket %s)", cfg.Artifact.Bucket), color.FgGreen)
	} else {
		printStatus("⚠", "No artifact endpoint configured, uploads disabled", color.FgYellow)
	}

	pol := policy.Default()
	if cfg.Worker.PolicyFile != "" {
		pol, err = policy.Load(cfg.Worker.PolicyFile)
		if err != nil {
			return fmt.Errorf("load outcome policy: %w", err)
		}
	}

	r := worker.New(worker.Options{
		Store:        db,
		Logs:         sink,
		Uploader:     uploader,
		Exec:         exec.NewRunner(),
		Policy:       pol,
		Debug:        debug,
		OwnerID:      cfg.Worker.ID,
		PollInterval: cfg.Worker.PollInterval(),
		RunTimeout:   cfg.Worker.RunTaskTimeout(),
		WorkRoot:     cfg.Worker.WorkRoot,
		TaskCommand:  cfg.Worker.TaskCommand,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		r.Stop()
	}()

	fmt.Printf("Worker %s polling every %s (task command: %s)\n",
		cfg.Worker.ID, cfg.Worker.PollInterval(), cfg.Worker.TaskCommand)

	return r.Run(ctx)
}
