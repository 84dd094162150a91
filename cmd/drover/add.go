package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/drover/internal/config"
	"github.com/ShayCichocki/drover/internal/store"
	"github.com/ShayCichocki/drover/pkg/models"
)

var addTitle string

var addCmd = &cobra.Command{
	Use:   "add <description>",
	Short: "Enqueue a task",
	Long: `Add a pending task to the coordination store.

The description is what the task program receives when a worker picks the
task up. Any polling worker may claim it.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addTitle, "title", "", "Short task title (defaults to the description)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required (set DROVER_STORE_DSN)")
	}

	db, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open coordination store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate coordination store: %w", err)
	}

	description := args[0]
	title := addTitle
	if title == "" {
		title = truncate(description, 60)
	}

	task := &models.Task{
		Title:       title,
		Description: description,
	}
	if err := db.CreateTask(task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	printStatus("✓", fmt.Sprintf("Task %s enqueued", task.ID), color.FgGreen)
	return nil
}
