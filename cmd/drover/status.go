package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/drover/internal/config"
	"github.com/ShayCichocki/drover/internal/logsink"
	"github.com/ShayCichocki/drover/internal/store"
	"github.com/ShayCichocki/drover/pkg/models"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show recent tasks and their progress",
	Long: `Display the state of the task queue.

Without arguments, lists the most recently updated tasks with their status
and highest recorded progress. With a task id, shows that task's full
progress history and recent log entries.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of tasks to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	if len(args) == 1 {
		return displayTask(db, cfg, args[0])
	}
	return displayRecentTasks(db)
}

func displayRecentTasks(db *store.Store) error {
	tasks, err := db.ListRecent(statusLimit)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks in the store.")
		return nil
	}

	fmt.Printf("%-36s  %-11s  %-8s  %-10s  %s\n", "ID", "STATUS", "PERCENT", "OWNER", "TITLE")
	for _, t := range tasks {
		pct := db.MaxPercent(t.ID)
		owner := t.OwnerID
		if owner == "" {
			owner = "-"
		}
		statusColor(t.Status).Printf("%-36s  %-11s  %-8s  %-10s  %s\n",
			t.ID, t.Status, fmt.Sprintf("%d%%", pct), owner, truncate(t.Title, 40))
	}
	return nil
}

func displayTask(db *store.Store, cfg *config.Config, taskID string) error {
	task, err := db.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		fmt.Printf("Task %s not found.\n", taskID)
		return nil
	}

	fmt.Printf("Task: %s\n", task.ID)
	fmt.Printf("  Title: %s\n", task.Title)
	if task.Description != "" {
		fmt.Printf("  Description: %s\n", truncate(task.Description, 120))
	}
	fmt.Printf("  Status: %s\n", task.Status)
	if task.OwnerID != "" {
		fmt.Printf("  Owner: %s\n", task.OwnerID)
	}
	fmt.Printf("  Updated: %s\n", task.UpdatedAt.Local().Format(time.RFC3339))
	if response, ok := task.Metadata["response"].(string); ok && response != "" {
		fmt.Printf("  Response: %s\n", truncate(response, 200))
	}

	events, err := db.ListProgress(taskID)
	if err != nil {
		return fmt.Errorf("list progress: %w", err)
	}
	if len(events) > 0 {
		fmt.Printf("\nProgress (%d events):\n", len(events))
		for _, e := range events {
			pct := "  --"
			if e.Percent != nil {
				pct = fmt.Sprintf("%3d%%", *e.Percent)
			}
			fmt.Printf("  %s  %s  %s\n", e.Timestamp.Local().Format("15:04:05"), pct, e.Message)
		}
	}

	if cfg.LogSink.DSN != "" {
		sink, err := logsink.Open(cfg.LogSink.DSN, cfg.Worker.ID)
		if err == nil {
			defer sink.Close()
			entries, err := sink.Recent(taskID, 20)
			if err == nil && len(entries) > 0 {
				fmt.Printf("\nRecent log entries:\n")
				for _, e := range entries {
					fmt.Printf("  %s  [%s]  %s\n",
						e.Timestamp.Local().Format("15:04:05"), e.Level, truncate(e.Message, 100))
				}
			}
		}
	}

	return nil
}

func statusColor(s models.TaskStatus) *color.Color {
	switch s {
	case models.TaskStatusCompleted:
		return color.New(color.FgGreen)
	case models.TaskStatusFailed:
		return color.New(color.FgRed)
	case models.TaskStatusInProgress, models.TaskStatusAssigned:
		return color.New(color.FgYellow)
	default:
		return color.New(color.Reset)
	}
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
