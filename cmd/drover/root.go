package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "drover",
	Short: "Task polling worker",
	Long: `Drover is a worker daemon that pulls tasks from a shared coordination
store, executes them through an external task program, and records outcomes.

Each worker claims one task at a time, heartbeats while the task program
runs, collects produced artifacts, and finalizes the task as completed or
failed. Multiple workers can poll the same store; the claim is atomic, so a
task is only ever executed by one worker.

Start polling with 'drover run'. Inspect the queue with 'drover status'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// printStatus prints a colored status line.
func printStatus(symbol, message string, attr color.Attribute) {
	c := color.New(attr)
	c.Printf("%s ", symbol)
	fmt.Println(message)
}
