package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "brigade",
	Short: "Decentralized role-based task dispatcher",
	Long: `Brigade runs a planned set of interdependent tasks across named worker
roles. Each role executes at most one task at a time, a task starts only
once its dependencies are done, and long-running tasks can detach to the
background without blocking their role.

Roles coordinate only through the task store, so several brigade processes
can share one SQLite database.

Core commands:
- run      seed a job from a plan file and dispatch it
- status   list jobs or show one job's tasks
- watch    follow a job live
- plan     validate or import plan files`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config plus .brigade.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
