package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch <job>",
	Short: "Follow a job live",
	Long: `Open the live job view for a job that another brigade process is
running against the same store. Press / to filter by role and q to quit.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatchJob,
}

func runWatchJob(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	st, err := openExistingStore(cfg, cwd)
	if err != nil {
		return err
	}
	defer st.Close()

	program, _ := tui.NewJobProgram(st, store.Namespace(args[0]), cfg.TUI.RefreshRate)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
