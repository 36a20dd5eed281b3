package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/brigade/internal/orchestrator"
	"github.com/ShayCichocki/brigade/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status [job]",
	Short: "List jobs or show one job's tasks",
	Long: `Without arguments, list the jobs recorded in the store, newest first.
With a job ID, show each task's status, background marker, role and
duration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		jobs, err := st.ListJobs(ctx)
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		printJobs(out, jobs, time.Now())
		return nil
	}

	jobID := args[0]
	tasks, err := st.Scan(ctx, store.Namespace(jobID), 0)
	if err != nil {
		return fmt.Errorf("scan job %s: %w", jobID, err)
	}
	if len(tasks) == 0 {
		return fmt.Errorf("job %s has no tasks", jobID)
	}

	job, err := st.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job != nil {
		fmt.Fprintf(out, "Job %s (%s) %s\n", job.ID, job.Mode, jobStatusColor(job.Status).Sprint(job.Status))
	} else {
		fmt.Fprintf(out, "Job %s\n", jobID)
	}
	printTasks(out, tasks)
	fmt.Fprintln(out)
	fmt.Fprintln(out, orchestrator.Summarize(tasks))
	return nil
}
