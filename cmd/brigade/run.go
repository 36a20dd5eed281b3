package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	iexec "github.com/ShayCichocki/brigade/internal/exec"
	"github.com/ShayCichocki/brigade/internal/orchestrator"
	"github.com/ShayCichocki/brigade/internal/plan"
	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/internal/tui"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// backgroundGrace bounds how long run waits for detached units after the
// dispatcher returns.
const backgroundGrace = 30 * time.Second

var (
	runJobID    string
	runPlanPath string
	runMode     string
	runWatch    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch a job's tasks to their roles",
	Long: `Seed a job from a plan file and dispatch it until every task is done.

With --job naming an existing job, seeding is skipped and the run resumes
where the store left off. Stale claims from an interrupted run are picked up
again by their role.

Each role in the plan needs an entry under roles: in the config:

  roles:
    RiceChef:
      kind: command
      command: ./scripts/rice.sh
    WokChef:
      kind: claude
      system_prompt: You run the wok station.
      background: true`,
	Example: `  brigade run --plan dinner.yaml
  brigade run --plan dinner.yaml --mode coordinator --watch
  brigade run --job 5f0c... # resume`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runJobID, "job", "", "Job ID (default: a new UUID)")
	runCmd.Flags().StringVar(&runPlanPath, "plan", "", "Plan file (YAML or JSON) used to seed a new job")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Dispatch mode: workers or coordinator (default: dispatch.mode)")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Show the live job view while running")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runMode != "" {
		cfg.Dispatch.Mode = runMode
	}
	mode, err := orchestrator.ParseMode(cfg.Dispatch.Mode)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	logger := setupLogger(cfg, cwd)
	defer logger.Close()

	st, err := openStore(cfg, cwd, cfg.Dispatch.Notify)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobID := runJobID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	job, planRoles, err := prepareJob(ctx, st, jobID, mode, runPlanPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ns := store.Namespace(jobID)
	tasks, err := st.Scan(ctx, ns, 0)
	if err != nil {
		return fmt.Errorf("scan job: %w", err)
	}
	execs, err := buildExecutors(cfg, st, iexec.NewRunner(), taskRoles(tasks))
	if err != nil {
		return err
	}

	emitter := orchestrator.NewEventEmitter(256)
	opts := append(dispatchOptions(cfg, st.notifier, mode, planRoles),
		orchestrator.WithLogger(logger),
		orchestrator.WithEvents(emitter),
	)
	d := orchestrator.NewDispatcher(st, ns, execs.byRole, opts...)

	var report *orchestrator.Report
	var runErr error
	if runWatch {
		report, runErr = runWithTUI(ctx, d, emitter, st, ns, cfg.TUI.RefreshRate)
	} else {
		report, runErr = runWithConsole(ctx, d, emitter, cmd.OutOrStdout())
	}

	waitBackground(ctx, execs)
	finishJob(st, job, runErr)

	if report == nil && runErr != nil {
		return runErr
	}
	printReport(cmd.OutOrStdout(), report, runErr)
	if execs.client != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Claude usage (%s): %s\n", execs.client.Model(), execs.client.Usage())
	}
	return runErr
}

// prepareJob seeds a new job from planPath, or resumes the tasks already in
// the store. It returns the job row and the roles the plan declares.
func prepareJob(ctx context.Context, st store.Backend, jobID string, mode orchestrator.Mode, planPath string, out io.Writer) (*store.Job, []string, error) {
	ns := store.Namespace(jobID)
	existing, err := st.Scan(ctx, ns, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("scan job %s: %w", jobID, err)
	}

	var planRoles []string
	switch {
	case len(existing) > 0:
		if planPath != "" {
			log.Printf("warning: job %s already has tasks; ignoring --plan %s", jobID, planPath)
		}
		fmt.Fprintf(out, "Resuming job %s (%d tasks)\n", jobID, len(existing))
	case planPath == "":
		return nil, nil, fmt.Errorf("job %s has no tasks; pass --plan to seed it", jobID)
	default:
		p, err := plan.Load(planPath)
		if err != nil {
			return nil, nil, err
		}
		if err := plan.Seed(ctx, st, ns, p.Tasks); err != nil {
			return nil, nil, err
		}
		planRoles = p.Roles
		existing = p.Tasks
		fmt.Fprintf(out, "Starting job %s (%d tasks, %s mode)\n", jobID, len(p.Tasks), mode)
	}

	job, err := st.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job == nil {
		job = &store.Job{
			ID:        jobID,
			Mode:      string(mode),
			Status:    store.JobActive,
			TaskCount: len(existing),
			StartedAt: time.Now(),
		}
		if err := st.CreateJob(ctx, job); err != nil {
			return nil, nil, fmt.Errorf("record job %s: %w", jobID, err)
		}
		return job, planRoles, nil
	}

	job.Mode = string(mode)
	job.Status = store.JobActive
	job.TaskCount = len(existing)
	job.FinishedAt = nil
	if err := st.UpdateJob(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("record job %s: %w", jobID, err)
	}
	return job, planRoles, nil
}

// finishJob records how the run ended.
func finishJob(reg store.JobRegistry, job *store.Job, runErr error) {
	now := time.Now()
	job.FinishedAt = &now
	switch {
	case runErr == nil:
		job.Status = store.JobCompleted
	case errors.Is(runErr, context.Canceled):
		job.Status = store.JobCanceled
	default:
		job.Status = store.JobFailed
	}
	if err := reg.UpdateJob(context.Background(), job); err != nil {
		log.Printf("warning: failed to record job status: %v", err)
	}
}

// runWithConsole prints events as they arrive and returns the dispatcher's
// result.
func runWithConsole(ctx context.Context, d *orchestrator.Dispatcher, emitter *orchestrator.EventEmitter, w io.Writer) (*orchestrator.Report, error) {
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for ev := range emitter.Events() {
			printEvent(w, ev)
		}
	}()

	report, err := d.Run(ctx)
	emitter.Close()
	<-printed
	return report, err
}

// runWithTUI runs the dispatcher behind the live job view. Quitting the view
// cancels the run.
func runWithTUI(ctx context.Context, d *orchestrator.Dispatcher, emitter *orchestrator.EventEmitter, s store.Store, ns string, refresh time.Duration) (*orchestrator.Report, error) {
	// Log output corrupts the display while the TUI is active.
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program, _ := tui.NewJobProgram(s, ns, refresh)

	go func() {
		for ev := range emitter.Events() {
			program.Send(tui.EventMsg{Event: ev})
		}
	}()

	type result struct {
		report *orchestrator.Report
		err    error
	}
	dispatched := make(chan result, 1)
	go func() {
		report, err := d.Run(ctx)
		emitter.Close()
		program.Send(tui.DoneMsg{Report: report, Err: err})
		dispatched <- result{report, err}
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		res := <-dispatched
		return res.report, fmt.Errorf("tui: %w", err)
	}

	// The view stays up after the run so the final state can be read; if the
	// user quits first, the run is canceled.
	cancel()
	res := <-dispatched
	return res.report, res.err
}

// waitBackground gives detached units a bounded chance to write their
// results before the store closes.
func waitBackground(ctx context.Context, execs *roleExecutors) {
	if len(execs.backgrounds) == 0 {
		return
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundGrace)
	defer cancel()
	for _, bg := range execs.backgrounds {
		if err := bg.WaitContext(waitCtx); err != nil {
			log.Printf("warning: background tasks still running after %s", backgroundGrace)
			return
		}
	}
}

// taskRoles returns the distinct roles named by tasks, sorted.
func taskRoles(tasks []*models.Task) []string {
	seen := make(map[string]bool)
	var roles []string
	for _, t := range tasks {
		if t == nil || seen[t.Role] {
			continue
		}
		seen[t.Role] = true
		roles = append(roles, t.Role)
	}
	sort.Strings(roles)
	return roles
}
