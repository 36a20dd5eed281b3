package orchestrator

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/brigade/internal/graph"
	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// StepResult reports what a single RoleWorker step did.
type StepResult int

const (
	// StepExecuted means a task was claimed and its executor returned.
	StepExecuted StepResult = iota
	// StepRequeued means a task was claimed and failed.
	StepRequeued
	// StepWaiting means the role has work that cannot start yet.
	StepWaiting
	// StepFinished means the role has nothing left to do.
	StepFinished
)

// String returns a human-readable name for the step result.
func (r StepResult) String() string {
	switch r {
	case StepExecuted:
		return "executed"
	case StepRequeued:
		return "requeued"
	case StepWaiting:
		return "waiting"
	case StepFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// RoleWorker runs the tasks of one role, one at a time, in scan order.
type RoleWorker struct {
	role   string
	exec   Executor
	runner taskRunner
	opts   options
}

// NewRoleWorker creates a worker for role over namespace.
func NewRoleWorker(s store.Store, namespace, role string, exec Executor, opts ...Option) *RoleWorker {
	w := &RoleWorker{
		role: role,
		exec: exec,
		opts: newOptions(opts),
	}
	w.runner = taskRunner{store: s, namespace: namespace, opts: &w.opts}
	return w
}

// Role returns the worker's role name.
func (w *RoleWorker) Role() string {
	return w.role
}

// Run steps until the role is finished, an error occurs, or ctx is canceled.
func (w *RoleWorker) Run(ctx context.Context) error {
	if w.exec == nil {
		return fmt.Errorf("role %s: %w", w.role, ErrNoExecutor)
	}
	w.opts.log("[worker %s] started on %s", w.role, w.runner.namespace)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := w.Step(ctx)
		if err != nil {
			w.opts.log("[worker %s] stopping: %v", w.role, err)
			return err
		}

		switch res {
		case StepFinished:
			w.opts.log("[worker %s] finished", w.role)
			w.opts.events.Emit(Event{Type: EventRoleFinished, Namespace: w.runner.namespace, Role: w.role})
			return nil
		case StepWaiting, StepRequeued:
			if err := w.opts.backoff.Wait(ctx); err != nil {
				return err
			}
		}
	}
}

// Step performs one iteration: scan, select, and execute at most one task.
func (w *RoleWorker) Step(ctx context.Context) (StepResult, error) {
	tasks, err := w.runner.store.Scan(ctx, w.runner.namespace, 0)
	if err != nil {
		return StepWaiting, fmt.Errorf("worker %s: scan %s: %w", w.role, w.runner.namespace, err)
	}

	candidate, inFlight := selectForRole(tasks, w.role)
	if candidate == nil {
		if inFlight {
			return StepWaiting, nil
		}
		return StepFinished, nil
	}

	all := graph.Index(tasks)
	if !graph.Ready(candidate, all) {
		w.opts.log("[worker %s] task %s waiting on %v", w.role, candidate.ID, graph.Unmet(candidate, all))
		return StepWaiting, nil
	}

	if w.runner.exhausted(candidate) {
		return StepWaiting, fmt.Errorf("worker %s: %w", w.role, w.runner.exhaustedError(candidate, nil))
	}
	if candidate.Status == models.TaskStatusProcessing {
		w.opts.log("[worker %s] reclaiming stale claim on %s", w.role, candidate.ID)
	}
	if err := w.runner.claim(ctx, candidate); err != nil {
		return StepWaiting, fmt.Errorf("worker %s: %w", w.role, err)
	}
	w.opts.log("[worker %s] claimed %s (attempt %d)", w.role, candidate.ID, candidate.Attempts)
	w.runner.emit(EventTaskClaimed, candidate, "", nil)

	requeued, err := w.runner.execute(ctx, w.exec, candidate)
	if err != nil {
		return StepWaiting, fmt.Errorf("worker %s: %w", w.role, err)
	}
	if requeued {
		return StepRequeued, nil
	}
	return StepExecuted, nil
}

// selectForRole returns the first pending or processing task of role in scan
// order, and whether the role still owns running tasks.
func selectForRole(tasks []*models.Task, role string) (*models.Task, bool) {
	inFlight := false
	for _, t := range tasks {
		if t == nil || t.Role != role {
			continue
		}
		switch t.Status {
		case models.TaskStatusPending, models.TaskStatusProcessing:
			return t, inFlight
		case models.TaskStatusRunning:
			inFlight = true
		}
	}
	return nil, inFlight
}
