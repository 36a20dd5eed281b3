package orchestrator

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// taskRunner holds the claim/execute/finish sequence shared by RoleWorker
// and Coordinator.
type taskRunner struct {
	store     store.Store
	namespace string
	opts      *options
}

// claim marks the task processing and counts the attempt.
func (r *taskRunner) claim(ctx context.Context, t *models.Task) error {
	t.MarkStarted(models.TaskStatusProcessing, r.opts.now())
	t.Attempts++
	if err := r.store.Put(ctx, r.namespace, t.ID, t); err != nil {
		return fmt.Errorf("claim task %s: %w", t.ID, err)
	}
	return nil
}

// execute runs a claimed task on exec and records the outcome. It returns
// true when the task was requeued. Errors are store failures, cancellation
// or ErrAttemptsExhausted.
func (r *taskRunner) execute(ctx context.Context, exec Executor, t *models.Task) (bool, error) {
	req := models.ExecRequest{
		Namespace:   r.namespace,
		TaskID:      t.ID,
		Role:        t.Role,
		Instruction: t.Instruction,
	}

	execCtx := ctx
	if r.opts.execTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.opts.execTimeout)
		defer cancel()
	}

	outcome, execErr := exec.Execute(execCtx, req)
	if execErr != nil && ctx.Err() != nil {
		// Shutting down. The claim stays processing and is reclaimed on resume.
		return false, ctx.Err()
	}

	cur, err := r.store.Get(ctx, r.namespace, t.ID)
	if err != nil {
		return false, fmt.Errorf("reload task %s: %w", t.ID, err)
	}
	if cur == nil {
		return false, fmt.Errorf("reload task %s: record disappeared", t.ID)
	}

	if execErr != nil {
		return true, r.requeue(ctx, cur, execErr)
	}

	switch cur.Status {
	case models.TaskStatusProcessing:
		if !outcome.Final {
			r.opts.log("[runner] task %s: non-final outcome without detaching, marking done", t.ID)
		}
		cur.MarkDone(outcome.Result, r.opts.now())
		if err := r.store.Put(ctx, r.namespace, cur.ID, cur); err != nil {
			return false, fmt.Errorf("complete task %s: %w", cur.ID, err)
		}
		r.opts.log("[runner] task %s (%s) done after %v", cur.ID, cur.Role, cur.Duration())
		r.emit(EventTaskCompleted, cur, "", nil)
	case models.TaskStatusRunning:
		r.opts.log("[runner] task %s (%s) detached: %s", cur.ID, cur.Role, outcome.Result)
		r.emit(EventTaskDetached, cur, outcome.Result, nil)
	default:
		// The executor already finished or released the record.
		r.opts.log("[runner] task %s left in %s by executor", cur.ID, cur.Status)
	}
	return false, nil
}

func (r *taskRunner) requeue(ctx context.Context, cur *models.Task, cause error) error {
	if cur.Status == models.TaskStatusDone {
		return nil
	}
	cur.Requeue(cause)
	if err := r.store.Put(ctx, r.namespace, cur.ID, cur); err != nil {
		return fmt.Errorf("requeue task %s: %w", cur.ID, err)
	}
	r.opts.log("[runner] task %s (%s) requeued after attempt %d: %v", cur.ID, cur.Role, cur.Attempts, cause)
	r.emit(EventTaskRequeued, cur, "", cause)

	if r.exhausted(cur) {
		return r.exhaustedError(cur, cause)
	}
	return nil
}

// exhausted reports whether t has been claimed as often as the attempt cap
// allows. Detached units requeue outside the runner, so claims check it too.
func (r *taskRunner) exhausted(t *models.Task) bool {
	return r.opts.maxAttempts > 0 && t.Attempts >= r.opts.maxAttempts
}

func (r *taskRunner) exhaustedError(t *models.Task, cause error) error {
	r.emit(EventTaskExhausted, t, "", cause)
	return fmt.Errorf("task %s after %d attempts: %w", t.ID, t.Attempts, ErrAttemptsExhausted)
}

func (r *taskRunner) emit(typ EventType, t *models.Task, msg string, err error) {
	r.opts.events.Emit(Event{
		Type:      typ,
		Namespace: r.namespace,
		TaskID:    t.ID,
		Role:      t.Role,
		Message:   msg,
		Error:     err,
		Attempts:  t.Attempts,
	})
}
