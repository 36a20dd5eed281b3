package executor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ShayCichocki/brigade/internal/orchestrator"
	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// Background detaches an inner executor's work from the role that claimed
// the task. Execute marks the record running and returns at once; the inner
// executor then runs on its own and writes done, or requeues the task to
// pending if it fails.
//
// While the task is running the detached unit is its only writer.
type Background struct {
	store store.Store
	inner orchestrator.Executor
	now   func() time.Time

	wg sync.WaitGroup
}

// NewBackground wraps inner so every task it receives runs detached.
func NewBackground(s store.Store, inner orchestrator.Executor) *Background {
	return &Background{store: s, inner: inner, now: time.Now}
}

// Execute promotes the task to running and starts the inner executor.
func (b *Background) Execute(ctx context.Context, req models.ExecRequest) (models.Outcome, error) {
	t, err := b.store.Get(ctx, req.Namespace, req.TaskID)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("load task %s: %w", req.TaskID, err)
	}
	if t == nil {
		return models.Outcome{}, fmt.Errorf("load task %s: not found", req.TaskID)
	}

	t.MarkStarted(models.TaskStatusRunning, b.now())
	t.IsBackground = true
	if err := b.store.Put(ctx, req.Namespace, t.ID, t); err != nil {
		return models.Outcome{}, fmt.Errorf("mark task %s running: %w", t.ID, err)
	}

	b.wg.Add(1)
	go b.finish(context.WithoutCancel(ctx), req)

	return models.DetachedOutcome(fmt.Sprintf("task %s started in background", t.ID)), nil
}

func (b *Background) finish(ctx context.Context, req models.ExecRequest) {
	defer b.wg.Done()

	outcome, execErr := b.inner.Execute(ctx, req)

	t, err := b.store.Get(ctx, req.Namespace, req.TaskID)
	if err != nil || t == nil {
		log.Printf("[background] WARNING: task %s finished but record could not be loaded: %v", req.TaskID, err)
		return
	}

	if execErr != nil {
		t.Requeue(execErr)
	} else {
		t.MarkDone(outcome.Result, b.now())
	}
	if err := b.store.Put(ctx, req.Namespace, t.ID, t); err != nil {
		log.Printf("[background] WARNING: task %s result not saved: %v", t.ID, err)
	}
}

// Wait blocks until every detached unit has written its result.
func (b *Background) Wait() {
	b.wg.Wait()
}

// WaitContext is Wait bounded by ctx.
func (b *Background) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
