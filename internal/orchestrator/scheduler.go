package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/brigade/internal/graph"
	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// TickResult reports the outcome of one Coordinator tick.
type TickResult int

const (
	// TickAssigned means one task was claimed for its idle role.
	TickAssigned TickResult = iota
	// TickWaiting means nothing was assignable while work is in flight.
	TickWaiting
	// TickStalled means nothing was assignable and nothing is in flight,
	// yet the job is not complete.
	TickStalled
	// TickComplete means every task in the job is done.
	TickComplete
)

// String returns a human-readable name for the tick result.
func (r TickResult) String() string {
	switch r {
	case TickAssigned:
		return "assigned"
	case TickWaiting:
		return "waiting"
	case TickStalled:
		return "stalled"
	case TickComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Coordinator assigns ready tasks to idle roles, one assignment per tick.
// Assigned tasks run on their role's executor in a separate goroutine.
type Coordinator struct {
	executors map[string]Executor
	runner    taskRunner
	opts      options

	// trigger wakes Run when an assigned task finishes.
	trigger chan struct{}
	// errs carries the first fatal error from an execution goroutine.
	errs chan error
	wg   sync.WaitGroup
}

// NewCoordinator creates a coordinator for namespace with one executor per role.
func NewCoordinator(s store.Store, namespace string, executors map[string]Executor, opts ...Option) *Coordinator {
	c := &Coordinator{
		executors: executors,
		opts:      newOptions(opts),
		trigger:   make(chan struct{}, 1),
		errs:      make(chan error, 1),
	}
	c.runner = taskRunner{store: s, namespace: namespace, opts: &c.opts}
	return c
}

// Tick scans the namespace and claims at most one pending task whose role is
// idle and whose dependencies are done. The claimed task is returned with
// TickAssigned; Tick does not execute it.
func (c *Coordinator) Tick(ctx context.Context) (TickResult, *models.Task, error) {
	tasks, err := c.runner.store.Scan(ctx, c.runner.namespace, 0)
	if err != nil {
		return TickWaiting, nil, fmt.Errorf("coordinator: scan %s: %w", c.runner.namespace, err)
	}
	if JobComplete(tasks) {
		return TickComplete, nil, nil
	}

	busy := make(map[string]string)
	for _, t := range tasks {
		if t != nil && t.Status.Active() {
			busy[t.Role] = t.ID
		}
	}

	all := graph.Index(tasks)
	skipReasons := make(map[string]string)
	var exhausted *models.Task
	for _, t := range tasks {
		if t == nil || t.Status != models.TaskStatusPending {
			continue
		}
		if owner, ok := busy[t.Role]; ok {
			skipReasons[t.ID] = fmt.Sprintf("role %s busy with %s", t.Role, owner)
			continue
		}
		if !graph.Ready(t, all) {
			skipReasons[t.ID] = fmt.Sprintf("waiting on %v", graph.Unmet(t, all))
			continue
		}
		if c.runner.exhausted(t) {
			skipReasons[t.ID] = "attempts exhausted"
			if exhausted == nil {
				exhausted = t
			}
			continue
		}
		if c.executors[t.Role] == nil {
			return TickWaiting, nil, fmt.Errorf("coordinator: task %s role %s: %w", t.ID, t.Role, ErrNoExecutor)
		}

		if err := c.runner.claim(ctx, t); err != nil {
			return TickWaiting, nil, fmt.Errorf("coordinator: %w", err)
		}
		c.opts.log("[coordinator] assigned %s to %s (attempt %d)", t.ID, t.Role, t.Attempts)
		c.runner.emit(EventTaskAssigned, t, "", nil)
		return TickAssigned, t, nil
	}

	if len(skipReasons) > 0 {
		c.opts.log("[coordinator] nothing assignable: %v", skipReasons)
	}
	if len(busy) > 0 {
		return TickWaiting, nil, nil
	}
	if exhausted != nil {
		return TickStalled, nil, fmt.Errorf("coordinator: %w", c.runner.exhaustedError(exhausted, nil))
	}
	return TickStalled, nil, nil
}

// Run ticks until the job completes, an execution fails fatally, the stall
// limit is reached, or ctx is canceled. It waits for in-flight executions
// before returning.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer c.wg.Wait()
	defer cancel()

	if err := c.releaseStaleClaims(ctx); err != nil {
		return err
	}

	stalled := 0
	for {
		select {
		case err := <-c.errs:
			return err
		default:
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		res, task, err := c.Tick(ctx)
		if err != nil {
			return err
		}

		switch res {
		case TickComplete:
			c.opts.log("[coordinator] job %s complete", c.runner.namespace)
			return nil
		case TickAssigned:
			stalled = 0
			c.launch(ctx, task)
			continue
		case TickWaiting:
			stalled = 0
		case TickStalled:
			stalled++
			c.opts.log("[coordinator] stalled tick %d", stalled)
			if c.opts.stallLimit > 0 && stalled >= c.opts.stallLimit {
				return fmt.Errorf("coordinator: %s after %d ticks: %w", c.runner.namespace, stalled, ErrStalled)
			}
		}

		if err := c.wait(ctx); err != nil {
			return err
		}
	}
}

// releaseStaleClaims returns processing tasks left by an interrupted run to
// pending. Nothing is in flight in this process yet, so any processing record
// is stale.
func (c *Coordinator) releaseStaleClaims(ctx context.Context) error {
	tasks, err := c.runner.store.Scan(ctx, c.runner.namespace, 0)
	if err != nil {
		return fmt.Errorf("coordinator: scan %s: %w", c.runner.namespace, err)
	}
	for _, t := range tasks {
		if t == nil || t.Status != models.TaskStatusProcessing {
			continue
		}
		t.Status = models.TaskStatusPending
		if err := c.runner.store.Put(ctx, c.runner.namespace, t.ID, t); err != nil {
			return fmt.Errorf("coordinator: release %s: %w", t.ID, err)
		}
		c.opts.log("[coordinator] released stale claim on %s", t.ID)
	}
	return nil
}

func (c *Coordinator) launch(ctx context.Context, task *models.Task) {
	exec := c.executors[task.Role]
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		requeued, err := c.runner.execute(ctx, exec, task)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				select {
				case c.errs <- err:
				default:
				}
			}
			c.signal()
			return
		}
		// Requeued tasks wait for the regular backoff before the next tick.
		if !requeued {
			c.signal()
		}
	}()
}

func (c *Coordinator) signal() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// wait backs off until the backoff elapses or an execution finishes.
func (c *Coordinator) wait(ctx context.Context) error {
	waitCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-c.trigger:
			stop()
		case <-waitCtx.Done():
		}
	}()

	if err := c.opts.backoff.Wait(waitCtx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// Roles returns the roles the coordinator has executors for, sorted.
func (c *Coordinator) Roles() []string {
	roles := make([]string, 0, len(c.executors))
	for r := range c.executors {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}
