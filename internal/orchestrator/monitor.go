package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// JobComplete reports whether tasks is non-empty and every task is done.
func JobComplete(tasks []*models.Task) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if t == nil || !t.Status.Terminal() {
			return false
		}
	}
	return true
}

// Summary counts a job's tasks by status and role.
type Summary struct {
	Total      int
	ByStatus   map[models.TaskStatus]int
	ByRole     map[string]map[models.TaskStatus]int
	Background int
	Attempts   int
}

// Summarize builds a Summary from scanned tasks.
func Summarize(tasks []*models.Task) Summary {
	s := Summary{
		ByStatus: make(map[models.TaskStatus]int),
		ByRole:   make(map[string]map[models.TaskStatus]int),
	}
	for _, t := range tasks {
		if t == nil {
			continue
		}
		s.Total++
		s.ByStatus[t.Status]++
		if s.ByRole[t.Role] == nil {
			s.ByRole[t.Role] = make(map[models.TaskStatus]int)
		}
		s.ByRole[t.Role][t.Status]++
		if t.IsBackground {
			s.Background++
		}
		s.Attempts += t.Attempts
	}
	return s
}

// Complete reports whether the summarized job is complete.
func (s Summary) Complete() bool {
	return s.Total > 0 && s.ByStatus[models.TaskStatusDone] == s.Total
}

// Active returns the number of processing or running tasks.
func (s Summary) Active() int {
	return s.ByStatus[models.TaskStatusProcessing] + s.ByStatus[models.TaskStatusRunning]
}

// Roles returns the roles present in the summary, sorted.
func (s Summary) Roles() []string {
	roles := make([]string, 0, len(s.ByRole))
	for r := range s.ByRole {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// String renders a one-line summary.
func (s Summary) String() string {
	return fmt.Sprintf("%d tasks: %d done, %d running, %d processing, %d pending",
		s.Total,
		s.ByStatus[models.TaskStatusDone],
		s.ByStatus[models.TaskStatusRunning],
		s.ByStatus[models.TaskStatusProcessing],
		s.ByStatus[models.TaskStatusPending])
}

// Monitor observes a job namespace for completion.
type Monitor struct {
	store     store.Store
	namespace string
	opts      options
}

// NewMonitor creates a monitor for namespace.
func NewMonitor(s store.Store, namespace string, opts ...Option) *Monitor {
	return &Monitor{store: s, namespace: namespace, opts: newOptions(opts)}
}

// Complete scans the namespace and reports whether every task is done.
// An empty namespace is not complete.
func (m *Monitor) Complete(ctx context.Context) (bool, error) {
	tasks, err := m.store.Scan(ctx, m.namespace, 0)
	if err != nil {
		return false, fmt.Errorf("monitor: scan %s: %w", m.namespace, err)
	}
	return JobComplete(tasks), nil
}

// Summary scans the namespace and counts its tasks.
func (m *Monitor) Summary(ctx context.Context) (Summary, error) {
	tasks, err := m.store.Scan(ctx, m.namespace, 0)
	if err != nil {
		return Summary{}, fmt.Errorf("monitor: scan %s: %w", m.namespace, err)
	}
	return Summarize(tasks), nil
}

// Wait polls until the job is complete. With a stall limit, it returns
// ErrStalled after that many consecutive checks in which no task was active
// and neither the done count nor the attempt total moved.
func (m *Monitor) Wait(ctx context.Context) error {
	stalled := 0
	lastDone, lastAttempts := -1, -1

	for {
		sum, err := m.Summary(ctx)
		if err != nil {
			return err
		}
		if sum.Complete() {
			m.opts.log("[monitor] %s complete: %s", m.namespace, sum)
			return nil
		}

		done := sum.ByStatus[models.TaskStatusDone]
		if sum.Active() == 0 && done == lastDone && sum.Attempts == lastAttempts {
			stalled++
			m.opts.log("[monitor] %s no progress (%d): %s", m.namespace, stalled, sum)
			if m.opts.stallLimit > 0 && stalled >= m.opts.stallLimit {
				return fmt.Errorf("monitor: %s after %d checks: %w", m.namespace, stalled, ErrStalled)
			}
		} else {
			stalled = 0
		}
		lastDone, lastAttempts = done, sum.Attempts

		if err := m.opts.backoff.Wait(ctx); err != nil {
			return err
		}
	}
}
