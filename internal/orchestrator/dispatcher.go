package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/brigade/internal/graph"
	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// Mode selects the dispatch variant.
type Mode string

const (
	// ModeWorkers runs one RoleWorker per role.
	ModeWorkers Mode = "workers"
	// ModeCoordinator runs a single Coordinator.
	ModeCoordinator Mode = "coordinator"
)

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeWorkers, ModeCoordinator:
		return Mode(s), nil
	case "":
		return ModeWorkers, nil
	default:
		return "", fmt.Errorf("unknown dispatch mode %q (want %s or %s)", s, ModeWorkers, ModeCoordinator)
	}
}

// Report describes a finished dispatch.
type Report struct {
	Namespace string
	Mode      Mode
	Tasks     []*models.Task
	Summary   Summary
	Elapsed   time.Duration
}

// Dispatcher drives one job namespace to completion.
type Dispatcher struct {
	store     store.Store
	namespace string
	executors map[string]Executor
	opts      []Option
	cfg       options
}

// NewDispatcher creates a dispatcher with one executor per role.
func NewDispatcher(s store.Store, namespace string, executors map[string]Executor, opts ...Option) *Dispatcher {
	return &Dispatcher{
		store:     s,
		namespace: namespace,
		executors: executors,
		opts:      opts,
		cfg:       newOptions(opts),
	}
}

// Run validates the job and executes it with the configured mode. The
// returned report reflects the store after the run, also when Run fails.
func (d *Dispatcher) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	tasks, err := d.store.Scan(ctx, d.namespace, 0)
	if err != nil {
		return nil, fmt.Errorf("dispatch: scan %s: %w", d.namespace, err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("dispatch %s: %w", d.namespace, ErrEmptyJob)
	}

	if d.cfg.preflight {
		if err := graph.Validate(tasks, d.cfg.roles); err != nil {
			return nil, fmt.Errorf("dispatch %s: preflight: %w", d.namespace, err)
		}
	}

	roles := rolesOf(tasks)
	for _, role := range roles {
		if d.executors[role] == nil {
			return nil, fmt.Errorf("dispatch %s: role %s: %w", d.namespace, role, ErrNoExecutor)
		}
	}

	d.cfg.log("[dispatch] %s: %d tasks, roles %v, mode %s", d.namespace, len(tasks), roles, d.cfg.mode)

	switch d.cfg.mode {
	case ModeCoordinator:
		err = NewCoordinator(d.store, d.namespace, d.executors, d.opts...).Run(ctx)
	default:
		err = d.runWorkers(ctx, roles)
	}

	report := &Report{Namespace: d.namespace, Mode: d.cfg.mode, Elapsed: time.Since(start)}
	// Use a fresh context so the report survives cancellation.
	if final, scanErr := d.store.Scan(context.WithoutCancel(ctx), d.namespace, 0); scanErr == nil {
		report.Tasks = final
		report.Summary = Summarize(final)
	}

	if err != nil {
		return report, err
	}

	d.cfg.log("[dispatch] %s complete in %v", d.namespace, report.Elapsed)
	d.cfg.events.Emit(Event{Type: EventJobComplete, Namespace: d.namespace, Message: report.Summary.String()})
	return report, nil
}

// runWorkers runs one RoleWorker per role next to a Monitor. Workers exit
// when their role is finished; the monitor confirms completion and enforces
// the stall limit.
func (d *Dispatcher) runWorkers(ctx context.Context, roles []string) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, role := range roles {
		w := NewRoleWorker(d.store, d.namespace, role, d.executors[role], d.opts...)
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	monitor := NewMonitor(d.store, d.namespace, d.opts...)
	g.Go(func() error {
		return monitor.Wait(gctx)
	})

	return g.Wait()
}

// rolesOf returns the distinct roles named by tasks, sorted.
func rolesOf(tasks []*models.Task) []string {
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
