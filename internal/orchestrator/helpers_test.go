package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

const testNS = "jobs/test/tasks"

func task(id, role string, deps ...string) *models.Task {
	return &models.Task{
		ID:           id,
		Role:         role,
		Instruction:  "do " + id,
		Dependencies: deps,
		Status:       models.TaskStatusPending,
	}
}

func seed(t *testing.T, s store.Store, tasks ...*models.Task) {
	t.Helper()
	for _, tk := range tasks {
		if err := s.Put(context.Background(), testNS, tk.ID, tk); err != nil {
			t.Fatalf("seed %s: %v", tk.ID, err)
		}
	}
}

func mustGet(t *testing.T, s store.Store, id string) *models.Task {
	t.Helper()
	tk, err := s.Get(context.Background(), testNS, id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	if tk == nil {
		t.Fatalf("Get(%s): not found", id)
	}
	return tk
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fast() Option {
	return WithPollInterval(time.Millisecond)
}

// recorder is an executor that records the order tasks ran in.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) Execute(_ context.Context, req models.ExecRequest) (models.Outcome, error) {
	r.mu.Lock()
	r.order = append(r.order, req.TaskID)
	r.mu.Unlock()
	return models.FinalOutcome("ok:" + req.TaskID), nil
}

func (r *recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func failing(msg string) Executor {
	return ExecutorFunc(func(context.Context, models.ExecRequest) (models.Outcome, error) {
		return models.Outcome{}, errors.New(msg)
	})
}

// flightStore wraps a store and records every claim that breaks
// single-flight per role or starts a task before its dependencies are done.
type flightStore struct {
	*store.MemoryStore

	mu         sync.Mutex
	violations []string
}

func newFlightStore() *flightStore {
	return &flightStore{MemoryStore: store.NewMemory()}
}

func (f *flightStore) Put(ctx context.Context, ns, id string, tk *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if tk.Status == models.TaskStatusProcessing {
		tasks, _ := f.MemoryStore.Scan(ctx, ns, 0)
		byID := make(map[string]*models.Task)
		for _, other := range tasks {
			byID[other.ID] = other
			if other.ID != id && other.Role == tk.Role && other.Status == models.TaskStatusProcessing {
				f.violations = append(f.violations,
					fmt.Sprintf("%s claimed while %s processing for role %s", id, other.ID, tk.Role))
			}
		}
		for _, dep := range tk.Dependencies {
			if d := byID[dep]; d == nil || d.Status != models.TaskStatusDone {
				f.violations = append(f.violations, fmt.Sprintf("%s claimed before %s done", id, dep))
			}
		}
	}
	return f.MemoryStore.Put(ctx, ns, id, tk)
}

func (f *flightStore) Violations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.violations...)
}

var errStoreDown = errors.New("store unavailable")

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string, string) (*models.Task, error) {
	return nil, errStoreDown
}

func (brokenStore) Put(context.Context, string, string, *models.Task) error {
	return errStoreDown
}

func (brokenStore) Scan(context.Context, string, int) ([]*models.Task, error) {
	return nil, errStoreDown
}

// detachingExecutor moves the named task to the background and completes it
// when release is closed. Other tasks complete synchronously.
type detachingExecutor struct {
	store   store.Store
	bgID    string
	release chan struct{}
	wg      sync.WaitGroup
	order   recorder
}

func (d *detachingExecutor) Execute(ctx context.Context, req models.ExecRequest) (models.Outcome, error) {
	if req.TaskID != d.bgID {
		return d.order.Execute(ctx, req)
	}

	tk, err := d.store.Get(ctx, req.Namespace, req.TaskID)
	if err != nil || tk == nil {
		return models.Outcome{}, fmt.Errorf("load %s: %v", req.TaskID, err)
	}
	tk.MarkStarted(models.TaskStatusRunning, time.Now())
	tk.IsBackground = true
	if err := d.store.Put(ctx, req.Namespace, tk.ID, tk); err != nil {
		return models.Outcome{}, err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		<-d.release
		bg := context.Background()
		cur, _ := d.store.Get(bg, req.Namespace, req.TaskID)
		cur.MarkDone("background result", time.Now())
		d.store.Put(bg, req.Namespace, cur.ID, cur)
	}()
	return models.DetachedOutcome("started in background"), nil
}
