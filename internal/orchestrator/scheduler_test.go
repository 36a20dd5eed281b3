package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

func TestCoordinator_TickOneAssignmentPerTick(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, task("t1", "A"), task("t2", "B"), task("t3", "A"))
	c := NewCoordinator(s, testNS, map[string]Executor{"A": &recorder{}, "B": &recorder{}})
	ctx := context.Background()

	steps := []struct {
		want   TickResult
		wantID string
	}{
		{TickAssigned, "t1"},
		{TickAssigned, "t2"},
		// t3 shares role A with t1, which is still processing.
		{TickWaiting, ""},
	}

	for i, step := range steps {
		res, tk, err := c.Tick(ctx)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if res != step.want {
			t.Errorf("tick %d = %s, want %s", i, res, step.want)
		}
		gotID := ""
		if tk != nil {
			gotID = tk.ID
		}
		if gotID != step.wantID {
			t.Errorf("tick %d assigned %q, want %q", i, gotID, step.wantID)
		}
	}

	t1 := mustGet(t, s, "t1")
	if t1.Status != models.TaskStatusProcessing || t1.Attempts != 1 || t1.StartTime == nil {
		t.Errorf("t1 after assignment = %+v", t1)
	}
	if t3 := mustGet(t, s, "t3"); t3.Status != models.TaskStatusPending {
		t.Errorf("t3 status = %s, want pending", t3.Status)
	}
}

func TestCoordinator_TickStates(t *testing.T) {
	done := func(id, role string) *models.Task {
		tk := task(id, role)
		tk.Status = models.TaskStatusDone
		return tk
	}
	running := task("bg", "A")
	running.Status = models.TaskStatusRunning

	tests := []struct {
		name  string
		tasks []*models.Task
		want  TickResult
	}{
		{"empty namespace stalls", nil, TickStalled},
		{"all done", []*models.Task{done("t1", "A"), done("t2", "B")}, TickComplete},
		{"running blocks role", []*models.Task{running, task("t2", "A")}, TickWaiting},
		{"running blocks dependent", []*models.Task{running, task("t2", "B", "bg")}, TickWaiting},
		{"missing dependency stalls", []*models.Task{task("t1", "A", "ghost")}, TickStalled},
		{"ready task assigned", []*models.Task{done("t1", "A"), task("t2", "B", "t1")}, TickAssigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemory()
			seed(t, s, tt.tasks...)
			c := NewCoordinator(s, testNS, map[string]Executor{"A": &recorder{}, "B": &recorder{}})
			res, _, err := c.Tick(context.Background())
			if err != nil {
				t.Fatalf("Tick: %v", err)
			}
			if res != tt.want {
				t.Errorf("Tick = %s, want %s", res, tt.want)
			}
		})
	}
}

func TestCoordinator_TickNoExecutor(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, task("t1", "Ghost"))
	c := NewCoordinator(s, testNS, map[string]Executor{"A": &recorder{}})
	if _, _, err := c.Tick(context.Background()); !errors.Is(err, ErrNoExecutor) {
		t.Errorf("Tick error = %v, want ErrNoExecutor", err)
	}
	if got := mustGet(t, s, "t1"); got.Status != models.TaskStatusPending {
		t.Errorf("task claimed without executor")
	}
}

func TestCoordinator_TickStoreFailure(t *testing.T) {
	c := NewCoordinator(brokenStore{}, testNS, nil)
	if _, _, err := c.Tick(context.Background()); !errors.Is(err, errStoreDown) {
		t.Errorf("Tick error = %v, want store error", err)
	}
}

func TestCoordinator_RunReleasesStaleClaims(t *testing.T) {
	s := store.NewMemory()
	stale := task("t1", "A")
	stale.Status = models.TaskStatusProcessing
	stale.Attempts = 1
	seed(t, s, stale, task("t2", "A", "t1"))

	rec := &recorder{}
	c := NewCoordinator(s, testNS, map[string]Executor{"A": rec}, fast())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := mustGet(t, s, "t1"); got.Status != models.TaskStatusDone || got.Attempts != 2 {
		t.Errorf("t1 = %+v", got)
	}
	if len(rec.Order()) != 2 {
		t.Errorf("executed %v", rec.Order())
	}
}

func TestCoordinator_MaxAttempts(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, task("t1", "A"))
	c := NewCoordinator(s, testNS, map[string]Executor{"A": failing("burnt")}, fast(), WithMaxAttempts(2))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Run(ctx); !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Run error = %v, want ErrAttemptsExhausted", err)
	}
	if got := mustGet(t, s, "t1"); got.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", got.Attempts)
	}
}

func TestCoordinator_Roles(t *testing.T) {
	c := NewCoordinator(store.NewMemory(), testNS, map[string]Executor{"B": &recorder{}, "A": &recorder{}})
	roles := c.Roles()
	if len(roles) != 2 || roles[0] != "A" || roles[1] != "B" {
		t.Errorf("Roles = %v", roles)
	}
}

func TestTickResultString(t *testing.T) {
	tests := map[TickResult]string{
		TickAssigned:   "assigned",
		TickWaiting:    "waiting",
		TickStalled:    "stalled",
		TickComplete:   "complete",
		TickResult(99): "unknown",
	}
	for res, want := range tests {
		if res.String() != want {
			t.Errorf("%d.String() = %q, want %q", res, res.String(), want)
		}
	}
}

func TestCoordinator_TickExhausted(t *testing.T) {
	spent := func() *models.Task {
		tk := task("t1", "A")
		tk.Attempts = 2
		return tk
	}
	busy := task("t2", "B")
	busy.Status = models.TaskStatusRunning

	tests := []struct {
		name    string
		tasks   []*models.Task
		want    TickResult
		wantErr bool
	}{
		{"only exhausted work left", []*models.Task{spent()}, TickStalled, true},
		{"other role still in flight", []*models.Task{spent(), busy}, TickWaiting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemory()
			seed(t, s, tt.tasks...)
			c := NewCoordinator(s, testNS, map[string]Executor{"A": &recorder{}, "B": &recorder{}}, WithMaxAttempts(2))
			res, assigned, err := c.Tick(context.Background())
			if res != tt.want || assigned != nil {
				t.Errorf("Tick = %s, %v, want %s", res, assigned, tt.want)
			}
			if got := errors.Is(err, ErrAttemptsExhausted); got != tt.wantErr {
				t.Errorf("Tick error = %v, want exhausted %v", err, tt.wantErr)
			}
		})
	}
}
