package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/brigade/internal/api"
	iexec "github.com/ShayCichocki/brigade/internal/exec"
	"github.com/ShayCichocki/brigade/internal/orchestrator"
	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

const ns = "jobs/kitchen/tasks"

// Compile-time checks that every executor satisfies the dispatcher interface.
var (
	_ orchestrator.Executor = (*Background)(nil)
	_ orchestrator.Executor = (*Command)(nil)
	_ orchestrator.Executor = (*Claude)(nil)
	_ Completer             = (*api.Client)(nil)
)

type fakeRunner struct {
	mu  sync.Mutex
	got []iexec.Command
	out string
	err error
}

func (f *fakeRunner) Run(_ context.Context, cmd iexec.Command) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, cmd)
	return []byte(f.out), f.err
}

func TestCommand_Execute(t *testing.T) {
	runner := &fakeRunner{out: "  plated\n"}
	c := NewCommand(runner, "./cook.sh", "/srv/kitchen")

	out, err := c.Execute(context.Background(), models.ExecRequest{
		Namespace: ns, TaskID: "t1", Role: "WokChef", Instruction: "stir fry",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.Final || out.Result != "plated" {
		t.Errorf("outcome = %+v", out)
	}

	cmd := runner.got[0]
	if cmd.Dir != "/srv/kitchen" || cmd.Name != "sh" || cmd.Args[1] != "./cook.sh" {
		t.Errorf("command = %+v", cmd)
	}
	if cmd.Stdin != "stir fry" {
		t.Errorf("stdin = %q", cmd.Stdin)
	}
	wantEnv := []string{"BRIGADE_JOB=kitchen", "BRIGADE_TASK_ID=t1", "BRIGADE_ROLE=WokChef"}
	if strings.Join(cmd.Env, " ") != strings.Join(wantEnv, " ") {
		t.Errorf("env = %v, want %v", cmd.Env, wantEnv)
	}
}

func TestCommand_Failure(t *testing.T) {
	exitErr := errors.New("exit status 2")
	c := NewCommand(&fakeRunner{out: "burnt", err: exitErr}, "false", "")

	_, err := c.Execute(context.Background(), models.ExecRequest{Namespace: ns, TaskID: "t1"})
	if !errors.Is(err, exitErr) {
		t.Fatalf("error = %v, want wrapped exit error", err)
	}
	if !strings.Contains(err.Error(), "burnt") {
		t.Errorf("error %q does not carry output", err)
	}
}

func TestCommand_RealShell(t *testing.T) {
	c := NewCommand(nil, `read line; echo "$BRIGADE_ROLE:$line"`, "")
	out, err := c.Execute(context.Background(), models.ExecRequest{
		Namespace: ns, TaskID: "t9", Role: "RiceChef", Instruction: "rinse",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Result != "RiceChef:rinse" {
		t.Errorf("result = %q", out.Result)
	}
}

type fakeCompleter struct {
	got  api.CompletionRequest
	text string
	err  error
}

func (f *fakeCompleter) Complete(_ context.Context, req api.CompletionRequest) (*api.Completion, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &api.Completion{Text: f.text, StopReason: "end_turn"}, nil
}

func TestClaude_Execute(t *testing.T) {
	fc := &fakeCompleter{text: "\nUse jasmine rice.\n"}
	c := NewClaude(fc, WithSystemPrompt("You are the rice chef."), WithModel("claude-haiku-4-5-20251001"), WithMaxTokens(256))

	out, err := c.Execute(context.Background(), models.ExecRequest{Role: "RiceChef", Instruction: "Pick a rice"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Result != "Use jasmine rice." || !out.Final {
		t.Errorf("outcome = %+v", out)
	}
	if fc.got.System != "You are the rice chef." || fc.got.Prompt != "Pick a rice" {
		t.Errorf("request = %+v", fc.got)
	}
	if fc.got.Model != "claude-haiku-4-5-20251001" || fc.got.MaxTokens != 256 {
		t.Errorf("request model/tokens = %q/%d", fc.got.Model, fc.got.MaxTokens)
	}
}

func TestClaude_Errors(t *testing.T) {
	apiErr := errors.New("overloaded")
	tests := []struct {
		name string
		fc   *fakeCompleter
	}{
		{"api error", &fakeCompleter{err: apiErr}},
		{"empty text", &fakeCompleter{text: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClaude(tt.fc).Execute(context.Background(), models.ExecRequest{Role: "r"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func seedTask(t *testing.T, s store.Store, id string) {
	t.Helper()
	tk := &models.Task{ID: id, Role: "Oven", Instruction: "bake", Status: models.TaskStatusProcessing}
	if err := s.Put(context.Background(), ns, id, tk); err != nil {
		t.Fatal(err)
	}
}

func getTask(t *testing.T, s store.Store, id string) *models.Task {
	t.Helper()
	tk, err := s.Get(context.Background(), ns, id)
	if err != nil || tk == nil {
		t.Fatalf("Get(%s) = %v, %v", id, tk, err)
	}
	return tk
}

func TestBackground_DetachesAndCompletes(t *testing.T) {
	s := store.NewMemory()
	seedTask(t, s, "t1")

	release := make(chan struct{})
	inner := orchestrator.ExecutorFunc(func(ctx context.Context, req models.ExecRequest) (models.Outcome, error) {
		<-release
		return models.FinalOutcome("baked " + req.TaskID), nil
	})
	bg := NewBackground(s, inner)

	ctx, cancel := context.WithCancel(context.Background())
	out, err := bg.Execute(ctx, models.ExecRequest{Namespace: ns, TaskID: "t1", Role: "Oven"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Canceling the caller must not stop the detached unit.
	cancel()

	if out.Final || !strings.Contains(out.Result, "background") {
		t.Errorf("outcome = %+v, want detached ack", out)
	}
	mid := getTask(t, s, "t1")
	if mid.Status != models.TaskStatusRunning || !mid.IsBackground || mid.StartTime == nil {
		t.Errorf("record while detached = %+v", mid)
	}

	close(release)
	bg.Wait()

	final := getTask(t, s, "t1")
	if final.Status != models.TaskStatusDone || final.Result != "baked t1" || final.EndTime == nil {
		t.Errorf("record after completion = %+v", final)
	}
}

func TestBackground_FailureRequeues(t *testing.T) {
	s := store.NewMemory()
	seedTask(t, s, "t1")
	bg := NewBackground(s, orchestrator.ExecutorFunc(func(context.Context, models.ExecRequest) (models.Outcome, error) {
		return models.Outcome{}, errors.New("oven cold")
	}))

	if _, err := bg.Execute(context.Background(), models.ExecRequest{Namespace: ns, TaskID: "t1"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bg.WaitContext(ctx); err != nil {
		t.Fatalf("WaitContext: %v", err)
	}

	got := getTask(t, s, "t1")
	if got.Status != models.TaskStatusPending || !strings.Contains(got.Result, "oven cold") {
		t.Errorf("record = %+v", got)
	}
}

func TestBackground_MissingRecord(t *testing.T) {
	bg := NewBackground(store.NewMemory(), orchestrator.ExecutorFunc(func(context.Context, models.ExecRequest) (models.Outcome, error) {
		t.Error("inner executor called for missing record")
		return models.Outcome{}, nil
	}))
	if _, err := bg.Execute(context.Background(), models.ExecRequest{Namespace: ns, TaskID: "ghost"}); err == nil {
		t.Error("expected error for missing record")
	}
}

// A background role frees itself for the next task and its dependents wait
// for the detached completion.
func TestBackground_WithDispatcher(t *testing.T) {
	s := store.NewMemory()
	for _, tk := range []*models.Task{
		{ID: "roast", Role: "Oven", Instruction: "roast", Status: models.TaskStatusPending},
		{ID: "bread", Role: "Oven", Instruction: "bread", Status: models.TaskStatusPending},
		{ID: "plate", Role: "Server", Instruction: "plate", Dependencies: []string{"roast"}, Status: models.TaskStatusPending},
	} {
		if err := s.Put(context.Background(), ns, tk.ID, tk); err != nil {
			t.Fatal(err)
		}
	}

	var mu sync.Mutex
	var order []string
	record := func(id string) {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
	}

	release := make(chan struct{})
	oven := NewBackground(s, orchestrator.ExecutorFunc(func(_ context.Context, req models.ExecRequest) (models.Outcome, error) {
		if req.TaskID == "roast" {
			<-release
		}
		record(req.TaskID)
		return models.FinalOutcome("ok"), nil
	}))
	server := orchestrator.ExecutorFunc(func(_ context.Context, req models.ExecRequest) (models.Outcome, error) {
		record(req.TaskID)
		return models.FinalOutcome("served"), nil
	})

	d := orchestrator.NewDispatcher(s, ns, map[string]orchestrator.Executor{"Oven": oven, "Server": server},
		orchestrator.WithBackoff(orchestrator.NotifyBackoff{Notifier: s, Fallback: 5 * time.Millisecond}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		_, err := d.Run(ctx)
		errCh <- err
	}()

	deadline := time.Now().Add(3 * time.Second)
	for getTask(t, s, "bread").Status != models.TaskStatusDone {
		if time.Now().After(deadline) {
			t.Fatal("bread never finished while roast was in the background")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if got := getTask(t, s, "plate"); got.Status != models.TaskStatusPending {
		t.Errorf("plate started before roast was done: %s", got.Status)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	oven.Wait()

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(order, ",") != "bread,roast,plate" {
		t.Errorf("order = %v", order)
	}
}

// A detached unit that keeps failing requeues the task itself; the attempt
// cap must still end the job in both dispatch modes.
func TestBackground_MaxAttempts(t *testing.T) {
	for _, mode := range []orchestrator.Mode{orchestrator.ModeWorkers, orchestrator.ModeCoordinator} {
		t.Run(string(mode), func(t *testing.T) {
			s := store.NewMemory()
			seedTask(t, s, "t1")
			oven := NewBackground(s, orchestrator.ExecutorFunc(func(context.Context, models.ExecRequest) (models.Outcome, error) {
				return models.Outcome{}, errors.New("oven cold")
			}))

			d := orchestrator.NewDispatcher(s, ns, map[string]orchestrator.Executor{"Oven": oven},
				orchestrator.WithMode(mode),
				orchestrator.WithMaxAttempts(2),
				orchestrator.WithPollInterval(time.Millisecond))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := d.Run(ctx)
			oven.Wait()
			if !errors.Is(err, orchestrator.ErrAttemptsExhausted) {
				t.Fatalf("Run error = %v, want ErrAttemptsExhausted", err)
			}

			got := getTask(t, s, "t1")
			if got.Attempts != 2 || got.Status != models.TaskStatusPending || !strings.Contains(got.Result, "oven cold") {
				t.Errorf("record = %+v", got)
			}
		})
	}
}
