package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fatih/color"

	iexec "github.com/ShayCichocki/brigade/internal/exec"
)

func init() {
	color.NoColor = true
}

const dinnerPlan = `
name: dinner
roles: [RiceChef, StewChef, Plating]
tasks:
  - id: rice
    role: RiceChef
    instruction: cook rice
  - id: stew
    role: StewChef
    instruction: simmer the stew
  - id: plate
    role: Plating
    instruction: plate rice and stew
    dependencies: [rice, stew]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeRunner records commands and answers with a fixed output.
type fakeRunner struct {
	mu     sync.Mutex
	output string
	err    error
	calls  []iexec.Command
}

func (f *fakeRunner) Run(_ context.Context, c iexec.Command) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return []byte(f.output), f.err
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
