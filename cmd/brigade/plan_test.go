package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShayCichocki/brigade/internal/graph"
	"github.com/ShayCichocki/brigade/internal/plan"
)

func runPlanCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"plan"}, args...))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlanValidate(t *testing.T) {
	out, err := runPlanCommand(t, "validate", writeFile(t, "dinner.yaml", dinnerPlan))
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Plan dinner: 3 tasks") {
		t.Errorf("missing header:\n%s", out)
	}
	if strings.Index(out, "plate") < strings.Index(out, "rice") {
		t.Errorf("plate must come after rice:\n%s", out)
	}
	if !strings.Contains(out, "warning: role Plating has no executor configured") {
		t.Errorf("expected role warnings:\n%s", out)
	}
}

func TestPlanValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		plan string
		want error
	}{
		{
			name: "cycle",
			plan: "tasks:\n  - {id: a, role: r, dependencies: [b]}\n  - {id: b, role: r, dependencies: [a]}\n",
			want: graph.ErrCycleDetected,
		},
		{
			name: "dangling",
			plan: "tasks:\n  - {id: a, role: r, dependencies: [ghost]}\n",
			want: graph.ErrUnknownDependency,
		},
		{
			name: "undeclared role",
			plan: "roles: [r]\ntasks:\n  - {id: a, role: s}\n",
			want: graph.ErrUnknownRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runPlanCommand(t, "validate", writeFile(t, "bad.yaml", tt.plan))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPlanImport(t *testing.T) {
	raw := "<think>rice first</think>\n```json\n" +
		`{"tasks": [{"id": 1, "assignee": "RiceChef", "instruction": "cook rice"},` +
		`{"id": 2, "assignee": "Plating", "instruction": "plate", "dependencies": ["1"]}]}` +
		"\n```\n"
	outPath := filepath.Join(t.TempDir(), "plan.yaml")

	out, err := runPlanCommand(t, "import", writeFile(t, "raw.txt", raw), "--out", outPath)
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Wrote 2 tasks") {
		t.Errorf("unexpected output %q", out)
	}

	p, err := plan.Load(outPath)
	if err != nil {
		t.Fatalf("imported plan does not load: %v", err)
	}
	if len(p.Tasks) != 2 || p.Tasks[1].Dependencies[0] != "1" || len(p.Roles) != 2 {
		t.Errorf("imported plan = %+v", p)
	}
	data, _ := os.ReadFile(outPath)
	if strings.Contains(string(data), "think") {
		t.Error("reasoning block leaked into the plan")
	}
}
