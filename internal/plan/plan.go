// Package plan loads task plans and seeds them into a job namespace.
//
// A plan is a list of tasks with roles, instructions and dependencies. Plans
// come from YAML or JSON files (Load) or from a planner model's raw answer
// (ParseOutput). Either way every task starts pending with no runtime state.
package plan

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// ErrNoTasks is returned when a plan contains no tasks.
var ErrNoTasks = errors.New("plan has no tasks")

// Plan is a parsed plan file.
type Plan struct {
	// Name is an optional label shown in job listings.
	Name string
	// Roles optionally restricts which roles tasks may use.
	Roles []string
	// Tasks are in file order, which becomes scan order.
	Tasks []*models.Task
}

// planFile is the on-disk shape. "assignee" is accepted as an alias of
// "role" to match planner output.
type planFile struct {
	Name  string     `yaml:"name,omitempty"`
	Roles []string   `yaml:"roles,omitempty"`
	Tasks []planTask `yaml:"tasks"`
}

type planTask struct {
	ID           string   `yaml:"id"`
	Role         string   `yaml:"role"`
	Assignee     string   `yaml:"assignee,omitempty"`
	Instruction  string   `yaml:"instruction"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

func (p planTask) task() *models.Task {
	role := p.Role
	if role == "" {
		role = p.Assignee
	}
	return newTask(p.ID, role, p.Instruction, p.Dependencies)
}

// newTask builds a freshly planned task.
func newTask(id, role, instruction string, deps []string) *models.Task {
	t := &models.Task{
		ID:          id,
		Role:        role,
		Instruction: instruction,
	}
	if len(deps) > 0 {
		t.Dependencies = append([]string(nil), deps...)
	}
	t.Reset()
	return t
}

// Load reads a plan from a YAML or JSON file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a plan document. JSON is accepted as a subset of YAML.
func Parse(data []byte) (*Plan, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}

	p := &Plan{Name: f.Name, Roles: f.Roles}
	for _, pt := range f.Tasks {
		p.Tasks = append(p.Tasks, pt.task())
	}
	if err := checkTasks(p.Tasks); err != nil {
		return nil, err
	}
	return p, nil
}

// Marshal renders p as a plan file that Parse reads back.
func Marshal(p *Plan) ([]byte, error) {
	f := planFile{Name: p.Name, Roles: p.Roles}
	for _, t := range p.Tasks {
		f.Tasks = append(f.Tasks, planTask{
			ID:           t.ID,
			Role:         t.Role,
			Instruction:  t.Instruction,
			Dependencies: t.Dependencies,
		})
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	return data, nil
}

// checkTasks rejects tasks that could never be stored or dispatched.
// Graph problems (cycles, dangling dependencies) are left to graph.Validate.
func checkTasks(tasks []*models.Task) error {
	if len(tasks) == 0 {
		return ErrNoTasks
	}
	for i, t := range tasks {
		if t.ID == "" {
			return fmt.Errorf("task %d: missing id", i)
		}
		if t.Role == "" {
			return fmt.Errorf("task %s: missing role", t.ID)
		}
	}
	return nil
}

// Seed writes tasks into namespace in order.
func Seed(ctx context.Context, s store.Store, namespace string, tasks []*models.Task) error {
	for _, t := range tasks {
		if err := s.Put(ctx, namespace, t.ID, t); err != nil {
			return fmt.Errorf("seed task %s: %w", t.ID, err)
		}
	}
	return nil
}
