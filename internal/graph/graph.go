// Package graph provides dependency resolution and pre-flight validation for
// planned task sets.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ShayCichocki/brigade/pkg/models"
)

var (
	// ErrCycleDetected indicates a circular dependency was found in the task graph.
	ErrCycleDetected = errors.New("circular dependency detected")
	// ErrUnknownDependency indicates a task depends on an ID that is not planned.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrSelfDependency indicates a task lists itself as a dependency.
	ErrSelfDependency = errors.New("task depends on itself")
	// ErrDuplicateTask indicates two planned tasks share an ID.
	ErrDuplicateTask = errors.New("duplicate task id")
	// ErrUnknownRole indicates a task is assigned to a role nobody serves.
	ErrUnknownRole = errors.New("unknown role")
)

// DependencyGraph represents a directed acyclic graph of task dependencies.
// Tasks are nodes, and edges represent "blocked by" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to IDs of tasks it depends on.
	edges map[string][]string
	// order keeps insertion order so traversals are deterministic.
	order []string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[string]*models.Task),
		edges:    make(map[string][]string),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a slice of tasks.
// Returns an error for duplicate IDs, self or unknown dependencies, and cycles.
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d tasks", len(tasks))

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if _, exists := g.nodes[task.ID]; exists {
			return fmt.Errorf("task %s: %w", task.ID, ErrDuplicateTask)
		}
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
		g.order = append(g.order, task.ID)
	}

	// Second pass: build edges from Dependencies.
	for _, task := range tasks {
		for _, depID := range task.Dependencies {
			if depID == task.ID {
				return fmt.Errorf("task %s: %w", task.ID, ErrSelfDependency)
			}
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("task %s depends on %s: %w", task.ID, depID, ErrUnknownDependency)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	g.debugLog("[graph.Build] edges: %v", g.edges)

	if cycle := g.findCycleLocked(); cycle != nil {
		return fmt.Errorf("%w: %v", ErrCycleDetected, cycle)
	}

	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findCycleLocked() != nil
}

// findCycleLocked runs a coloured depth-first search and returns the IDs on the
// first back edge it finds, or nil. Caller must hold g.mu.
func (g *DependencyGraph) findCycleLocked() []string {
	// 0 = unvisited, 1 = on the current path, 2 = finished.
	colors := make(map[string]int, len(g.nodes))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		colors[id] = 1
		path = append(path, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				for i, p := range path {
					if p == depID {
						cycle := append([]string(nil), path[i:]...)
						return append(cycle, depID)
					}
				}
				return []string{id, depID}
			case 0:
				if cycle := visit(depID); cycle != nil {
					return cycle
				}
			}
		}

		path = path[:len(path)-1]
		colors[id] = 2
		return nil
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalSort returns task IDs in an order where all dependencies
// come before the tasks that depend on them. Ties keep insertion order.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.findCycleLocked() != nil {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// GetTask returns the task for a given ID, or nil if not found.
func (g *DependencyGraph) GetTask(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the IDs of tasks that the given task depends on.
func (g *DependencyGraph) GetDependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[taskID]...)
}

// GetDependents returns the IDs of tasks that depend on the given task.
func (g *DependencyGraph) GetDependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// Validate checks a planned task set before dispatch: IDs must be unique,
// dependencies must exist and form a DAG, and when roles is non-empty every
// task must be assigned to one of them.
func Validate(tasks []*models.Task, roles []string) error {
	if len(roles) > 0 {
		known := make(map[string]bool, len(roles))
		for _, r := range roles {
			known[r] = true
		}
		for _, task := range tasks {
			if !known[task.Role] {
				return fmt.Errorf("task %s assigned to %q: %w", task.ID, task.Role, ErrUnknownRole)
			}
		}
	}
	return New().Build(tasks)
}
