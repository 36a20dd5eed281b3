package graph

import "github.com/ShayCichocki/brigade/pkg/models"

// Ready reports whether every dependency of task is done in all.
// A dependency missing from all counts as unmet. Ready has no side effects.
func Ready(task *models.Task, all map[string]*models.Task) bool {
	for _, depID := range task.Dependencies {
		dep, ok := all[depID]
		if !ok || dep == nil || !dep.Status.Terminal() {
			return false
		}
	}
	return true
}

// Unmet returns the dependency IDs of task that are not yet done, in
// declaration order.
func Unmet(task *models.Task, all map[string]*models.Task) []string {
	var unmet []string
	for _, depID := range task.Dependencies {
		dep, ok := all[depID]
		if !ok || dep == nil || !dep.Status.Terminal() {
			unmet = append(unmet, depID)
		}
	}
	return unmet
}

// Index maps a scanned task slice by ID. Later duplicates win.
func Index(tasks []*models.Task) map[string]*models.Task {
	idx := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		if t != nil {
			idx[t.ID] = t
		}
	}
	return idx
}
