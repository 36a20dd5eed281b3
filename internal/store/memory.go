package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/brigade/pkg/models"
)

// MemoryStore is an in-process Store that preserves insertion order.
// Records are copied on the way in and out so callers never share state.
type MemoryStore struct {
	mu      sync.RWMutex
	spaces  map[string]*memorySpace
	order   []string
	jobs    map[string]*Job
	changes *broadcaster
}

type memorySpace struct {
	ids     []string
	records map[string]*models.Task
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		spaces:  make(map[string]*memorySpace),
		jobs:    make(map[string]*Job),
		changes: newBroadcaster(),
	}
}

// Get returns a copy of the record, or nil if absent.
func (m *MemoryStore) Get(_ context.Context, namespace, id string) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sp, ok := m.spaces[namespace]
	if !ok {
		return nil, nil
	}
	return sp.records[id].Clone(), nil
}

// Put stores a copy of the record and wakes change waiters.
func (m *MemoryStore) Put(_ context.Context, namespace, id string, task *models.Task) error {
	if task == nil {
		return fmt.Errorf("put %s/%s: nil task", namespace, id)
	}

	m.mu.Lock()
	sp, ok := m.spaces[namespace]
	if !ok {
		sp = &memorySpace{records: make(map[string]*models.Task)}
		m.spaces[namespace] = sp
		m.order = append(m.order, namespace)
	}
	if _, exists := sp.records[id]; !exists {
		sp.ids = append(sp.ids, id)
	}
	sp.records[id] = task.Clone()
	m.mu.Unlock()

	m.changes.notify()
	return nil
}

// Scan returns copies of the namespace's records in insertion order.
func (m *MemoryStore) Scan(_ context.Context, namespace string, limit int) ([]*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sp, ok := m.spaces[namespace]
	if !ok {
		return nil, nil
	}

	n := len(sp.ids)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*models.Task, 0, n)
	for _, id := range sp.ids[:n] {
		out = append(out, sp.records[id].Clone())
	}
	return out, nil
}

// Namespaces lists namespaces in creation order.
func (m *MemoryStore) Namespaces(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}

// Changed returns a channel closed on the next Put.
func (m *MemoryStore) Changed() <-chan struct{} {
	return m.changes.wait()
}

// CreateJob registers a job. It fails if the ID is already taken.
func (m *MemoryStore) CreateJob(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[j.ID]; exists {
		return fmt.Errorf("create job: job %s already exists", j.ID)
	}
	c := *j
	m.jobs[j.ID] = &c
	return nil
}

// GetJob returns a copy of the job, or nil if absent.
func (m *MemoryStore) GetJob(_ context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	c := *j
	return &c, nil
}

// UpdateJob overwrites an existing job.
func (m *MemoryStore) UpdateJob(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[j.ID]; !exists {
		return fmt.Errorf("update job: job %s not found", j.ID)
	}
	c := *j
	m.jobs[j.ID] = &c
	return nil
}

// ListJobs returns all jobs newest first.
func (m *MemoryStore) ListJobs(_ context.Context) ([]Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, *j)
	}
	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].StartedAt.After(jobs[b].StartedAt)
	})
	return jobs, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
