// Package store provides the namespaced task repository shared by every role.
//
// A Store holds one record per task, keyed by namespace and task ID. It offers
// only point reads, full overwrites and namespace scans: no transactions and no
// compare-and-swap. Callers coordinate through a single-writer-per-record
// convention instead.
package store

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/ShayCichocki/brigade/pkg/models"
)

const namespacePrefix = "jobs/"
const namespaceSuffix = "/tasks"

// Namespace returns the task namespace for a job.
func Namespace(jobID string) string {
	return namespacePrefix + jobID + namespaceSuffix
}

// JobID extracts the job ID from a namespace built by Namespace.
// Other namespaces are returned unchanged.
func JobID(namespace string) string {
	if strings.HasPrefix(namespace, namespacePrefix) && strings.HasSuffix(namespace, namespaceSuffix) {
		return strings.TrimSuffix(strings.TrimPrefix(namespace, namespacePrefix), namespaceSuffix)
	}
	return namespace
}

// Store is the minimal key-value contract the dispatcher requires.
type Store interface {
	// Get returns the record, or nil and no error when it does not exist.
	Get(ctx context.Context, namespace, id string) (*models.Task, error)
	// Put overwrites the whole record.
	Put(ctx context.Context, namespace, id string, task *models.Task) error
	// Scan returns records in insertion order. limit <= 0 returns all of them.
	Scan(ctx context.Context, namespace string, limit int) ([]*models.Task, error)
}

// ChangeNotifier is implemented by backends that can wake waiters when a
// record changes. The returned channel is closed on the next change.
type ChangeNotifier interface {
	Changed() <-chan struct{}
}

// JobStatus represents the status of a job.
type JobStatus string

const (
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Job is the bookkeeping row for one dispatcher run over a namespace.
type Job struct {
	ID         string     `json:"id"`
	Mode       string     `json:"mode"`
	Status     JobStatus  `json:"status"`
	TaskCount  int        `json:"task_count"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// JobRegistry records jobs alongside their task namespaces.
type JobRegistry interface {
	CreateJob(ctx context.Context, j *Job) error
	// GetJob returns nil and no error when the job does not exist.
	GetJob(ctx context.Context, id string) (*Job, error)
	UpdateJob(ctx context.Context, j *Job) error
	// ListJobs returns jobs newest first.
	ListJobs(ctx context.Context) ([]Job, error)
}

// Backend is everything the CLI needs from a concrete store.
type Backend interface {
	io.Closer
	Store
	JobRegistry
}

// Compile-time verification that both backends implement all interfaces.
var (
	_ Backend        = (*MemoryStore)(nil)
	_ ChangeNotifier = (*MemoryStore)(nil)
	_ Backend        = (*SQLiteStore)(nil)
	_ ChangeNotifier = (*FileWatcher)(nil)
)
