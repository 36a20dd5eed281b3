package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been claimed.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusProcessing indicates a role is executing the task synchronously.
	TaskStatusProcessing TaskStatus = "processing"
	// TaskStatusRunning indicates the task was detached to the background by its executor.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusDone indicates the task completed.
	TaskStatusDone TaskStatus = "done"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusRunning, TaskStatusDone:
		return true
	default:
		return false
	}
}

// Active returns true if the task is owned by a role or a detached unit.
func (s TaskStatus) Active() bool {
	return s == TaskStatusProcessing || s == TaskStatusRunning
}

// Terminal returns true if no further transitions are expected.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusDone
}

// Task is one schedulable unit of work within a job namespace.
type Task struct {
	// ID is unique within the job namespace.
	ID string `json:"id" yaml:"id"`
	// Role is the only worker role allowed to execute this task.
	Role string `json:"role" yaml:"role"`
	// Instruction is handed to the role's executor verbatim.
	Instruction string `json:"instruction" yaml:"instruction"`
	// Dependencies lists task IDs that must be done before this task starts.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	// Status is the current lifecycle state.
	Status TaskStatus `json:"status" yaml:"status"`
	// IsBackground is set by the executor when it detaches the work.
	IsBackground bool `json:"is_background" yaml:"is_background"`
	// StartTime is set on the transition to processing or running.
	StartTime *time.Time `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	// EndTime is set on the transition to done.
	EndTime *time.Time `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	// Result holds the executor output, or the last error after a requeue.
	Result string `json:"result,omitempty" yaml:"result,omitempty"`
	// Attempts counts how many times the task has been claimed.
	Attempts int `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Dependencies != nil {
		c.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.StartTime != nil {
		st := *t.StartTime
		c.StartTime = &st
	}
	if t.EndTime != nil {
		et := *t.EndTime
		c.EndTime = &et
	}
	return &c
}

// Duration returns how long the task ran, or zero if it has not finished.
func (t *Task) Duration() time.Duration {
	if t.StartTime == nil || t.EndTime == nil {
		return 0
	}
	return t.EndTime.Sub(*t.StartTime)
}

// MarkStarted moves the task into an active status and stamps StartTime.
func (t *Task) MarkStarted(status TaskStatus, now time.Time) {
	t.Status = status
	t.StartTime = &now
}

// MarkDone records the result and stamps EndTime.
func (t *Task) MarkDone(result string, now time.Time) {
	t.Status = TaskStatusDone
	t.Result = result
	t.EndTime = &now
}

// Requeue returns the task to pending and keeps the failure text in Result.
func (t *Task) Requeue(cause error) {
	t.Status = TaskStatusPending
	if cause != nil {
		t.Result = "execution failed: " + cause.Error()
	}
}

// Reset clears runtime fields so a freshly planned task starts pending.
func (t *Task) Reset() {
	t.Status = TaskStatusPending
	t.IsBackground = false
	t.StartTime = nil
	t.EndTime = nil
	t.Result = ""
	t.Attempts = 0
}
