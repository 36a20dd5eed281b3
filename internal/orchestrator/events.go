package orchestrator

import (
	"time"
)

// EventType represents the type of dispatch event.
type EventType string

const (
	// EventTaskClaimed indicates a role worker claimed a ready task.
	EventTaskClaimed EventType = "task_claimed"
	// EventTaskAssigned indicates the coordinator assigned a task to a role.
	EventTaskAssigned EventType = "task_assigned"
	// EventTaskCompleted indicates a task was marked done by its role.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskDetached indicates the executor moved the task to the background.
	EventTaskDetached EventType = "task_detached"
	// EventTaskRequeued indicates a failed task went back to pending.
	EventTaskRequeued EventType = "task_requeued"
	// EventTaskExhausted indicates a task hit the attempt cap.
	EventTaskExhausted EventType = "task_exhausted"
	// EventRoleFinished indicates a role worker has no tasks left.
	EventRoleFinished EventType = "role_finished"
	// EventJobComplete indicates every task in the job is done.
	EventJobComplete EventType = "job_complete"
)

// Event is emitted by workers, the coordinator and the dispatcher.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Namespace is the job namespace the event belongs to.
	Namespace string
	// TaskID is the related task, if applicable.
	TaskID string
	// Role is the related role, if applicable.
	Role string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for requeue and exhaustion events.
	Error error
	// Attempts is the task's claim count at the time of the event.
	Attempts int
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
