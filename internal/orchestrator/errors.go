package orchestrator

import "errors"

var (
	// ErrAttemptsExhausted is returned when a task has been claimed the
	// configured maximum number of times without completing.
	ErrAttemptsExhausted = errors.New("task attempts exhausted")
	// ErrStalled is returned when no task can make progress for the
	// configured number of consecutive checks.
	ErrStalled = errors.New("job stalled")
	// ErrEmptyJob is returned when the job namespace holds no tasks.
	ErrEmptyJob = errors.New("job has no tasks")
	// ErrNoExecutor is returned when a role has tasks but no executor.
	ErrNoExecutor = errors.New("no executor for role")
)
