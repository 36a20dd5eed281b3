package models

// ExecRequest is what a role executor receives for one claimed task.
type ExecRequest struct {
	// Namespace is the job namespace holding the task record.
	Namespace string `json:"namespace"`
	// TaskID identifies the record the executor may take over.
	TaskID string `json:"task_id"`
	// Role is the role that claimed the task.
	Role string `json:"role"`
	// Instruction is the opaque work payload.
	Instruction string `json:"instruction"`
}

// Outcome is the executor's answer for a claimed task.
type Outcome struct {
	// Final is false when the executor detached the work and owns the record.
	Final bool `json:"final"`
	// Result is the task output, or an acknowledgement when Final is false.
	Result string `json:"result,omitempty"`
}

// FinalOutcome builds a completed outcome.
func FinalOutcome(result string) Outcome {
	return Outcome{Final: true, Result: result}
}

// DetachedOutcome builds an outcome for work continuing in the background.
func DetachedOutcome(ack string) Outcome {
	return Outcome{Final: false, Result: ack}
}
