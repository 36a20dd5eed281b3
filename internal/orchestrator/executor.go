package orchestrator

import (
	"context"

	"github.com/ShayCichocki/brigade/pkg/models"
)

// Executor performs the work of one claimed task for a role.
//
// Returning an error requeues the task. Returning a non-final Outcome means
// the executor has taken over the record (marked it running) and will write
// done itself later.
type Executor interface {
	Execute(ctx context.Context, req models.ExecRequest) (models.Outcome, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req models.ExecRequest) (models.Outcome, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req models.ExecRequest) (models.Outcome, error) {
	return f(ctx, req)
}
