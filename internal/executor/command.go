package executor

import (
	"context"
	"fmt"
	"strings"

	iexec "github.com/ShayCichocki/brigade/internal/exec"
	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// maxErrorOutput bounds how much command output is kept in a failure message.
const maxErrorOutput = 2048

// Command runs a shell script per task. The instruction is written to the
// script's stdin and the task identity is exported as BRIGADE_JOB,
// BRIGADE_TASK_ID and BRIGADE_ROLE.
type Command struct {
	runner iexec.CommandRunner
	script string
	dir    string
}

// NewCommand creates a command executor running script in dir.
func NewCommand(runner iexec.CommandRunner, script, dir string) *Command {
	if runner == nil {
		runner = iexec.NewRunner()
	}
	return &Command{runner: runner, script: script, dir: dir}
}

// Execute runs the script. Trimmed combined output is the result; a non-zero
// exit is a failure carrying the output.
func (c *Command) Execute(ctx context.Context, req models.ExecRequest) (models.Outcome, error) {
	cmd := iexec.Shell(c.dir, c.script)
	cmd.Stdin = req.Instruction
	cmd.Env = []string{
		"BRIGADE_JOB=" + store.JobID(req.Namespace),
		"BRIGADE_TASK_ID=" + req.TaskID,
		"BRIGADE_ROLE=" + req.Role,
	}

	out, err := c.runner.Run(ctx, cmd)
	result := strings.TrimSpace(string(out))
	if err != nil {
		if len(result) > maxErrorOutput {
			result = result[len(result)-maxErrorOutput:]
		}
		if result == "" {
			return models.Outcome{}, fmt.Errorf("command failed: %w", err)
		}
		return models.Outcome{}, fmt.Errorf("command failed: %w: %s", err, result)
	}
	return models.FinalOutcome(result), nil
}
