// Package exec provides an interface for command execution.
package exec

import (
	"context"
)

// Command describes one external process invocation.
type Command struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Name is the program to run.
	Name string
	// Args are passed to the program.
	Args []string
	// Stdin is written to the process's standard input.
	Stdin string
	// Env is appended to the parent environment as KEY=VALUE pairs.
	Env []string
}

// Shell builds a Command running script through "sh -c".
func Shell(dir, script string) Command {
	return Command{Dir: dir, Name: "sh", Args: []string{"-c", script}}
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	Run(ctx context.Context, cmd Command) (output []byte, err error)
}
