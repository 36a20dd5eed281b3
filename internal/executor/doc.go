// Package executor provides the role executors the dispatcher calls: a shell
// command runner, a Claude completion, and a wrapper that moves any executor's
// work to the background.
package executor
