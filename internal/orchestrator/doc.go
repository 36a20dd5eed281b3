// Package orchestrator drives a job's task DAG to completion.
//
// Execution is decentralized: every decision is taken by re-reading the task
// store, and roles never signal each other. Two variants are provided:
//   - RoleWorker: one loop per role that claims its own ready tasks in scan
//     order, runs them one at a time and exits when the role has nothing left.
//   - Coordinator: a single loop that makes at most one assignment per tick,
//     handing the task to the idle role's executor.
//
// A Monitor decides job completion (every task done) and Dispatcher runs
// either variant for one namespace until the job completes.
//
// Executors may detach long-running work: they write the record as running,
// return a non-final Outcome, and later write done themselves. The role is
// free to pick up its next task meanwhile, but dependents stay blocked until
// the detached unit reports done.
//
// Example usage:
//
//	s := store.NewMemory()
//	d := orchestrator.NewDispatcher(s, store.Namespace(jobID), executors,
//		orchestrator.WithBackoff(orchestrator.NotifyBackoff{Notifier: s}))
//	if err := d.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package orchestrator
