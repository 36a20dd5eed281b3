// Package tui provides the live job view for brigade's watch and run commands.
//
// The view is read-only. It polls the task store at a fixed refresh rate and
// shows overall progress, per-role status, and a task table. Dispatch events
// can be fed in as an activity log while a run is in progress.
//
// Usage:
//
//	program, app := tui.NewJobProgram(s, namespace, 250*time.Millisecond)
//	go func() {
//	    for ev := range emitter.Events() {
//	        program.Send(tui.EventMsg{Event: ev})
//	    }
//	}()
//	program.Run()
//
// Keys: "/" filters by role, "esc" clears the filter, "q" or Ctrl+C quits.
package tui
