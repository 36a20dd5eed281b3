package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/brigade/internal/orchestrator"
	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// eventColor picks the color used for an event type on the console.
func eventColor(t orchestrator.EventType) *color.Color {
	switch t {
	case orchestrator.EventTaskClaimed, orchestrator.EventTaskAssigned:
		return color.New(color.FgCyan)
	case orchestrator.EventTaskCompleted:
		return color.New(color.FgGreen)
	case orchestrator.EventTaskDetached:
		return color.New(color.FgBlue)
	case orchestrator.EventTaskRequeued:
		return color.New(color.FgYellow)
	case orchestrator.EventTaskExhausted:
		return color.New(color.FgRed, color.Bold)
	case orchestrator.EventJobComplete:
		return color.New(color.FgGreen, color.Bold)
	default:
		return color.New(color.FgMagenta)
	}
}

// printEvent writes one dispatch event as a console line.
func printEvent(w io.Writer, ev orchestrator.Event) {
	var b strings.Builder
	if ev.TaskID != "" {
		b.WriteString(ev.TaskID)
	}
	if ev.Role != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("[" + ev.Role + "]")
	}
	if ev.Message != "" {
		b.WriteString(" " + ev.Message)
	}
	if ev.Error != nil {
		b.WriteString(" " + color.RedString(ev.Error.Error()))
	}

	fmt.Fprintf(w, "%s %s %s\n",
		ev.Timestamp.Format("15:04:05"),
		eventColor(ev.Type).Sprintf("%-15s", ev.Type),
		strings.TrimSpace(b.String()))
}

// statusColor colors a task status for tables.
func statusColor(s models.TaskStatus) *color.Color {
	switch s {
	case models.TaskStatusDone:
		return color.New(color.FgGreen)
	case models.TaskStatusRunning:
		return color.New(color.FgBlue)
	case models.TaskStatusProcessing:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgHiBlack)
	}
}

// printTasks writes the per-task listing: status, background marker, role,
// duration and id, with the last result line for unfinished tasks.
func printTasks(w io.Writer, tasks []*models.Task) {
	fmt.Fprintf(w, "  %-11s %-3s %-14s %-9s %s\n", "STATUS", "BG", "ROLE", "DURATION", "TASK")
	for _, t := range tasks {
		if t == nil {
			continue
		}
		bg := ""
		if t.IsBackground {
			bg = "*"
		}
		fmt.Fprintf(w, "  %s %-3s %-14s %-9s %s\n",
			statusColor(t.Status).Sprintf("%-11s", t.Status),
			bg,
			t.Role,
			formatDuration(t.Duration()),
			t.ID)
		if t.Status != models.TaskStatusDone && t.Result != "" {
			fmt.Fprintf(w, "      %s\n", color.HiBlackString(firstLine(t.Result)))
		}
	}
}

// printReport writes the final listing after a run.
func printReport(w io.Writer, report *orchestrator.Report, runErr error) {
	if report == nil {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Job %s (%s) after %s\n", store.JobID(report.Namespace), report.Mode, formatDuration(report.Elapsed))
	printTasks(w, report.Tasks)
	fmt.Fprintln(w)

	switch {
	case runErr == nil && report.Summary.Complete():
		fmt.Fprintf(w, "%s %s\n", color.GreenString("✓"), report.Summary)
	default:
		fmt.Fprintf(w, "%s %s\n", color.YellowString("⚠"), report.Summary)
	}
}

// printJobs writes the job listing for status.
func printJobs(w io.Writer, jobs []store.Job, now time.Time) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs. Run 'brigade run --plan <file>' to start one.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-11s  %-10s  %5s  %s\n", "JOB", "MODE", "STATUS", "TASKS", "DURATION")
	for _, j := range jobs {
		end := now
		if j.FinishedAt != nil {
			end = *j.FinishedAt
		}
		fmt.Fprintf(w, "%-36s  %-11s  %-10s  %5d  %s\n",
			j.ID, j.Mode, jobStatusColor(j.Status).Sprintf("%-10s", j.Status), j.TaskCount, formatDuration(end.Sub(j.StartedAt)))
	}
}

func jobStatusColor(s store.JobStatus) *color.Color {
	switch s {
	case store.JobCompleted:
		return color.New(color.FgGreen)
	case store.JobFailed:
		return color.New(color.FgRed)
	case store.JobActive:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgHiBlack)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
