package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/brigade/internal/orchestrator"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// JobView renders overall progress and per-role status for one job.
type JobView struct {
	summary orchestrator.Summary
	tasks   []*models.Task
	width   int

	headerStyle   lipgloss.Style
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	progressFull  lipgloss.Style
	progressEmpty lipgloss.Style
	roleStyle     lipgloss.Style
	runningStyle  lipgloss.Style
	idleStyle     lipgloss.Style
}

// NewJobView creates a new JobView instance.
func NewJobView() *JobView {
	return &JobView{
		summary: orchestrator.Summarize(nil),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		progressFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		roleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Width(16),

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		idleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
	}
}

// SetTasks replaces the tasks the view summarizes.
func (v *JobView) SetTasks(tasks []*models.Task) {
	v.tasks = tasks
	v.summary = orchestrator.Summarize(tasks)
}

// SetWidth sets the view width.
func (v *JobView) SetWidth(width int) {
	v.width = width
}

// Summary returns the current summary.
func (v *JobView) Summary() orchestrator.Summary {
	return v.summary
}

// View renders the progress block.
func (v *JobView) View() string {
	var b strings.Builder

	b.WriteString(v.headerStyle.Render("Job Progress"))
	b.WriteString("\n")

	done := v.summary.ByStatus[models.TaskStatusDone]
	pct := float64(0)
	if v.summary.Total > 0 {
		pct = float64(done) / float64(v.summary.Total) * 100
	}
	b.WriteString(v.labelStyle.Render("Tasks:"))
	b.WriteString(v.valueStyle.Render(fmt.Sprintf("%d/%d done", done, v.summary.Total)))
	if v.summary.Background > 0 {
		b.WriteString(v.idleStyle.Render(fmt.Sprintf("  (%d background)", v.summary.Background)))
	}
	b.WriteString("\n")
	b.WriteString(v.renderProgressBar(pct, 30))
	b.WriteString("\n\n")

	if len(v.summary.ByRole) == 0 {
		return b.String()
	}

	b.WriteString(v.labelStyle.Render("Roles:"))
	b.WriteString("\n")
	for _, role := range v.summary.Roles() {
		b.WriteString("  ")
		b.WriteString(v.roleStyle.Render(role))
		b.WriteString(v.roleLine(role))
		b.WriteString("\n")
	}

	return b.String()
}

// roleLine describes what a role is doing right now.
func (v *JobView) roleLine(role string) string {
	counts := v.summary.ByRole[role]
	var active []string
	for _, t := range v.tasks {
		if t != nil && t.Role == role && t.Status.Active() {
			active = append(active, fmt.Sprintf("%s (%s)", t.ID, t.Status))
		}
	}

	state := v.idleStyle.Render("idle")
	if len(active) > 0 {
		state = v.runningStyle.Render(strings.Join(active, ", "))
	} else if counts[models.TaskStatusPending] == 0 {
		state = v.idleStyle.Render("finished")
	}

	return fmt.Sprintf("%s  %d/%d done",
		state,
		counts[models.TaskStatusDone],
		counts[models.TaskStatusDone]+counts[models.TaskStatusPending]+
			counts[models.TaskStatusProcessing]+counts[models.TaskStatusRunning])
}

// renderProgressBar renders a progress bar.
func (v *JobView) renderProgressBar(pct float64, width int) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	bar := v.progressFull.Render(strings.Repeat("█", filled)) +
		v.progressEmpty.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("  %s %.0f%%", bar, pct)
}
