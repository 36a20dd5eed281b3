package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/brigade/pkg/models"
)

// TasksPanel renders a job's tasks as a table in scan order.
type TasksPanel struct {
	tasks  []*models.Task
	filter string
	width  int
	height int

	titleStyle      lipgloss.Style
	borderStyle     lipgloss.Style
	headStyle       lipgloss.Style
	pendingStyle    lipgloss.Style
	processingStyle lipgloss.Style
	runningStyle    lipgloss.Style
	doneStyle       lipgloss.Style
	resultStyle     lipgloss.Style
}

// NewTasksPanel creates a new TasksPanel instance.
func NewTasksPanel() *TasksPanel {
	return &TasksPanel{
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),

		headStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Underline(true),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		processingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")), // Blue

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")), // Dark green

		resultStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// SetTasks replaces the displayed tasks.
func (p *TasksPanel) SetTasks(tasks []*models.Task) {
	p.tasks = tasks
}

// SetFilter limits the table to roles containing filter. Empty shows all.
func (p *TasksPanel) SetFilter(filter string) {
	p.filter = strings.ToLower(strings.TrimSpace(filter))
}

// SetSize sets the panel dimensions.
func (p *TasksPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// Visible returns the tasks that pass the role filter.
func (p *TasksPanel) Visible() []*models.Task {
	if p.filter == "" {
		return p.tasks
	}
	var out []*models.Task
	for _, t := range p.tasks {
		if t != nil && strings.Contains(strings.ToLower(t.Role), p.filter) {
			out = append(out, t)
		}
	}
	return out
}

// View renders the task table.
func (p *TasksPanel) View() string {
	var b strings.Builder

	title := "Tasks"
	if p.filter != "" {
		title = fmt.Sprintf("Tasks (role ~ %q)", p.filter)
	}
	b.WriteString(p.titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(p.headStyle.Render(fmt.Sprintf("%-14s %-12s %-11s %-3s %-8s %s", "ID", "ROLE", "STATUS", "BG", "TIME", "RESULT")))
	b.WriteString("\n")

	visible := p.Visible()
	if len(visible) == 0 {
		b.WriteString(p.pendingStyle.Render("  no tasks"))
		b.WriteString("\n")
	}

	rows := visible
	if p.height > 0 && len(rows) > p.height {
		rows = rows[:p.height]
	}
	for _, t := range rows {
		if t == nil {
			continue
		}
		b.WriteString(p.renderRow(t))
		b.WriteString("\n")
	}
	if len(rows) < len(visible) {
		b.WriteString(p.resultStyle.Render(fmt.Sprintf("  ... %d more", len(visible)-len(rows))))
		b.WriteString("\n")
	}

	content := b.String()
	if p.width > 0 {
		return p.borderStyle.Width(p.width - 2).Render(content)
	}
	return p.borderStyle.Render(content)
}

func (p *TasksPanel) renderRow(t *models.Task) string {
	bg := ""
	if t.IsBackground {
		bg = "*"
	}
	status := fmt.Sprintf("%-11s", t.Status)
	return fmt.Sprintf("%-14s %-12s %s %-3s %-8s %s",
		truncate(t.ID, 14),
		truncate(t.Role, 12),
		p.statusStyle(t.Status).Render(status),
		bg,
		formatDuration(t.Duration()),
		p.resultStyle.Render(truncate(oneLine(t.Result), 40)))
}

func (p *TasksPanel) statusStyle(s models.TaskStatus) lipgloss.Style {
	switch s {
	case models.TaskStatusProcessing:
		return p.processingStyle
	case models.TaskStatusRunning:
		return p.runningStyle
	case models.TaskStatusDone:
		return p.doneStyle
	default:
		return p.pendingStyle
	}
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
