package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/brigade/internal/orchestrator"
	"github.com/ShayCichocki/brigade/internal/store"
	"github.com/ShayCichocki/brigade/pkg/models"
)

// DefaultRefreshRate is used when NewJobApp is given a non-positive rate.
const DefaultRefreshRate = 250 * time.Millisecond

const (
	maxLogEntries = 8
	scanTimeout   = 5 * time.Second
)

// TasksMsg carries the result of one store scan.
type TasksMsg struct {
	Tasks []*models.Task
	Err   error
}

// EventMsg feeds a dispatch event into the activity log.
type EventMsg struct {
	Event orchestrator.Event
}

// DoneMsg is sent when the dispatcher driving the job returns.
type DoneMsg struct {
	Report *orchestrator.Report
	Err    error
}

type refreshMsg struct{}

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Kind      string
	Message   string
}

// JobApp is the bubbletea model for watching one job namespace.
type JobApp struct {
	store     store.Store
	namespace string
	refresh   time.Duration

	view    *JobView
	tasks   *TasksPanel
	filter  *RoleFilter
	spinner spinner.Model
	logs    []LogEntry

	width    int
	height   int
	scanErr  error
	quitting bool
	done     bool
	err      error

	titleStyle   lipgloss.Style
	logStyle     lipgloss.Style
	logTimeStyle lipgloss.Style
	logKindStyle lipgloss.Style
	errorStyle   lipgloss.Style
	doneStyle    lipgloss.Style
	hintStyle    lipgloss.Style
}

// NewJobApp creates a JobApp that polls namespace every refresh interval.
func NewJobApp(s store.Store, namespace string, refresh time.Duration) *JobApp {
	if refresh <= 0 {
		refresh = DefaultRefreshRate
	}
	return &JobApp{
		store:     s,
		namespace: namespace,
		refresh:   refresh,
		view:      NewJobView(),
		tasks:     NewTasksPanel(),
		filter:    NewRoleFilter(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))),
		),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),

		logStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		logTimeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		logKindStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Width(16),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Init implements tea.Model.
func (a *JobApp) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.fetch())
}

// fetch scans the namespace off the update loop.
func (a *JobApp) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()
		tasks, err := a.store.Scan(ctx, a.namespace, 0)
		return TasksMsg{Tasks: tasks, Err: err}
	}
}

func (a *JobApp) scheduleRefresh() tea.Cmd {
	return tea.Tick(a.refresh, func(time.Time) tea.Msg { return refreshMsg{} })
}

// Update implements tea.Model.
func (a *JobApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.quitting = true
			return a, tea.Quit
		}
		if a.filter.Focused() {
			var cmd tea.Cmd
			a.filter, cmd = a.filter.Update(msg)
			return a, cmd
		}
		switch msg.String() {
		case "q":
			a.quitting = true
			return a, tea.Quit
		case "/":
			return a, a.filter.Focus()
		case "esc":
			a.tasks.SetFilter("")
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.view.SetWidth(msg.Width)
		a.tasks.SetSize(msg.Width, a.tableRows())

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case refreshMsg:
		return a, a.fetch()

	case TasksMsg:
		a.scanErr = msg.Err
		if msg.Err == nil {
			a.view.SetTasks(msg.Tasks)
			a.tasks.SetTasks(msg.Tasks)
		}
		return a, a.scheduleRefresh()

	case FilterChangedMsg:
		a.tasks.SetFilter(msg.Filter)

	case EventMsg:
		a.addLog(msg.Event.Timestamp, string(msg.Event.Type), describeEvent(msg.Event))

	case DoneMsg:
		a.done = true
		a.err = msg.Err
		if msg.Report != nil {
			a.view.SetTasks(msg.Report.Tasks)
			a.tasks.SetTasks(msg.Report.Tasks)
		}
	}

	return a, nil
}

// tableRows is how many task rows fit under the progress block and log.
func (a *JobApp) tableRows() int {
	rows := a.height - 12 - len(a.view.Summary().ByRole) - maxLogEntries
	if rows < 5 {
		rows = 5
	}
	return rows
}

func (a *JobApp) addLog(ts time.Time, kind, message string) {
	if ts.IsZero() {
		ts = time.Now()
	}
	a.logs = append(a.logs, LogEntry{Timestamp: ts, Kind: kind, Message: message})
	if len(a.logs) > maxLogEntries {
		a.logs = a.logs[len(a.logs)-maxLogEntries:]
	}
}

// Logs returns the retained activity log.
func (a *JobApp) Logs() []LogEntry {
	return a.logs
}

// Complete reports whether the last scan showed every task done.
func (a *JobApp) Complete() bool {
	return a.view.Summary().Complete()
}

// View implements tea.Model.
func (a *JobApp) View() string {
	if a.quitting {
		return "Stopped watching " + store.JobID(a.namespace) + ".\n"
	}

	var b strings.Builder

	title := a.titleStyle.Render("=== brigade: " + store.JobID(a.namespace) + " ===")
	if !a.done && !a.Complete() {
		title = a.spinner.View() + " " + title
	}
	b.WriteString(title)
	b.WriteString("\n\n")

	b.WriteString(a.view.View())
	b.WriteString(a.tasks.View())
	b.WriteString("\n")

	if a.filter.Focused() {
		b.WriteString(a.filter.View())
		b.WriteString("\n")
	}

	b.WriteString(a.renderLogs())

	b.WriteString("\n")
	switch {
	case a.scanErr != nil:
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("Store error: %v", a.scanErr)))
	case a.done && a.err != nil:
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
	case a.done || a.Complete():
		b.WriteString(a.doneStyle.Render("Job complete! Press q to exit."))
	default:
		b.WriteString(a.hintStyle.Render("/ filter roles  esc clear  q quit"))
	}
	b.WriteString("\n")

	return b.String()
}

func (a *JobApp) renderLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")).
		Render("Activity Log"))
	b.WriteString("\n")

	for _, entry := range a.logs {
		ts := a.logTimeStyle.Render(entry.Timestamp.Format("15:04:05"))
		kind := a.logKindStyle.Render(entry.Kind)
		msg := a.logStyle.Render(entry.Message)
		b.WriteString(fmt.Sprintf("  %s %s %s\n", ts, kind, msg))
	}

	return b.String()
}

// describeEvent renders an event as a short log message.
func describeEvent(ev orchestrator.Event) string {
	var parts []string
	if ev.TaskID != "" {
		parts = append(parts, ev.TaskID)
	}
	if ev.Role != "" {
		parts = append(parts, "["+ev.Role+"]")
	}
	if ev.Message != "" {
		parts = append(parts, ev.Message)
	}
	if ev.Error != nil {
		parts = append(parts, ev.Error.Error())
	}
	return strings.Join(parts, " ")
}

// NewJobProgram creates a bubbletea program watching namespace.
func NewJobProgram(s store.Store, namespace string, refresh time.Duration) (*tea.Program, *JobApp) {
	app := NewJobApp(s, namespace, refresh)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
