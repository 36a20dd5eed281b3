package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FilterChangedMsg is sent when the role filter is applied or cleared.
type FilterChangedMsg struct {
	Filter string
}

// RoleFilter is a text input for narrowing the task table to matching roles.
type RoleFilter struct {
	input textinput.Model
	width int
}

// NewRoleFilter creates a new RoleFilter.
func NewRoleFilter() *RoleFilter {
	ti := textinput.New()
	ti.Placeholder = "role name..."
	ti.CharLimit = 64
	ti.Width = 30

	return &RoleFilter{
		input: ti,
		width: 40,
	}
}

// Focused reports whether the filter is capturing keys.
func (f *RoleFilter) Focused() bool {
	return f.input.Focused()
}

// Focus starts capturing keys.
func (f *RoleFilter) Focus() tea.Cmd {
	return f.input.Focus()
}

// Value returns the current filter text.
func (f *RoleFilter) Value() string {
	return f.input.Value()
}

// Update handles messages while the filter is focused.
func (f *RoleFilter) Update(msg tea.Msg) (*RoleFilter, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			f.input.Blur()
			value := f.input.Value()
			return f, func() tea.Msg { return FilterChangedMsg{Filter: value} }
		case "esc":
			f.input.Blur()
			f.input.Reset()
			return f, func() tea.Msg { return FilterChangedMsg{} }
		}
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

// View renders the filter prompt.
func (f *RoleFilter) View() string {
	promptStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(f.width)

	return boxStyle.Render(promptStyle.Render("role> ") + f.input.View())
}
