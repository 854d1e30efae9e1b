package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"simpletodo/internal/config"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	dueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	searchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Todo"))
	b.WriteString("\n")
	if m.query != "" {
		b.WriteString(searchStyle.Render(fmt.Sprintf("Search: %q (%s to clear)", m.query, m.cfg.Keys.Cancel)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case len(m.tasks) == 0 && m.query != "":
		b.WriteString("No matching tasks.")
	case len(m.tasks) == 0:
		b.WriteString(fmt.Sprintf("No tasks yet. Press '%s' to add one.", m.cfg.Keys.Add))
	default:
		b.WriteString(m.renderTaskList())
	}

	b.WriteString("\n---\n")

	if m.mode != modeList {
		b.WriteString(inputLabel(m.mode))
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
	}

	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(renderHelp(m.cfg.Keys)))

	return b.String()
}

func (m Model) renderTaskList() string {
	now := m.now()
	var b strings.Builder
	for i, t := range m.tasks {
		cursor := "  "
		title := t.Title
		if m.cursor == i && m.mode == modeList {
			cursor = cursorStyle.Render("> ")
			title = cursorStyle.Render(title)
		}
		b.WriteString(cursor)
		b.WriteString(title)

		if t.HasReminder() {
			style := dueStyle
			if t.Due().Before(now) {
				style = overdueStyle
			}
			b.WriteString("  ")
			b.WriteString(style.Render(fmt.Sprintf("%s (%s)", FormatDue(t.Date, now), relativeDue(t.Date, now))))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func inputLabel(md mode) string {
	switch md {
	case modeAdd:
		return "New task"
	case modeEdit:
		return "Title"
	case modeDue:
		return "Due (" + dueLayout + ")"
	case modeSearch:
		return "Search"
	default:
		return ""
	}
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s cursor • %s/%s reorder • %s add • %s edit • %s due • %s delete • %s undo • %s search • %s quit",
		k.Up, k.Down, k.MoveUp, k.MoveDown, k.Add, k.Edit, k.Due, k.Delete, k.Undo, k.Search, k.Quit)
}
