package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Styles.
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// View renders the UI (Bubbletea interface).
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.currentState {
	case stateLoading:
		return fmt.Sprintf("%s Listing connections on %s...\n", m.spinner.View(), m.target)

	case stateDetailLoading:
		return fmt.Sprintf("%s Looking up processes behind %s...\n", m.spinner.View(), m.selected.Address)

	case stateDetail:
		return m.renderDetail()

	case stateFatal:
		return errorStyle.Render(fmt.Sprintf("✗ Error: %v", m.err)) + "\n"
	}

	return m.list.View()
}

func (m Model) renderDetail() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.target))
	b.WriteString("\n")

	md := DetailMarkdown(m.selected, m.processes)
	rendered, err := m.renderer.Render(md)
	if err != nil {
		b.WriteString(DetailText(m.selected, m.processes)) // Fallback to plain text
	} else {
		b.WriteString(rendered)
	}

	b.WriteString(hintStyle.Render("[Enter/Esc to go back, Ctrl+C to quit]"))
	b.WriteString("\n")
	return b.String()
}
