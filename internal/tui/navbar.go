package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type ViewType int

const (
	ViewSearch ViewType = iota
	ViewDiscussion
	ViewHistory
)

// ListWidthPct is the percentage of terminal width used for the left list pane.
const ListWidthPct = 55

var viewNames = []string{"Search", "Discussion", "History"}

func renderNavbar(active ViewType, counts [3]int, status string, source string, width int) string {
	activeStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Underline(true)
	inactiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sourceStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	var tabs string
	for i, name := range viewNames {
		if i > 0 {
			tabs += inactiveStyle.Render(" │ ")
		}
		countSuffix := ""
		if counts[i] > 0 {
			countSuffix = fmt.Sprintf(" (%d)", counts[i])
		}
		label := fmt.Sprintf("%d %s", i+1, name)
		if ViewType(i) == active {
			tabs += activeStyle.Render(label + countSuffix)
		} else {
			tabs += inactiveStyle.Render(label) + countStyle.Render(countSuffix)
		}
	}

	left := " " + tabs
	if status != "" {
		left += "   " + statusStyle.Render(status)
	}

	right := sourceStyle.Render(source)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	padding := lipgloss.NewStyle().Width(gap)

	return left + padding.Render("") + right + " "
}
