package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LineInput is a single-line text field.
type LineInput struct {
	Value       string
	Placeholder string
	Focused     bool
}

// HandleKey applies an editing key and reports whether it was consumed.
func (in *LineInput) HandleKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyRunes:
		in.Value += string(msg.Runes)
	case tea.KeySpace:
		in.Value += " "
	case tea.KeyBackspace:
		if r := []rune(in.Value); len(r) > 0 {
			in.Value = string(r[:len(r)-1])
		}
	case tea.KeyCtrlU:
		in.Value = ""
	case tea.KeyCtrlW:
		trimmed := strings.TrimRight(in.Value, " ")
		if i := strings.LastIndex(trimmed, " "); i >= 0 {
			in.Value = trimmed[:i+1]
		} else {
			in.Value = ""
		}
	default:
		return false
	}
	return true
}

func (in LineInput) View(prompt string, width int) string {
	promptStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	text := in.Value
	if text == "" && !in.Focused {
		text = dimStyle.Render(in.Placeholder)
	}
	if in.Focused {
		text += "█"
	}
	line := promptStyle.Render(prompt) + " " + text
	return lipgloss.NewStyle().MaxWidth(width).Render(line)
}
