package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/scicheck/internal/types"
)

// CitationPicker chooses which stored citation string of an article to show.
type CitationPicker struct {
	Article types.Article
	Options []types.CitationFormat
	Cursor  int
	Shown   bool // true once a format was picked and its text is on screen
	Width   int
}

func NewCitationPicker(a types.Article) CitationPicker {
	return CitationPicker{Article: a, Options: types.CitationFormats()}
}

func (m *CitationPicker) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
}

func (m *CitationPicker) MoveDown() {
	if m.Cursor < len(m.Options)-1 {
		m.Cursor++
	}
}

func (m CitationPicker) Selected() types.CitationFormat {
	return m.Options[m.Cursor]
}

func (m CitationPicker) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	selectedStyle := lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1)
	normalStyle := lipgloss.NewStyle().Padding(0, 1)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	var b strings.Builder
	if m.Shown {
		f := m.Selected()
		b.WriteString(titleStyle.Render(f.String()+" citation") + "\n\n")
		text := m.Article.Citation(f)
		if text == "" {
			text = dimStyle.Render("No citation available")
		}
		width := m.Width - 12
		if width < 20 {
			width = 60
		}
		b.WriteString(normalStyle.Width(width).Render(text) + "\n")
		b.WriteString("\n" + dimStyle.Render("esc back"))
		return boxStyle.Render(b.String())
	}

	b.WriteString(titleStyle.Render("Cite as:") + "\n\n")
	for i, f := range m.Options {
		label := f.String()
		if i == m.Cursor {
			label = selectedStyle.Render(label)
		} else {
			label = normalStyle.Render("  " + label)
		}
		b.WriteString(label + "\n")
	}

	b.WriteString("\n" + normalStyle.Render("↑↓ navigate · enter select · esc cancel"))

	return boxStyle.Render(b.String())
}
