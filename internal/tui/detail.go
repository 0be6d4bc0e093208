package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/scicheck/internal/export"
	"github.com/lotas/scicheck/internal/highlight"
	"github.com/lotas/scicheck/internal/types"
)

// DetailModel shows information about the selected article.
type DetailModel struct {
	Width      int
	Height     int
	Scroll     int // scroll offset
	ContentLen int // total lines in content
}

// ScrollUp adjusts the scroll offset upward.
func (m *DetailModel) ScrollUp() {
	if m.Scroll > 0 {
		m.Scroll--
	}
}

// ScrollDown adjusts the scroll offset downward.
func (m *DetailModel) ScrollDown() {
	if m.Scroll < m.ContentLen-m.Height {
		m.Scroll++
	}
	if m.Scroll < 0 {
		m.Scroll = 0
	}
}

// ResetScroll resets the scroll offset to 0.
func (m *DetailModel) ResetScroll() {
	m.Scroll = 0
}

// FullText is the readable-text state of one article.
type FullText struct {
	Text    string
	Loading bool
	Err     error
}

func (m DetailModel) ViewArticle(a *types.Article, ft FullText) string {
	if a == nil {
		return ""
	}

	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	wrap := lipgloss.NewStyle().Width(max(m.Width-1, 10))

	var b strings.Builder
	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label) + "\n")
		b.WriteString(wrap.Render(value) + "\n\n")
	}

	field("Title", highlight.PlainText(a.Title))
	field("Published", a.PublicationDate)
	field("Authors", strings.Join(a.Authors, ", "))
	field("Venue", a.Container)
	field("DOI", a.DOI)
	field("Citations", export.Citations(a.Citations))
	if u := a.URL(); u != "" {
		field("URL", u)
	}
	field("Abstract", highlight.PlainText(a.Abstract))

	switch {
	case ft.Loading:
		b.WriteString(activeStyle.Render("Fetching full text..."))
	case ft.Text != "":
		b.WriteString(labelStyle.Render("Full text") + "\n" + wrap.Render(ft.Text))
	case ft.Err != nil:
		b.WriteString(errStyle.Render("Full text failed: "+ft.Err.Error()) + "\n")
		b.WriteString(dimStyle.Render("  Press 'f' to retry"))
	default:
		b.WriteString(dimStyle.Render("  Press 'f' for full text"))
	}

	return b.String()
}

// ViewScrolled applies scroll offset and height truncation to the content string.
func (m *DetailModel) ViewScrolled(content string) string {
	if content == "" {
		return content
	}

	lines := strings.Split(content, "\n")
	m.ContentLen = len(lines)

	maxScroll := m.ContentLen - m.Height
	if maxScroll < 0 {
		maxScroll = 0
	}
	if m.Scroll > maxScroll {
		m.Scroll = maxScroll
	}
	if m.Scroll < 0 {
		m.Scroll = 0
	}

	end := m.Scroll + m.Height
	if end > len(lines) {
		end = len(lines)
	}

	if m.Scroll >= len(lines) {
		return ""
	}

	return strings.Join(lines[m.Scroll:end], "\n")
}
