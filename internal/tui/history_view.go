package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/scicheck/internal/export"
	"github.com/lotas/scicheck/internal/history"
	"github.com/lotas/scicheck/internal/types"
)

// askMsg re-asks a logged question in the open discussion.
type askMsg struct{ question string }

type HistoryView struct {
	store     *history.Store
	exportDir string
	entries   []types.HistoryEntry
	cursor    int
	offset    int
	width     int
	height    int
}

func NewHistoryView(store *history.Store, exportDir string) HistoryView {
	v := HistoryView{store: store, exportDir: exportDir}
	v.Reload()
	return v
}

func (v *HistoryView) SetSize(w, h int) {
	v.width = w
	v.height = h
}

// Reload re-reads the log, newest entry first.
func (v *HistoryView) Reload() {
	entries := v.store.Load()
	v.entries = make([]types.HistoryEntry, len(entries))
	for i, e := range entries {
		v.entries[len(entries)-1-i] = e
	}
	if v.cursor >= len(v.entries) {
		v.cursor = max(len(v.entries)-1, 0)
	}
	v.adjustOffset()
}

func (v HistoryView) Len() int { return len(v.entries) }

func (v HistoryView) Update(msg tea.Msg) (HistoryView, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil
	}
	switch key.String() {
	case "j", "down":
		if v.cursor < len(v.entries)-1 {
			v.cursor++
			v.adjustOffset()
		}
	case "k", "up":
		if v.cursor > 0 {
			v.cursor--
			v.adjustOffset()
		}
	case "enter":
		if v.cursor < len(v.entries) {
			q := v.entries[v.cursor].Question
			return v, func() tea.Msg { return askMsg{question: q} }
		}
	case "x":
		v.store.Clear()
		v.Reload()
		return v, notice("History cleared")
	case "e":
		return v, v.export("md", export.HistoryMarkdown(v.store.Load()))
	case "E":
		text, err := export.HistoryJSON(v.store.Load())
		if err != nil {
			return v, notice("Export failed: " + err.Error())
		}
		return v, v.export("json", text)
	}
	return v, nil
}

func (v HistoryView) export(ext, text string) tea.Cmd {
	path := filepath.Join(v.exportDir, "scicheck-history-"+time.Now().Format("20060102-150405")+"."+ext)
	return func() tea.Msg {
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return noticeMsg{text: "Export failed: " + err.Error()}
		}
		return noticeMsg{text: "Saved " + path}
	}
}

func (v *HistoryView) adjustOffset() {
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	visible := max(v.height, 1)
	if v.cursor >= v.offset+visible {
		v.offset = v.cursor - visible + 1
	}
}

func (v HistoryView) View() string {
	if len(v.entries) == 0 {
		return "No questions asked yet."
	}

	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	var b strings.Builder
	end := min(v.offset+v.height, len(v.entries))
	for i := v.offset; i < end; i++ {
		e := v.entries[i]
		when := e.Date.Local().Format("2006-01-02 15:04")
		line := fmt.Sprintf("  %3d. %s", e.ID, e.Question)
		meta := fmt.Sprintf("  %s · %s", export.Answers(e.AnswersCount), when)

		if i == v.cursor {
			for lipgloss.Width(line) < v.width-lipgloss.Width(meta) {
				line += " "
			}
			line = cursorStyle.Render(line)
		}
		b.WriteString(lipgloss.NewStyle().MaxWidth(v.width).Render(line + dimStyle.Render(meta)))
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
