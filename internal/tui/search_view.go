package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/scicheck/internal/applog"
	"github.com/lotas/scicheck/internal/export"
	"github.com/lotas/scicheck/internal/highlight"
	"github.com/lotas/scicheck/internal/selection"
	"github.com/lotas/scicheck/internal/types"
)

type searchDoneMsg struct {
	query   string
	hits    []types.Article
	offline bool
	err     error
}

type articleLoadedMsg struct {
	article types.Article
	err     error
}

type fullTextMsg struct {
	id   string
	text string
	err  error
}

// noticeMsg shows a transient message in the bottom bar.
type noticeMsg struct{ text string }

// interrogateMsg asks the model to open a discussion about ids.
type interrogateMsg struct{ ids []string }

// citeMsg asks the model to open the citation picker.
type citeMsg struct{ article types.Article }

func notice(text string) tea.Cmd {
	return func() tea.Msg { return noticeMsg{text: text} }
}

type SearchView struct {
	ctx      context.Context
	library  Library
	query    LineInput
	lastQ    string
	hits     []types.Article
	cursor   int
	offset   int
	selected selection.Selection
	fulltext map[string]FullText
	detail   DetailModel
	width    int
	height   int
	loading  bool
	offline  bool // force the local index
	usedIdx  bool // last result came from the local index
	err      error
}

func NewSearchView(ctx context.Context, lib Library, offline bool) SearchView {
	return SearchView{
		ctx:      ctx,
		library:  lib,
		query:    LineInput{Placeholder: "press / to search articles"},
		fulltext: make(map[string]FullText),
		offline:  offline,
	}
}

func (v *SearchView) SetSize(w, h int) {
	v.width = w
	v.height = h
	v.detail.Width = w - (w * ListWidthPct / 100) - 3
	v.detail.Height = h
}

// Run starts a search for q.
func (v *SearchView) Run(q string) tea.Cmd {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	v.query.Value = q
	v.query.Focused = false
	v.loading = true
	v.err = nil
	ctx, lib, offline := v.ctx, v.library, v.offline
	return func() tea.Msg {
		hits, usedIdx, err := lib.Search(ctx, q, offline)
		return searchDoneMsg{query: q, hits: hits, offline: usedIdx, err: err}
	}
}

func (v *SearchView) loadArticle(id string) tea.Cmd {
	ctx, lib := v.ctx, v.library
	return func() tea.Msg {
		a, err := lib.Article(ctx, id)
		return articleLoadedMsg{article: a, err: err}
	}
}

func (v *SearchView) loadFullText(a types.Article) tea.Cmd {
	v.fulltext[a.ID] = FullText{Loading: true}
	ctx, lib := v.ctx, v.library
	return func() tea.Msg {
		text, err := lib.FullText(ctx, a)
		return fullTextMsg{id: a.ID, text: text, err: err}
	}
}

// Current returns the hit under the cursor.
func (v SearchView) Current() *types.Article {
	if v.cursor < 0 || v.cursor >= len(v.hits) {
		return nil
	}
	return &v.hits[v.cursor]
}

// Editing reports whether keys go to the query field.
func (v SearchView) Editing() bool { return v.query.Focused }

// Selected returns the selected article ids in selection order.
func (v SearchView) Selected() []string { return v.selected.IDs() }

func (v SearchView) Update(msg tea.Msg) (SearchView, tea.Cmd) {
	switch msg := msg.(type) {
	case searchDoneMsg:
		if msg.query != v.query.Value {
			return v, nil
		}
		v.loading = false
		if msg.err != nil {
			v.err = msg.err
			applog.Error("tui.search", msg.err, "query", msg.query)
			return v, nil
		}
		v.lastQ = msg.query
		v.hits = msg.hits
		v.usedIdx = msg.offline
		v.cursor = 0
		v.offset = 0
		v.detail.ResetScroll()
		return v, nil

	case articleLoadedMsg:
		if msg.err != nil {
			return v, notice("Could not load article: " + msg.err.Error())
		}
		for i := range v.hits {
			if v.hits[i].ID == msg.article.ID {
				a := msg.article
				a.Highlights = v.hits[i].Highlights
				a.Score = v.hits[i].Score
				v.hits[i] = a
			}
		}
		return v, nil

	case fullTextMsg:
		v.fulltext[msg.id] = FullText{Text: msg.text, Err: msg.err}
		if msg.err != nil {
			applog.Error("tui.fulltext", msg.err, "id", msg.id)
		}
		return v, nil

	case tea.KeyMsg:
		if v.query.Focused {
			switch msg.String() {
			case "enter":
				return v, v.Run(v.query.Value)
			case "esc":
				v.query.Focused = false
				v.query.Value = v.lastQ
			default:
				v.query.HandleKey(msg)
			}
			return v, nil
		}

		switch msg.String() {
		case "/":
			v.query.Focused = true
		case "j", "down":
			if v.cursor < len(v.hits)-1 {
				v.cursor++
				v.adjustOffset()
				v.detail.ResetScroll()
			}
		case "k", "up":
			if v.cursor > 0 {
				v.cursor--
				v.adjustOffset()
				v.detail.ResetScroll()
			}
		case "J", "pgdown":
			v.syncDetail()
			v.detail.ScrollDown()
		case "K", "pgup":
			v.detail.ScrollUp()
		case " ":
			a := v.Current()
			if a == nil {
				return v, nil
			}
			if err := v.selected.Toggle(a.ID); err != nil {
				return v, notice(err.Error())
			}
		case "esc":
			v.selected.Clear()
		case "enter":
			if a := v.Current(); a != nil {
				return v, v.loadArticle(a.ID)
			}
		case "f":
			a := v.Current()
			if a == nil || v.fulltext[a.ID].Loading {
				return v, nil
			}
			return v, v.loadFullText(*a)
		case "c":
			if a := v.Current(); a != nil {
				article := *a
				return v, func() tea.Msg { return citeMsg{article: article} }
			}
		case "o":
			v.offline = !v.offline
			return v, v.Run(v.lastQ)
		case "i":
			ids, err := v.selected.Require()
			if err != nil {
				return v, notice(err.Error())
			}
			return v, func() tea.Msg { return interrogateMsg{ids: ids} }
		case "d":
			if a := v.Current(); a != nil {
				ids := []string{a.ID}
				return v, func() tea.Msg { return interrogateMsg{ids: ids} }
			}
		}
	}
	return v, nil
}

func (v *SearchView) adjustOffset() {
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	visible := v.visibleHits()
	if v.cursor >= v.offset+visible {
		v.offset = v.cursor - visible + 1
	}
}

// Each hit takes three lines plus a separator.
func (v SearchView) visibleHits() int {
	n := (v.height - 2) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func (v *SearchView) syncDetail() {
	content := v.detail.ViewArticle(v.Current(), v.currentFullText())
	v.detail.ContentLen = strings.Count(content, "\n") + 1
}

func (v SearchView) currentFullText() FullText {
	if a := v.Current(); a != nil {
		return v.fulltext[a.ID]
	}
	return FullText{}
}

func (v SearchView) ViewList() string {
	listWidth := v.width * ListWidthPct / 100

	var b strings.Builder
	b.WriteString(v.query.View("Search:", listWidth) + "\n\n")

	switch {
	case v.loading:
		b.WriteString("Searching...")
		return b.String()
	case v.err != nil:
		b.WriteString(fmt.Sprintf("Error: %v", v.err))
		return b.String()
	case v.lastQ == "":
		b.WriteString("Type a question or topic to find articles.")
		return b.String()
	case len(v.hits) == 0:
		b.WriteString("No articles found.")
		return b.String()
	}

	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	checkStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	keywordStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	line := lipgloss.NewStyle().MaxWidth(listWidth)

	end := v.offset + v.visibleHits()
	if end > len(v.hits) {
		end = len(v.hits)
	}
	for i := v.offset; i < end; i++ {
		a := v.hits[i]

		box := "[ ]"
		if v.selected.Contains(a.ID) {
			box = checkStyle.Render("[x]")
		}
		title := box + " " + highlight.PlainText(a.Title)
		if i == v.cursor {
			title = cursorStyle.Render(title)
		}
		b.WriteString(line.Render(title) + "\n")

		kw := highlight.Keywords(a.Highlights.Title, "hglt")
		if len(kw) == 0 {
			kw = highlight.Keywords(a.Highlights.Abstract, "hglt")
		}
		if len(kw) > 0 {
			b.WriteString(line.Render("    "+keywordStyle.Render(strings.Join(kw, " · "))) + "\n")
		} else {
			b.WriteString("\n")
		}

		var meta []string
		if len(a.Authors) > 0 {
			authors := a.Authors[0]
			if len(a.Authors) > 1 {
				authors += " et al."
			}
			meta = append(meta, authors)
		}
		if a.PublicationDate != "" {
			meta = append(meta, a.PublicationDate)
		}
		if a.Container != "" {
			meta = append(meta, a.Container)
		}
		meta = append(meta, export.Citations(a.Citations))
		b.WriteString(line.Render("    "+dimStyle.Render(strings.Join(meta, " · "))) + "\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (v SearchView) ViewDetail() string {
	content := v.detail.ViewArticle(v.Current(), v.currentFullText())
	return v.detail.ViewScrolled(content)
}

// Source describes where the last results came from.
func (v SearchView) Source() string {
	switch {
	case v.offline:
		return "offline"
	case v.usedIdx:
		return "offline (API unreachable)"
	}
	return "online"
}
