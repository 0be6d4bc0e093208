package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/scicheck/internal/discussion"
	"github.com/lotas/scicheck/internal/history"
	"github.com/lotas/scicheck/internal/types"
)

// Library is the article source behind the views. *catalog.Catalog
// implements it.
type Library interface {
	Search(ctx context.Context, query string, offline bool) ([]types.Article, bool, error)
	Article(ctx context.Context, id string) (types.Article, error)
	Articles(ctx context.Context, ids []string) ([]types.Article, error)
	FullText(ctx context.Context, a types.Article) (string, error)
}

// Options configures a Model.
type Options struct {
	Library    Library
	History    *history.Store
	Controller *discussion.Controller
	Query      string // initial search
	Offline    bool
	ExportDir  string
}

// --- Model ---

type Model struct {
	ctrl *discussion.Controller

	// Views
	active     ViewType
	search     SearchView
	discussion *DiscussionView
	history    HistoryView

	// Overlays
	picker     CitationPicker
	showPicker bool

	query  string
	notice string
	width  int
	height int
}

func NewModel(ctx context.Context, opts Options) Model {
	dir := opts.ExportDir
	if dir == "" {
		dir = "."
	}
	return Model{
		ctrl:       opts.Controller,
		search:     NewSearchView(ctx, opts.Library, opts.Offline),
		discussion: NewDiscussionView(ctx, opts.Library, opts.Controller, dir),
		history:    NewHistoryView(opts.History, dir),
		query:      opts.Query,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{listenDiscussion(m.ctrl)}
	if m.query != "" {
		cmds = append(cmds, func() tea.Msg { return startSearchMsg{query: m.query} })
	}
	return tea.Batch(cmds...)
}

type startSearchMsg struct{ query string }

// editing reports whether the active view captures plain keys.
func (m Model) editing() bool {
	switch m.active {
	case ViewSearch:
		return m.search.Editing()
	case ViewDiscussion:
		return m.discussion.Editing()
	}
	return false
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		paneHeight := m.height - 5 // navbar + bottom bar + borders
		m.search.SetSize(m.width, paneHeight)
		m.discussion.SetSize(m.width-2, paneHeight)
		m.history.SetSize(m.width-2, paneHeight)
		m.picker.Width = m.width
		return m, nil

	case startSearchMsg:
		return m, m.search.Run(msg.query)

	case noticeMsg:
		m.notice = msg.text
		return m, nil

	case citeMsg:
		m.picker = NewCitationPicker(msg.article)
		m.picker.Width = m.width
		m.showPicker = true
		return m, nil

	case interrogateMsg:
		m.active = ViewDiscussion
		return m, m.discussion.Open(msg.ids)

	case askMsg:
		if !m.discussion.Active() {
			m.notice = "Open a discussion first"
			return m, nil
		}
		m.discussion.Ask(msg.question)
		m.active = ViewDiscussion
		return m, nil

	case discussionOpenedMsg:
		return m, m.discussion.Update(msg)

	case discussionUpdateMsg:
		cmd := m.discussion.Update(msg)
		if msg.update.Kind == discussion.UpdateAnswered {
			m.history.Reload()
		}
		return m, tea.Batch(cmd, listenDiscussion(m.ctrl))

	case searchDoneMsg, articleLoadedMsg, fullTextMsg:
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		m.notice = ""

		if m.showPicker {
			switch msg.String() {
			case "up", "k":
				if !m.picker.Shown {
					m.picker.MoveUp()
				}
			case "down", "j":
				if !m.picker.Shown {
					m.picker.MoveDown()
				}
			case "enter":
				m.picker.Shown = true
			case "esc":
				if m.picker.Shown {
					m.picker.Shown = false
				} else {
					m.showPicker = false
				}
			case "q", "ctrl+c":
				m.showPicker = false
			}
			return m, nil
		}

		if msg.String() == "ctrl+c" {
			m.ctrl.Close()
			return m, tea.Quit
		}

		if !m.editing() {
			switch msg.String() {
			case "q":
				m.ctrl.Close()
				return m, tea.Quit
			case "1":
				m.active = ViewSearch
				return m, nil
			case "2":
				m.active = ViewDiscussion
				return m, nil
			case "3":
				m.history.Reload()
				m.active = ViewHistory
				return m, nil
			}
		}

		var cmd tea.Cmd
		switch m.active {
		case ViewSearch:
			m.search, cmd = m.search.Update(msg)
		case ViewDiscussion:
			cmd = m.discussion.Update(msg)
		case ViewHistory:
			m.history, cmd = m.history.Update(msg)
		}
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "\n  Loading...\n"
	}

	if m.showPicker {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.picker.View())
	}

	counts := [3]int{len(m.search.Selected()), m.discussion.TotalAnswers(), m.history.Len()}
	status := ""
	if n := counts[0]; n > 0 {
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render(fmt.Sprintf("%d selected", n))
	}
	navbar := renderNavbar(m.active, counts, status, m.search.Source(), m.width)

	paneHeight := m.height - 5
	var panes string
	switch m.active {
	case ViewSearch:
		listWidth := m.width * ListWidthPct / 100
		listBorder := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Width(listWidth).
			Height(paneHeight)
		detailBorder := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Width(m.search.detail.Width).
			Height(paneHeight)
		panes = lipgloss.JoinHorizontal(lipgloss.Top,
			listBorder.Render(m.search.ViewList()),
			detailBorder.Render(m.search.ViewDetail()))
	default:
		border := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Width(m.width - 2).
			Height(paneHeight)
		if m.active == ViewDiscussion {
			panes = border.Render(m.discussion.View())
		} else {
			panes = border.Render(m.history.View())
		}
	}

	bottomBarStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	noticeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true).Padding(0, 1)
	var bottomBar string
	if m.notice != "" {
		bottomBar = noticeStyle.Render(m.notice)
	} else {
		bottomBar = bottomBarStyle.Render(m.hints())
	}

	return lipgloss.JoinVertical(lipgloss.Left, navbar, panes, bottomBar)
}

func (m Model) hints() string {
	if m.editing() {
		return "enter submit · esc cancel · ctrl+u clear"
	}
	switch m.active {
	case ViewSearch:
		return "/ search · ↑↓/jk navigate · space select · i interrogate · d discuss · enter load · f full text · J/K scroll · c cite · o offline · esc clear · 1-3 view · q quit"
	case ViewDiscussion:
		return "/ ask · n/p next/prev answer · jk scroll · e export · esc close · 1-3 view · q quit"
	}
	return "↑↓/jk navigate · enter ask again · e export md · E export json · x clear · 1-3 view · q quit"
}
