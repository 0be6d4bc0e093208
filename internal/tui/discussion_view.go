package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/scicheck/internal/applog"
	"github.com/lotas/scicheck/internal/discussion"
	"github.com/lotas/scicheck/internal/export"
	"github.com/lotas/scicheck/internal/highlight"
	"github.com/lotas/scicheck/internal/types"
)

type discussionOpenedMsg struct{ err error }

type discussionUpdateMsg struct{ update discussion.Update }

func listenDiscussion(ctrl *discussion.Controller) tea.Cmd {
	return func() tea.Msg {
		return discussionUpdateMsg{update: <-ctrl.Updates()}
	}
}

// DiscussionView renders one discussion and follows the answer cursor. It
// implements discussion.Scroller.
type DiscussionView struct {
	ctx       context.Context
	library   Library
	ctrl      *discussion.Controller
	exportDir string

	view     discussion.View
	input    LineInput
	opening  bool
	lines    []string
	spanLine map[string]int
	scroll   int
	width    int
	height   int
}

func NewDiscussionView(ctx context.Context, lib Library, ctrl *discussion.Controller, exportDir string) *DiscussionView {
	d := &DiscussionView{
		ctx:       ctx,
		library:   lib,
		ctrl:      ctrl,
		exportDir: exportDir,
		input:     LineInput{Placeholder: "press / to ask a question"},
		spanLine:  make(map[string]int),
	}
	ctrl.SetScroller(d)
	d.Refresh()
	return d
}

func (d *DiscussionView) SetSize(w, h int) {
	d.width = w
	d.height = h
	d.rebuild()
}

// Active reports whether a discussion is open or opening.
func (d *DiscussionView) Active() bool {
	return d.opening || d.view.State != discussion.Closed
}

// Editing reports whether keys go to the question field.
func (d *DiscussionView) Editing() bool { return d.input.Focused }

// TotalAnswers is the answer count of the last answered question.
func (d *DiscussionView) TotalAnswers() int { return d.view.TotalAnswers }

// Open starts a discussion about ids, closing any running one.
func (d *DiscussionView) Open(ids []string) tea.Cmd {
	if d.ctrl.State() != discussion.Closed {
		d.ctrl.Close()
	}
	d.opening = true
	d.scroll = 0
	d.input.Value = ""
	d.input.Focused = true
	d.Refresh()

	ctx, lib, ctrl := d.ctx, d.library, d.ctrl
	return func() tea.Msg {
		var articles []types.Article
		if len(ids) == 1 {
			a, err := lib.Article(ctx, ids[0])
			if err != nil {
				return discussionOpenedMsg{err: err}
			}
			articles = []types.Article{a}
		} else {
			var err error
			if articles, err = lib.Articles(ctx, ids); err != nil {
				return discussionOpenedMsg{err: err}
			}
		}
		return discussionOpenedMsg{err: ctrl.Open(ctx, articles)}
	}
}

// Ask puts question into the input field.
func (d *DiscussionView) Ask(question string) {
	d.input.Value = question
	d.input.Focused = true
}

// Refresh re-reads the controller state.
func (d *DiscussionView) Refresh() {
	d.view = d.ctrl.Snapshot()
	d.rebuild()
}

// ScrollTo brings the line holding spanID into view.
func (d *DiscussionView) ScrollTo(spanID string) {
	line, ok := d.spanLine[spanID]
	if !ok {
		return
	}
	d.scroll = line - d.bodyHeight()/3
	d.clampScroll()
}

func (d *DiscussionView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case discussionOpenedMsg:
		d.opening = false
		d.Refresh()
		if msg.err != nil && !errors.Is(msg.err, discussion.ErrClosed) {
			applog.Error("tui.discussion.open", msg.err)
			return notice("Could not open discussion: " + msg.err.Error())
		}
		return nil

	case discussionUpdateMsg:
		d.Refresh()
		switch msg.update.Kind {
		case discussion.UpdateFailed:
			d.opening = false
			return notice("Connection failed: " + errText(msg.update.Err))
		case discussion.UpdateDisconnected:
			return notice("Connection closed")
		case discussion.UpdateAnswered:
			d.scroll = 0
			if d.view.TotalAnswers == 0 {
				return notice("No answers found")
			}
		}
		return nil

	case tea.KeyMsg:
		if d.input.Focused {
			switch msg.String() {
			case "enter":
				if err := d.ctrl.Submit(d.input.Value); err != nil {
					return notice(err.Error())
				}
				d.input.Value = ""
				d.input.Focused = false
				d.Refresh()
			case "esc":
				d.input.Focused = false
			default:
				d.input.HandleKey(msg)
			}
			return nil
		}

		switch msg.String() {
		case "/", "a":
			if d.Active() {
				d.input.Focused = true
			}
		case "n", "tab":
			d.ctrl.Next()
			d.Refresh()
		case "p", "shift+tab":
			d.ctrl.Previous()
			d.Refresh()
		case "j", "down":
			d.scroll++
			d.clampScroll()
		case "k", "up":
			d.scroll--
			d.clampScroll()
		case "esc":
			if d.Active() {
				d.ctrl.Close()
				d.opening = false
				d.Refresh()
			}
		case "e":
			return d.exportTranscript()
		}
	}
	return nil
}

func (d *DiscussionView) exportTranscript() tea.Cmd {
	view := d.view
	if view.State != discussion.Answered {
		return notice("Nothing to export yet")
	}
	dir := d.exportDir
	return func() tea.Msg {
		text, err := export.Transcript(view)
		if err != nil {
			return noticeMsg{text: "Export failed: " + err.Error()}
		}
		path := filepath.Join(dir, "scicheck-transcript-"+time.Now().Format("20060102-150405")+".md")
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return noticeMsg{text: "Export failed: " + err.Error()}
		}
		applog.Info("tui.export", "path", path)
		return noticeMsg{text: "Saved " + path}
	}
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// Header line plus the input line and their separators.
func (d *DiscussionView) bodyHeight() int {
	return max(d.height-4, 1)
}

func (d *DiscussionView) clampScroll() {
	maxScroll := len(d.lines) - d.bodyHeight()
	if d.scroll > maxScroll {
		d.scroll = maxScroll
	}
	if d.scroll < 0 {
		d.scroll = 0
	}
}

func (d *DiscussionView) rebuild() {
	titleStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	wrap := lipgloss.NewStyle().Width(max(d.width-2, 20))

	current := d.view.Current()
	var lines []string
	spanLine := make(map[string]int)

	for i, a := range d.view.Articles {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, strings.Split(wrap.Render(titleStyle.Render(highlight.PlainText(a.Title))), "\n")...)
		if d.view.State == discussion.Answered && d.view.Multi {
			if a.HasAnswers {
				lines = append(lines, countStyle.Render(export.Answers(a.Answers)))
			} else {
				lines = append(lines, dimStyle.Render("No answer in this article"))
			}
		}
		body, marks := renderBody(a.Content, current, wrap)
		for id, off := range marks {
			spanLine[id] = len(lines) + off
		}
		lines = append(lines, body...)
	}

	d.lines = lines
	d.spanLine = spanLine
	d.clampScroll()
}

// renderBody styles the answer runs of fragment and returns the wrapped lines
// along with the line offset of every span.
func renderBody(fragment, current string, wrap lipgloss.Style) ([]string, map[string]int) {
	answerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Underline(true)
	selectedStyle := lipgloss.NewStyle().Background(lipgloss.Color("214")).Foreground(lipgloss.Color("0")).Bold(true)

	var styled, plain strings.Builder
	marks := make(map[string]int)
	for _, seg := range highlight.Segments(fragment) {
		text := strings.ReplaceAll(seg.Text, "\n", " ")
		switch {
		case seg.SpanID == "":
			styled.WriteString(text)
		case seg.SpanID == current:
			styled.WriteString(selectedStyle.Render(text))
		default:
			styled.WriteString(answerStyle.Render(text))
		}
		if seg.SpanID != "" {
			if _, seen := marks[seg.SpanID]; !seen {
				probe := plain.String() + firstWord(text)
				marks[seg.SpanID] = lipgloss.Height(wrap.Render(probe)) - 1
			}
		}
		plain.WriteString(text)
	}
	if styled.Len() == 0 {
		return nil, marks
	}
	return strings.Split(wrap.Render(styled.String()), "\n"), marks
}

func firstWord(s string) string {
	s = strings.TrimLeft(s, " ")
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func (d *DiscussionView) View() string {
	headStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	var head string
	switch {
	case d.opening || d.view.State == discussion.Connecting:
		head = activeStyle.Render("Connecting...")
	case d.view.State == discussion.Closed:
		return dimStyle.Render("No discussion open. Select articles in the search view and press 'i'.")
	case d.view.State == discussion.AwaitingAnswer:
		head = headStyle.Render("Q: "+d.view.Question) + "  " + activeStyle.Render("waiting for answer...")
	case d.view.State == discussion.Answered:
		pos := ""
		if len(d.view.SpanIDs) > 0 {
			pos = fmt.Sprintf(" · %d/%d", d.view.Cursor+1, len(d.view.SpanIDs))
		}
		head = headStyle.Render("Q: "+d.view.Question) + "  " + dimStyle.Render(export.Answers(d.view.TotalAnswers)+pos)
	default:
		head = dimStyle.Render(fmt.Sprintf("Discussing %d article(s)", len(d.view.Articles)))
	}

	end := min(d.scroll+d.bodyHeight(), len(d.lines))
	body := ""
	if d.scroll < end {
		body = strings.Join(d.lines[d.scroll:end], "\n")
	}
	body = lipgloss.NewStyle().Height(d.bodyHeight()).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().MaxWidth(d.width).Render(head),
		"",
		body,
		"",
		d.input.View("Ask:", d.width),
	)
}
