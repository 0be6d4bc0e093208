package discussion

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/lotas/scicheck/internal/applog"
	"github.com/lotas/scicheck/internal/highlight"
	"github.com/lotas/scicheck/internal/types"
)

// State is the controller state.
type State int

const (
	Closed State = iota
	Connecting
	Ready
	AwaitingAnswer
	Answered
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case AwaitingAnswer:
		return "awaiting answer"
	case Answered:
		return "answered"
	}
	return "unknown"
}

var (
	ErrNoArticles    = errors.New("You must select at least one article")
	ErrEmptyQuestion = errors.New("question is empty")
	ErrClosed        = errors.New("discussion is closed")
	ErrAnswerPending = errors.New("an answer is still pending")
	ErrAlreadyOpen   = errors.New("discussion is already open")
)

// Transport carries a discussion to the backend. *Conn implements it.
type Transport interface {
	Open(ctx context.Context, articles []types.Article) error
	Send(msg Outbound) error
	Close()
	OnMessage(h func(Frame))
	OnDisconnect(h func(error))
}

// HistoryLog is the question log. *history.Store implements it.
type HistoryLog interface {
	Load() []types.HistoryEntry
	Record(question string, answersCount int)
}

// Scroller brings the element carrying a span id into view.
type Scroller interface {
	ScrollTo(spanID string)
}

// UpdateKind tells the UI what changed.
type UpdateKind int

const (
	UpdateConnected UpdateKind = iota
	UpdateFailed
	UpdateAnswered
	UpdateDisconnected
)

// Update is a change notification for the UI event loop.
type Update struct {
	Kind UpdateKind
	Err  error
}

// ArticleAnswer is an article as shown in the discussion, with its answer
// content once a question was answered.
type ArticleAnswer struct {
	types.Article
	Answers    int
	HasAnswers bool
}

// View is a copy of the UI-facing controller state.
type View struct {
	State        State
	Question     string
	Articles     []ArticleAnswer
	SpanIDs      []string
	Cursor       int
	TotalAnswers int
	History      []types.HistoryEntry
	Multi        bool
}

// Current returns the span id under the cursor, or "".
func (v View) Current() string {
	if v.Cursor < 0 || v.Cursor >= len(v.SpanIDs) {
		return ""
	}
	return v.SpanIDs[v.Cursor]
}

// Controller runs one discussion: question submission, answer application,
// span navigation and history recording.
type Controller struct {
	transport Transport
	history   HistoryLog

	mu       sync.Mutex
	state    State
	gen      uint64
	scroller Scroller
	targets  []types.Article
	articles []ArticleAnswer
	question string
	spanIDs  []string
	cursor   int
	total    int
	entries  []types.HistoryEntry
	updates  chan Update
}

// NewController returns a closed controller.
func NewController(t Transport, h HistoryLog) *Controller {
	return &Controller{
		transport: t,
		history:   h,
		cursor:    -1,
		updates:   make(chan Update, 16),
	}
}

// SetScroller installs the collaborator that follows cursor moves.
func (c *Controller) SetScroller(s Scroller) {
	c.mu.Lock()
	c.scroller = s
	c.mu.Unlock()
}

// Updates delivers change notifications. Notifications are dropped when
// nobody drains the channel.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open starts a discussion about articles. The history log is re-read so
// entries written by earlier sessions are kept.
func (c *Controller) Open(ctx context.Context, articles []types.Article) error {
	if len(articles) == 0 {
		return ErrNoArticles
	}

	c.mu.Lock()
	if c.state != Closed {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.state = Connecting
	c.gen++
	gen := c.gen
	c.targets = slices.Clone(articles)
	c.resetLocked()
	c.entries = c.history.Load()
	snapshot := slices.Clone(c.targets)
	c.mu.Unlock()

	c.transport.OnMessage(func(f Frame) { c.handleFrame(gen, f) })
	c.transport.OnDisconnect(func(err error) { c.handleDisconnect(gen, err) })

	err := c.transport.Open(ctx, snapshot)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if err == nil {
			c.transport.Close()
		}
		return ErrClosed
	}
	if err != nil {
		c.state = Closed
		c.mu.Unlock()
		c.transport.Close()
		c.emit(Update{Kind: UpdateFailed, Err: err})
		return err
	}
	if c.state == Connecting {
		c.state = Ready
	}
	c.mu.Unlock()

	c.emit(Update{Kind: UpdateConnected})
	return nil
}

// Submit asks question. While an answer is pending the call is rejected,
// not queued.
func (c *Controller) Submit(question string) error {
	q := strings.TrimSpace(question)
	if q == "" {
		return ErrEmptyQuestion
	}

	c.mu.Lock()
	switch c.state {
	case Closed:
		c.mu.Unlock()
		return ErrClosed
	case AwaitingAnswer:
		c.mu.Unlock()
		return ErrAnswerPending
	}
	c.state = AwaitingAnswer
	c.question = q
	c.mu.Unlock()

	if err := c.transport.Send(Discuss(q)); err != nil {
		applog.Error("discussion.submit", err)
	}
	return nil
}

// Close ends the discussion and resets all derived state.
func (c *Controller) Close() {
	c.mu.Lock()
	c.state = Closed
	c.gen++
	c.resetLocked()
	c.mu.Unlock()

	c.transport.Close()
}

func (c *Controller) resetLocked() {
	c.articles = make([]ArticleAnswer, len(c.targets))
	for i, a := range c.targets {
		a.Content = a.Abstract
		c.articles[i] = ArticleAnswer{Article: a}
	}
	c.question = ""
	c.spanIDs = nil
	c.cursor = -1
	c.total = 0
}

// Next moves the cursor to the following span.
func (c *Controller) Next() { c.move(1) }

// Previous moves the cursor to the preceding span.
func (c *Controller) Previous() { c.move(-1) }

func (c *Controller) move(delta int) {
	c.mu.Lock()
	n := len(c.spanIDs)
	if n == 0 {
		c.mu.Unlock()
		return
	}
	next := c.cursor + delta
	if next < 0 || next > n-1 {
		c.mu.Unlock()
		return
	}
	c.cursor = next
	id := c.spanIDs[next]
	s := c.scroller
	c.mu.Unlock()

	if s != nil {
		s.ScrollTo(id)
	}
}

// Snapshot returns a copy of the UI-facing state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		State:        c.state,
		Question:     c.question,
		Articles:     slices.Clone(c.articles),
		SpanIDs:      slices.Clone(c.spanIDs),
		Cursor:       c.cursor,
		TotalAnswers: c.total,
		History:      slices.Clone(c.entries),
		Multi:        len(c.targets) > 1,
	}
}

func (c *Controller) handleFrame(gen uint64, f Frame) {
	if f.Type != TypeQuestionAnswered {
		applog.Debug("discussion.ignore", "type", f.Type)
		return
	}
	results, err := DecodeResults(f.Data)
	if err != nil {
		applog.Error("ws.parse", err)
		return
	}

	c.mu.Lock()
	if gen != c.gen || c.state != AwaitingAnswer {
		state := c.state
		c.mu.Unlock()
		applog.Debug("discussion.stale", "state", state.String())
		return
	}

	multi := len(c.targets) > 1
	ranked := slices.Clone(results)
	if multi {
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	}

	fragments := make([]string, len(ranked))
	for i, r := range ranked {
		fragments[i] = r.Content
	}
	var include func(int) bool
	if multi {
		include = func(i int) bool { return ranked[i].HasAnswers() }
	}
	spans := highlight.ExtractSelected(fragments, include)

	answered := make([]ArticleAnswer, len(ranked))
	total := 0
	for i, r := range ranked {
		a := r.Article
		a.Content = spans.Fragments[i]
		answered[i] = ArticleAnswer{Article: a, Answers: r.AnswerCount(), HasAnswers: r.HasAnswers()}
		total += r.AnswerCount()
	}

	c.articles = displayOrder(c.targets, answered)
	c.spanIDs = spans.IDs
	c.cursor = -1
	c.total = total
	c.state = Answered
	question := c.question
	c.mu.Unlock()

	c.history.Record(question, total)

	c.mu.Lock()
	if gen == c.gen {
		c.entries = c.history.Load()
	}
	c.mu.Unlock()

	applog.Info("discussion.answered", "spans", spans.Count, "answers", total)
	c.emit(Update{Kind: UpdateAnswered})
}

// displayOrder puts answered articles back into selection order. Results for
// articles outside the selection follow in rank order.
func displayOrder(targets []types.Article, ranked []ArticleAnswer) []ArticleAnswer {
	used := make([]bool, len(ranked))
	out := make([]ArticleAnswer, 0, len(ranked))
	for _, t := range targets {
		for i, r := range ranked {
			if !used[i] && r.ID == t.ID {
				used[i] = true
				out = append(out, r)
				break
			}
		}
	}
	for i, r := range ranked {
		if !used[i] {
			out = append(out, r)
		}
	}
	return out
}

func (c *Controller) handleDisconnect(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	c.mu.Unlock()
	c.emit(Update{Kind: UpdateDisconnected, Err: err})
}

func (c *Controller) emit(u Update) {
	select {
	case c.updates <- u:
	default:
	}
}
