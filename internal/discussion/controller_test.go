package discussion

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/scicheck/internal/history"
	"github.com/lotas/scicheck/internal/types"
)

type fakeTransport struct {
	mu      sync.Mutex
	openErr error
	opened  [][]types.Article
	sent    []Outbound
	closed  int
	onMsg   func(Frame)
	onDrop  func(error)
}

func (f *fakeTransport) Open(_ context.Context, articles []types.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, articles)
	return f.openErr
}

func (f *fakeTransport) Send(msg Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *fakeTransport) OnMessage(h func(Frame)) {
	f.mu.Lock()
	f.onMsg = h
	f.mu.Unlock()
}

func (f *fakeTransport) OnDisconnect(h func(error)) {
	f.mu.Lock()
	f.onDrop = h
	f.mu.Unlock()
}

func (f *fakeTransport) deliver(t *testing.T, frame string) {
	t.Helper()
	fr, err := ParseFrame([]byte(frame))
	require.NoError(t, err)
	f.mu.Lock()
	h := f.onMsg
	f.mu.Unlock()
	h(fr)
}

type recordingScroller struct{ ids []string }

func (r *recordingScroller) ScrollTo(id string) { r.ids = append(r.ids, id) }

func answered(t *testing.T, results ...map[string]any) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"type": TypeQuestionAnswered, "data": results})
	require.NoError(t, err)
	return string(data)
}

func newTestController(t *testing.T, ids ...string) (*Controller, *fakeTransport, *history.Store) {
	t.Helper()
	ft := &fakeTransport{}
	hs := history.NewStore(&history.MemoryBackend{}, 0)
	c := NewController(ft, hs)
	require.NoError(t, c.Open(context.Background(), testArticles(ids...)))
	return c, ft, hs
}

func TestOpenRequiresArticles(t *testing.T) {
	c := NewController(&fakeTransport{}, history.NewStore(&history.MemoryBackend{}, 0))
	assert.ErrorIs(t, c.Open(context.Background(), nil), ErrNoArticles)
	assert.Equal(t, Closed, c.State())
}

func TestOpenGoesReady(t *testing.T) {
	c, ft, _ := newTestController(t, "a1")
	assert.Equal(t, Ready, c.State())
	require.Len(t, ft.opened, 1)
	assert.Equal(t, "a1", ft.opened[0][0].ID)

	v := c.Snapshot()
	assert.Equal(t, -1, v.Cursor)
	assert.False(t, v.Multi)
	assert.Equal(t, "Abstract a1", v.Articles[0].Content)

	assert.ErrorIs(t, c.Open(context.Background(), testArticles("a1")), ErrAlreadyOpen)
}

func TestOpenFailureCloses(t *testing.T) {
	ft := &fakeTransport{openErr: errors.New("refused")}
	c := NewController(ft, history.NewStore(&history.MemoryBackend{}, 0))

	err := c.Open(context.Background(), testArticles("a1"))
	require.Error(t, err)
	assert.Equal(t, Closed, c.State())
	assert.Equal(t, 1, ft.closed)

	select {
	case u := <-c.Updates():
		assert.Equal(t, UpdateFailed, u.Kind)
	default:
		t.Fatal("no failure update")
	}
	assert.ErrorIs(t, c.Submit("q"), ErrClosed)
}

func TestSubmitValidation(t *testing.T) {
	c, ft, _ := newTestController(t, "a1")

	assert.ErrorIs(t, c.Submit("   "), ErrEmptyQuestion)
	assert.Equal(t, Ready, c.State())
	assert.Empty(t, ft.sent)

	require.NoError(t, c.Submit("  What is X?  "))
	assert.Equal(t, AwaitingAnswer, c.State())
	require.Len(t, ft.sent, 1)
	assert.Equal(t, Discuss("What is X?"), ft.sent[0])
}

func TestSubmitWhileAwaitingIsNoop(t *testing.T) {
	c, ft, _ := newTestController(t, "a1")
	require.NoError(t, c.Submit("first"))

	assert.ErrorIs(t, c.Submit("second"), ErrAnswerPending)
	assert.Equal(t, AwaitingAnswer, c.State())
	assert.Equal(t, "first", c.Snapshot().Question)
	assert.Len(t, ft.sent, 1)
}

func TestSingleArticleAnswer(t *testing.T) {
	c, ft, hs := newTestController(t, "a1")
	require.NoError(t, c.Submit("What is X?"))

	ft.deliver(t, answered(t, map[string]any{
		"_id":     "a1",
		"content": "<span class='hglt__answer'>X is Y</span>",
		"answer":  []string{"1"},
	}))

	v := c.Snapshot()
	assert.Equal(t, Answered, v.State)
	assert.Equal(t, []string{"span-0-0"}, v.SpanIDs)
	assert.Equal(t, -1, v.Cursor)
	assert.Equal(t, 1, v.TotalAnswers)
	assert.Contains(t, v.Articles[0].Content, `id="span-0-0"`)

	entries := hs.Load()
	require.Len(t, entries, 1)
	assert.Equal(t, "What is X?", entries[0].Question)
	assert.Equal(t, 1, entries[0].AnswersCount)
	assert.Equal(t, entries, v.History)

	select {
	case u := <-c.Updates():
		assert.Equal(t, UpdateConnected, u.Kind)
	default:
		t.Fatal("missing connected update")
	}
	select {
	case u := <-c.Updates():
		assert.Equal(t, UpdateAnswered, u.Kind)
	default:
		t.Fatal("missing answered update")
	}
}

func TestMultiArticleOrdering(t *testing.T) {
	c, ft, hs := newTestController(t, "a", "b", "c")
	require.NoError(t, c.Submit("Why?"))

	marker := "<span class='hglt__answer'>yes</span>"
	ft.deliver(t, answered(t,
		map[string]any{"_id": "c", "content": marker, "answer": []string{}, "score": 0.1},
		map[string]any{"_id": "a", "content": marker, "answer": []string{"1"}, "score": 0.5},
		map[string]any{"_id": "b", "content": marker + marker, "answer": []string{"1", "2"}, "score": 0.9},
	))

	v := c.Snapshot()
	assert.True(t, v.Multi)
	// Span ids follow score rank: b, a; c has no answers and is not scanned.
	assert.Equal(t, []string{"span-0-0", "span-0-1", "span-1-0"}, v.SpanIDs)

	var order []string
	for _, a := range v.Articles {
		order = append(order, a.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Contains(t, v.Articles[0].Content, `id="span-1-0"`)
	assert.NotContains(t, v.Articles[2].Content, `id=`)
	assert.Equal(t, 2, v.Articles[1].Answers)

	assert.Equal(t, 4, v.TotalAnswers)
	assert.Equal(t, 4, hs.Load()[0].AnswersCount)
}

func TestMultiArticleUnknownResultsAppended(t *testing.T) {
	c, ft, _ := newTestController(t, "a", "b")
	require.NoError(t, c.Submit("q"))

	ft.deliver(t, answered(t,
		map[string]any{"_id": "x", "content": "", "answer": []string{"1"}, "score": 0.9},
		map[string]any{"_id": "b", "content": "", "answer": []string{"1"}, "score": 0.5},
		map[string]any{"_id": "y", "content": "", "answer": []string{"1"}, "score": 0.7},
	))

	var order []string
	for _, a := range c.Snapshot().Articles {
		order = append(order, a.ID)
	}
	assert.Equal(t, []string{"b", "x", "y"}, order)
}

func TestAnswerWhileNotAwaitingIsDropped(t *testing.T) {
	c, ft, hs := newTestController(t, "a1")
	ft.deliver(t, answered(t, map[string]any{"_id": "a1", "content": "<span class='hglt__answer'>x</span>", "answer": []string{"1"}}))

	assert.Equal(t, Ready, c.State())
	assert.Empty(t, c.Snapshot().SpanIDs)
	assert.Empty(t, hs.Load())
}

func TestOtherFrameTypesIgnored(t *testing.T) {
	c, ft, _ := newTestController(t, "a1")
	require.NoError(t, c.Submit("q"))
	ft.deliver(t, `{"type":"question.progress","data":[]}`)
	assert.Equal(t, AwaitingAnswer, c.State())
}

func TestStaleHandlerAfterClose(t *testing.T) {
	c, ft, hs := newTestController(t, "a1")
	require.NoError(t, c.Submit("old"))
	stale := ft.onMsg

	c.Close()
	assert.Equal(t, Closed, c.State())
	assert.Equal(t, 1, ft.closed)

	require.NoError(t, c.Open(context.Background(), testArticles("a1")))
	require.NoError(t, c.Submit("new"))

	fr, err := ParseFrame([]byte(answered(t, map[string]any{"_id": "a1", "content": "", "answer": []string{"1"}})))
	require.NoError(t, err)
	stale(fr)

	assert.Equal(t, AwaitingAnswer, c.State())
	assert.Empty(t, hs.Load())
}

func TestCloseResetsState(t *testing.T) {
	c, ft, _ := newTestController(t, "a1")
	require.NoError(t, c.Submit("q"))
	ft.deliver(t, answered(t, map[string]any{"_id": "a1", "content": "<span class='hglt__answer'>x</span>", "answer": []string{"1"}}))
	c.Next()

	c.Close()
	c.Close()
	v := c.Snapshot()
	assert.Equal(t, Closed, v.State)
	assert.Empty(t, v.Question)
	assert.Empty(t, v.SpanIDs)
	assert.Equal(t, -1, v.Cursor)
	assert.Zero(t, v.TotalAnswers)
}

func TestNavigationClamps(t *testing.T) {
	c, ft, _ := newTestController(t, "a1")
	sc := &recordingScroller{}
	c.SetScroller(sc)

	c.Next()
	c.Previous()
	assert.Equal(t, -1, c.Snapshot().Cursor)
	assert.Empty(t, sc.ids)

	require.NoError(t, c.Submit("q"))
	m := "<span class='hglt__answer'>x</span>"
	ft.deliver(t, answered(t, map[string]any{"_id": "a1", "content": m + m + m, "answer": []string{"1"}}))

	c.Next()
	c.Next()
	c.Next()
	assert.Equal(t, 2, c.Snapshot().Cursor)
	c.Next()
	assert.Equal(t, 2, c.Snapshot().Cursor)

	c.Previous()
	c.Previous()
	assert.Equal(t, 0, c.Snapshot().Cursor)
	c.Previous()
	assert.Equal(t, 0, c.Snapshot().Cursor)
	assert.Equal(t, "span-0-0", c.Snapshot().Current())

	assert.Equal(t, []string{"span-0-0", "span-0-1", "span-0-2", "span-0-1", "span-0-0"}, sc.ids)
}

func TestDisconnectCloses(t *testing.T) {
	c, ft, _ := newTestController(t, "a1")
	<-c.Updates()
	ft.onDrop(errors.New("eof"))

	assert.Equal(t, Closed, c.State())
	u := <-c.Updates()
	assert.Equal(t, UpdateDisconnected, u.Kind)
}

func TestHistoryReloadedOnOpen(t *testing.T) {
	backend := &history.MemoryBackend{}
	first := history.NewStore(backend, 0)
	first.Record("earlier", 2)

	c := NewController(&fakeTransport{}, history.NewStore(backend, 0))
	require.NoError(t, c.Open(context.Background(), testArticles("a1")))
	h := c.Snapshot().History
	require.Len(t, h, 1)
	assert.Equal(t, "earlier", h[0].Question)
}

func TestEndToEndOverWebSocket(t *testing.T) {
	b := newFakeBackend(t)
	conn := NewConn(b.url)
	hs := history.NewStore(&history.MemoryBackend{}, 0)
	c := NewController(conn, hs)
	t.Cleanup(c.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Open(ctx, testArticles("a1")))
	assert.Equal(t, TypeSelectArticles, b.next()["type"])
	b.push(`{"message":"Articles selected"}`)

	require.NoError(t, c.Submit("What is X?"))
	q := b.next()
	assert.Equal(t, TypeDiscuss, q["type"])
	assert.Equal(t, "What is X?", q["query"])

	b.push(`{"type":"question.answered","data":[{"_id":"a1","content":"<span class='hglt__answer'>X is Y</span>","answer":["1"]}]}`)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-c.Updates():
			if u.Kind != UpdateAnswered {
				continue
			}
			v := c.Snapshot()
			assert.Equal(t, []string{"span-0-0"}, v.SpanIDs)
			entries := hs.Load()
			require.Len(t, entries, 1)
			assert.Equal(t, "What is X?", entries[0].Question)
			assert.Equal(t, 1, entries[0].AnswersCount)
			return
		case <-deadline:
			t.Fatal("answer never applied")
		}
	}
}
