package discussion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/lotas/scicheck/internal/types"
)

// fakeBackend is a streaming backend that records every inbound message and
// lets the test push frames to the connected client.
type fakeBackend struct {
	t     *testing.T
	url   string
	paths chan string
	recv  chan map[string]any

	mu       sync.Mutex
	conn     *websocket.Conn
	gone     chan struct{}
	goneOnce sync.Once
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		t:     t,
		paths: make(chan string, 8),
		recv:  make(chan map[string]any, 16),
		gone:  make(chan struct{}),
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		b.paths <- r.URL.Path
		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()
		defer conn.CloseNow()
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				b.goneOnce.Do(func() { close(b.gone) })
				return
			}
			var msg map[string]any
			if json.Unmarshal(data, &msg) == nil {
				b.recv <- msg
			}
		}
	}))
	t.Cleanup(ts.Close)
	b.url = "ws" + strings.TrimPrefix(ts.URL, "http")
	return b
}

func (b *fakeBackend) next() map[string]any {
	b.t.Helper()
	select {
	case msg := <-b.recv:
		return msg
	case <-time.After(2 * time.Second):
		b.t.Fatal("timed out waiting for client message")
		return nil
	}
}

func (b *fakeBackend) push(frame string) {
	b.t.Helper()
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	require.NotNil(b.t, conn)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(b.t, conn.Write(ctx, websocket.MessageText, []byte(frame)))
}

func (b *fakeBackend) hangUp() {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	conn.Close(websocket.StatusGoingAway, "bye")
}

func testArticles(ids ...string) []types.Article {
	var out []types.Article
	for _, id := range ids {
		out = append(out, types.Article{ID: id, Title: "Title " + id, Abstract: "Abstract " + id})
	}
	return out
}

func openConn(t *testing.T, b *fakeBackend, articles []types.Article) *Conn {
	t.Helper()
	c := NewConn(b.url)
	t.Cleanup(c.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Open(ctx, articles))
	return c
}

func TestConnOpenAnnouncesArticles(t *testing.T) {
	b := newFakeBackend(t)
	c := openConn(t, b, testArticles("a1", "a2"))

	assert.Equal(t, StateOpen, c.State())
	assert.True(t, strings.HasPrefix(<-b.paths, "/ws/"))

	hello := b.next()
	assert.Equal(t, TypeSelectArticles, hello["type"])
	articles := hello["articles"].([]any)
	require.Len(t, articles, 2)
	first := articles[0].(map[string]any)
	assert.Equal(t, "a1", first["id"])
	assert.Equal(t, "Abstract a1", first["content"])
}

func TestConnBuffersLatestMessageUntilOpen(t *testing.T) {
	b := newFakeBackend(t)
	c := NewConn(b.url)
	t.Cleanup(c.Close)

	require.NoError(t, c.Send(Discuss("first")))
	require.NoError(t, c.Send(Discuss("second")))
	assert.Equal(t, StateIdle, c.State())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Open(ctx, testArticles("a1")))

	assert.Equal(t, TypeSelectArticles, b.next()["type"])
	flushed := b.next()
	assert.Equal(t, TypeDiscuss, flushed["type"])
	assert.Equal(t, "second", flushed["query"])

	require.NoError(t, c.Send(Discuss("third")))
	assert.Equal(t, "third", b.next()["query"])
}

func TestConnDeliversTypedFramesInOrder(t *testing.T) {
	b := newFakeBackend(t)
	c := NewConn(b.url)
	t.Cleanup(c.Close)

	got := make(chan Frame, 8)
	c.OnMessage(func(f Frame) { got <- f })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Open(ctx, testArticles("a1")))
	b.next()

	b.push(`{"message":"Articles selected"}`)
	b.push(`not json`)
	b.push(`{"type":"first","data":[]}`)
	b.push(`{"error":"Invalid type"}`)
	b.push(`{"type":"second","data":[1]}`)

	for _, want := range []string{"first", "second"} {
		select {
		case f := <-got:
			assert.Equal(t, want, f.Type)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	select {
	case f := <-got:
		t.Fatalf("unexpected frame %q", f.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnDialFailureReturnsToIdle(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ts.Close()

	c := NewConn(url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.Open(ctx, testArticles("a1"))
	require.Error(t, err)
	assert.Equal(t, StateIdle, c.State())
}

func TestConnOpenTwiceIsBusy(t *testing.T) {
	b := newFakeBackend(t)
	c := openConn(t, b, testArticles("a1"))
	err := c.Open(context.Background(), testArticles("a1"))
	assert.ErrorIs(t, err, ErrBusy)
}

func TestConnCloseIsRepeatable(t *testing.T) {
	c := NewConn("ws://127.0.0.1:1")
	c.Close()
	c.Close()
	assert.Equal(t, StateIdle, c.State())

	b := newFakeBackend(t)
	c = openConn(t, b, testArticles("a1"))
	require.NoError(t, c.Send(Discuss("q")))
	c.Close()
	c.Close()
	assert.Equal(t, StateIdle, c.State())

	select {
	case <-b.gone:
	case <-time.After(2 * time.Second):
		t.Fatal("backend did not see the connection close")
	}
}

func TestConnCloseDiscardsPending(t *testing.T) {
	b := newFakeBackend(t)
	c := NewConn(b.url)
	t.Cleanup(c.Close)

	require.NoError(t, c.Send(Discuss("stale")))
	c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Open(ctx, testArticles("a1")))
	assert.Equal(t, TypeSelectArticles, b.next()["type"])

	select {
	case msg := <-b.recv:
		t.Fatalf("unexpected flushed message %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnRemoteCloseGoesIdle(t *testing.T) {
	b := newFakeBackend(t)
	c := NewConn(b.url)
	t.Cleanup(c.Close)

	dropped := make(chan error, 1)
	c.OnDisconnect(func(err error) { dropped <- err })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Open(ctx, testArticles("a1")))
	b.next()
	b.hangUp()

	select {
	case err := <-dropped:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not reported")
	}
	assert.Equal(t, StateIdle, c.State())
}
