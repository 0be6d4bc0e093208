package discussion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/lotas/scicheck/internal/applog"
	"github.com/lotas/scicheck/internal/types"
)

// ConnState is the lifecycle state of a Conn.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	// ErrBusy is returned by Open when a connect cycle is already running.
	ErrBusy = errors.New("connection already open")
	// ErrCancelled is returned by Open when Close ran while dialing.
	ErrCancelled = errors.New("connection closed while opening")
)

const writeTimeout = 10 * time.Second

// Conn owns one streaming connection to the answering backend at
// {base}/ws/{clientID}. Messages sent before the connection is open are
// buffered in a single slot and flushed once it opens.
type Conn struct {
	base string

	mu           sync.Mutex
	state        ConnState
	cycle        uint64
	ws           *websocket.Conn
	cancel       context.CancelFunc
	pending      *Outbound
	onMessage    func(Frame)
	onDisconnect func(error)
}

// NewConn returns an idle connection to the backend at base (ws:// or wss://).
func NewConn(base string) *Conn {
	return &Conn{base: strings.TrimRight(base, "/")}
}

// OnMessage sets the handler for typed inbound frames. Frames are delivered
// in receipt order from a single goroutine.
func (c *Conn) OnMessage(h func(Frame)) {
	c.mu.Lock()
	c.onMessage = h
	c.mu.Unlock()
}

// OnDisconnect sets the handler called when the backend drops a live
// connection. It is not called for Close.
func (c *Conn) OnDisconnect(h func(error)) {
	c.mu.Lock()
	c.onDisconnect = h
	c.mu.Unlock()
}

func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open dials the backend and announces the target articles. On failure the
// connection returns to idle.
func (c *Conn) Open(ctx context.Context, articles []types.Article) error {
	hello, err := SelectArticles(articles)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = StateConnecting
	c.cycle++
	cycle := c.cycle
	c.mu.Unlock()

	url := c.base + "/ws/" + uuid.NewString()
	applog.Info("ws.dial", "url", url, "articles", len(articles))

	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		c.mu.Lock()
		if c.cycle == cycle {
			c.state = StateIdle
		}
		c.mu.Unlock()
		applog.Error("ws.dial", err, "url", url)
		return fmt.Errorf("dial %s: %w", url, err)
	}
	ws.SetReadLimit(16 << 20)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cycle != cycle {
		ws.CloseNow()
		return ErrCancelled
	}

	if err := write(ws, hello); err != nil {
		ws.CloseNow()
		c.state = StateIdle
		applog.Error("ws.send", err, "type", hello.Type)
		return fmt.Errorf("send %s: %w", hello.Type, err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c.ws = ws
	c.cancel = cancel
	c.state = StateOpen
	applog.Info("ws.connected", "url", url)

	if c.pending != nil {
		msg := *c.pending
		c.pending = nil
		if err := write(ws, msg); err != nil {
			applog.Error("ws.send", err, "type", msg.Type)
		}
	}

	go c.readLoop(readCtx, ws, cycle)
	return nil
}

// Send writes msg when the connection is open, otherwise keeps it as the
// single pending message, replacing any earlier one. A failed write is
// dropped.
func (c *Conn) Send(msg Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen || c.ws == nil {
		c.pending = &msg
		applog.Info("ws.buffer", "type", msg.Type)
		return nil
	}
	if err := write(c.ws, msg); err != nil {
		applog.Error("ws.send", err, "type", msg.Type)
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Close tears the connection down and discards the pending message. It is
// safe to call at any time, any number of times.
func (c *Conn) Close() {
	c.mu.Lock()
	ws, cancel := c.ws, c.cancel
	c.ws, c.cancel, c.pending = nil, nil, nil
	c.cycle++
	c.state = StateClosed
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ws != nil {
		ws.CloseNow()
		applog.Info("ws.closed")
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.state = StateIdle
	}
	c.mu.Unlock()
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn, cycle uint64) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			c.mu.Lock()
			live := c.cycle == cycle
			var onDisconnect func(error)
			if live {
				c.state = StateIdle
				c.ws = nil
				if c.cancel != nil {
					c.cancel()
					c.cancel = nil
				}
				onDisconnect = c.onDisconnect
			}
			c.mu.Unlock()
			if live {
				applog.Error("ws.read", err)
				if onDisconnect != nil {
					onDisconnect(err)
				}
			}
			ws.CloseNow()
			return
		}

		frame, err := ParseFrame(data)
		if err != nil {
			applog.Error("ws.parse", err, "raw", string(data))
			continue
		}
		if frame.Type == "" {
			applog.Debug("ws.untyped", "raw", string(data))
			continue
		}
		applog.Info("ws.recv", "type", frame.Type)

		c.mu.Lock()
		h := c.onMessage
		live := c.cycle == cycle
		c.mu.Unlock()
		if live && h != nil {
			h(frame)
		}
	}
}

func write(ws *websocket.Conn, msg Outbound) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
