package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/shared"
	ws "nhooyr.io/websocket"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Handler consumes one inbound message. Handlers run on the connection's
// read goroutine; long work should not block here.
type Handler func(ctx context.Context, msg Message)

// Conn maintains the websocket connection to the selector, dispatching
// inbound messages to a handler and carrying outbound events.
//
// Run reconnects with capped exponential backoff until its context ends.
// Send is fire-and-forget from the caller's perspective: while disconnected
// it fails fast and the caller decides whether the event mattered.
type Conn struct {
	url     string
	handler Handler
	logger  *log.Logger

	mu   sync.Mutex
	conn *ws.Conn
}

// New creates a channel connection manager. The handler may be nil for
// send-only use.
func New(url string, handler Handler, logger *log.Logger) *Conn {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Conn{
		url:     url,
		handler: handler,
		logger:  shared.WithLogger(logger, "component", "channel"),
	}
}

// Run dials the selector and pumps inbound messages until ctx is done,
// redialing on failure with capped backoff.
func (c *Conn) Run(ctx context.Context) error {
	backoff := initialBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := ws.Dial(ctx, c.url, nil)
		if err != nil {
			c.logger.Warn("dial failed", "url", c.url, "err", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.setConn(conn)
		c.logger.Info("channel connected", "url", c.url)
		backoff = initialBackoff

		err = c.readLoop(ctx, conn)
		c.setConn(nil)
		conn.Close(ws.StatusNormalClosure, "reconnecting")

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("channel disconnected", "err", err)
	}
}

func (c *Conn) readLoop(ctx context.Context, conn *ws.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ws.CloseStatus(err) == ws.StatusNormalClosure {
				return nil
			}
			return err
		}

		msg, err := Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed message", "err", err)
			continue
		}

		if c.handler != nil {
			c.handler(ctx, msg)
		}
	}
}

// Emit encodes and sends an outbound message. Returns
// [shared.ErrServiceUnavailable] while disconnected.
func (c *Conn) Emit(ctx context.Context, kind string, payload any) error {
	data, err := Encode(kind, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("%w: channel not connected", shared.ErrServiceUnavailable)
	}

	if err := conn.Write(ctx, ws.MessageText, data); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return nil
}

// Connected reports whether a live connection exists.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Conn) setConn(conn *ws.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}
