package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// ErrClosed is returned for operations on a closed client.
var ErrClosed = errors.New("bus client closed")

// EventFunc handles an inbound event payload on the client side.
type EventFunc func(payload json.RawMessage)

// Client is the surface-side endpoint of the bus. It keeps a pending table
// keyed by requestId; exactly one matching reply settles each request. The
// bus itself imposes no reply timeout: a request whose receiving context
// vanished stays pending until the caller's own context expires. Callers
// that care must pass a context with a deadline.
type Client struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan json.RawMessage
	events  map[string]EventFunc
	closed  bool

	done chan struct{}
}

// Dial connects to the background process's surface endpoint and starts the
// receive loop.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus %s: %w", url, err)
	}
	c := &Client{
		ws:      ws,
		logger:  logger,
		pending: make(map[string]chan json.RawMessage),
		events:  make(map[string]EventFunc),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// OnEvent registers the handler for an event kind. Must be called before the
// event can arrive; unknown kinds are ignored.
func (c *Client) OnEvent(kind string, fn EventFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[kind] = fn
}

// Send emits a fire-and-forget event. It confirms delivery to the transport,
// not processing.
func (c *Client) Send(ctx context.Context, kind string, payload any) error {
	env, err := NewEvent(kind, payload)
	if err != nil {
		return err
	}
	return c.write(ctx, env)
}

// Request sends a request envelope and blocks until the matching reply
// arrives or ctx is done. A reply payload carrying an ErrorPayload is
// surfaced as an error.
func (c *Client) Request(ctx context.Context, kind string, payload any) (json.RawMessage, error) {
	env, err := NewRequest(kind, payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[env.RequestID] = ch
	c.mu.Unlock()

	if err := c.write(ctx, env); err != nil {
		c.forget(env.RequestID)
		return nil, err
	}

	select {
	case <-ctx.Done():
		// A reply that arrives after this point is dropped by the read
		// loop; reply handling stays idempotent.
		c.forget(env.RequestID)
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	case raw := <-ch:
		var ep ErrorPayload
		if err := json.Unmarshal(raw, &ep); err == nil && ep.Error != "" {
			return nil, errors.New(ep.Error)
		}
		return raw, nil
	}
}

// RequestJSON performs Request and decodes the reply payload into out.
func (c *Client) RequestJSON(ctx context.Context, kind string, payload, out any) error {
	raw, err := c.Request(ctx, kind, payload)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", kind, err)
	}
	return nil
}

// Close tears the connection down and unblocks all pending requests.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
	return c.ws.Close(websocket.StatusNormalClosure, "surface detached")
}

func (c *Client) write(ctx context.Context, env Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.Write(ctx, websocket.MessageText, frame)
}

func (c *Client) forget(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, requestID)
}

func (c *Client) readLoop() {
	for {
		_, frame, err := c.ws.Read(context.Background())
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Debug("Bus connection lost", "error", err)
				_ = c.Close()
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			c.logger.Warn("Dropping malformed envelope", "error", err)
			continue
		}

		if env.RequestID != "" {
			c.mu.Lock()
			ch, ok := c.pending[env.RequestID]
			if ok {
				delete(c.pending, env.RequestID)
			}
			c.mu.Unlock()
			if ok {
				ch <- env.Payload
			}
			// Replies nobody is waiting for are stale; drop them.
			continue
		}

		c.mu.Lock()
		fn, ok := c.events[env.Kind]
		c.mu.Unlock()
		if ok {
			fn(env.Payload)
		} else {
			c.logger.Debug("Ignoring unknown event kind", "kind", env.Kind)
		}
	}
}
