package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// outboundQueueSize bounds the per-surface send queue. A surface that falls
// this far behind starts losing broadcasts; events are at-most-once anyway.
const outboundQueueSize = 64

// Conn is one live surface connection with an ordered outbound queue.
// All writes to a surface funnel through the queue so that broadcasts and
// replies on the same channel are delivered in send order.
type Conn struct {
	ws     *websocket.Conn
	out    chan []byte
	closed chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newConn(ws *websocket.Conn, logger *slog.Logger) *Conn {
	return &Conn{
		ws:     ws,
		out:    make(chan []byte, outboundQueueSize),
		closed: make(chan struct{}),
		logger: logger,
	}
}

// enqueue appends a frame to the outbound queue without blocking. Frames are
// dropped when the queue is full or the connection is gone.
func (c *Conn) enqueue(frame []byte) {
	select {
	case <-c.closed:
	case c.out <- frame:
	default:
		c.logger.Warn("Surface outbound queue full, dropping frame")
	}
}

func (c *Conn) send(env Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("Failed to encode envelope", "kind", env.Kind, "error", err)
		return
	}
	c.enqueue(frame)
}

func (c *Conn) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case frame := <-c.out:
			if err := c.ws.Write(ctx, websocket.MessageText, frame); err != nil {
				c.logger.Debug("Surface write failed", "error", err)
				return
			}
		}
	}
}

func (c *Conn) close() {
	c.once.Do(func() { close(c.closed) })
}

// Hub tracks every live surface connection and fans events out to all of
// them. It is the broadcast half of the message bus.
type Hub struct {
	mu     sync.RWMutex
	conns  map[*Conn]struct{}
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[*Conn]struct{}),
		logger: logger,
	}
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
	h.logger.Info("Surface connected", "surfaces", len(h.conns))
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		c.close()
		h.logger.Info("Surface disconnected", "surfaces", len(h.conns))
	}
}

// Broadcast sends an event envelope to every currently-listening surface.
// Delivery is at-most-once per surface; there is no acknowledgement.
func (h *Hub) Broadcast(kind string, payload any) {
	env, err := NewEvent(kind, payload)
	if err != nil {
		h.logger.Error("Failed to build broadcast", "kind", kind, "error", err)
		return
	}
	frame, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Failed to encode broadcast", "kind", kind, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		c.enqueue(frame)
	}
}

// Surfaces reports the number of live connections.
func (h *Hub) Surfaces() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
