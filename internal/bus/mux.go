package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// HandlerFunc processes one envelope payload. For request envelopes the
// returned value becomes the reply payload; a returned error is converted to
// an ErrorPayload reply. For event envelopes both return values are ignored
// beyond logging.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Mux demultiplexes inbound envelopes on their kind through a fixed lookup.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// NewMux creates an empty dispatcher.
func NewMux(logger *slog.Logger) *Mux {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mux{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Handle registers the handler for a message kind.
func (m *Mux) Handle(kind string, h HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[kind] = h
}

// Dispatch routes one envelope. It returns the reply envelope and true when
// the envelope was a request that produced a reply. Unknown kinds are
// silently ignored: the protocol must tolerate contexts running newer code.
func (m *Mux) Dispatch(ctx context.Context, env Envelope) (Envelope, bool) {
	m.mu.RLock()
	h, ok := m.handlers[env.Kind]
	m.mu.RUnlock()
	if !ok {
		m.logger.Debug("Ignoring unknown message kind", "kind", env.Kind)
		return Envelope{}, false
	}

	result, err := h(ctx, env.Payload)

	if env.RequestID == "" {
		if err != nil {
			m.logger.Warn("Event handler failed", "kind", env.Kind, "error", err)
		}
		return Envelope{}, false
	}

	if err != nil {
		reply, buildErr := NewReply(env, ErrorPayload{Error: err.Error()})
		if buildErr != nil {
			m.logger.Error("Failed to build error reply", "kind", env.Kind, "error", buildErr)
			return Envelope{}, false
		}
		return reply, true
	}

	reply, err := NewReply(env, result)
	if err != nil {
		m.logger.Error("Failed to build reply", "kind", env.Kind, "error", err)
		reply, err = NewReply(env, ErrorPayload{Error: "failed to encode reply"})
		if err != nil {
			return Envelope{}, false
		}
	}
	return reply, true
}
