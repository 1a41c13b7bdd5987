package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// Server upgrades surface connections to WebSocket and runs the envelope
// read loop for each. Events are dispatched inline so two events from the
// same surface are processed in arrival order; requests are dispatched
// concurrently so a slow collaborator call never stalls the read loop.
// Replies and broadcasts leave through the per-connection ordered queue.
type Server struct {
	hub    *Hub
	mux    *Mux
	logger *slog.Logger
}

// NewServer creates the WebSocket endpoint handler for the hub.
func NewServer(hub *Hub, mux *Mux, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{hub: hub, mux: mux, logger: logger}
}

// ServeHTTP implements http.Handler for the surface WebSocket upgrade.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			s.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	conn := newConn(ws, s.logger)
	s.hub.register(conn)
	defer s.hub.unregister(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go conn.writeLoop(ctx)

	s.readLoop(ctx, ws, conn)
}

func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, conn *Conn) {
	for {
		_, frame, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				s.logger.Debug("WebSocket closed by surface")
			} else if ctx.Err() == nil {
				s.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			s.logger.Warn("Dropping malformed envelope", "error", err)
			continue
		}

		// Events carry ordering semantics (last writer wins on merge), so
		// they run in read order. Requests are independent and correlated
		// by id, so they may overlap.
		if env.RequestID == "" {
			s.mux.Dispatch(ctx, env)
			continue
		}
		go func(env Envelope) {
			if reply, ok := s.mux.Dispatch(ctx, env); ok {
				conn.send(reply)
			}
		}(env)
	}
}
