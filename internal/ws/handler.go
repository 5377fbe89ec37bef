package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/chiku/internal/media"
	"github.com/saker-ai/chiku/internal/protocol"
)

// Handler serves the live command channel.
type Handler struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	resolver media.Resolver
	sessions map[string]*session
	mu       sync.Mutex
}

type session struct {
	id       string
	conn     *websocket.Conn
	sendMu   sync.Mutex
	logger   *zap.Logger
	resolver media.Resolver
	inflight sync.WaitGroup
}

type errorFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message"`
}

// NewHandler builds a websocket handler resolving commands with resolver.
func NewHandler(logger *zap.Logger, resolver media.Resolver) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		logger:   logger,
		resolver: resolver,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades the request and serves frames until the peer disconnects.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := &session{
		id:       uuid.NewString(),
		conn:     conn,
		logger:   h.logger,
		resolver: h.resolver,
	}
	sess.logger.Info("ws session opened",
		zap.String("session_id", sess.id),
		zap.String("remote_addr", r.RemoteAddr),
	)
	h.registerSession(sess)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			sess.logger.Debug("ws connection closed", zap.Error(err))
			break
		}
		var msg protocol.CommandRequest
		if err := json.Unmarshal(data, &msg); err != nil {
			sess.sendJSON(errorFrame{Type: "error", Message: "invalid json"})
			continue
		}
		if msg.Type != protocol.TypeHeartbeat {
			sess.logger.Debug("ws incoming message",
				zap.String("session_id", sess.id),
				zap.String("type", msg.Type),
				zap.String("command", msg.Command),
			)
		}
		sess.dispatchIncoming(ctx, msg)
	}

	cancel()
	sess.inflight.Wait()
	sess.logger.Info("ws session closed", zap.String("session_id", sess.id))
	h.unregisterSession(sess.id)
}

// SessionCount reports the number of open websocket sessions.
func (h *Handler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (s *session) sendJSON(payload any) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.conn.WriteJSON(payload); err != nil {
		s.logger.Debug("ws write failed", zap.String("session_id", s.id), zap.Error(err))
	}
}

func (h *Handler) registerSession(sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sess.id] = sess
}

func (h *Handler) unregisterSession(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}
