package chikuclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/chiku/internal/media"
	"github.com/saker-ai/chiku/internal/protocol"
)

// ErrStreamClosed is returned for requests on a closed stream.
var ErrStreamClosed = errors.New("chiku stream closed")

// Stream resolves commands over the /ws channel. Several requests may be in
// flight; replies can arrive in any order.
type Stream struct {
	conn    *websocket.Conn
	logger  *zap.Logger
	writeMu sync.Mutex

	mu      sync.Mutex
	waiters map[string]chan protocol.CommandResult
	closed  bool
	done    chan struct{}
}

// Dial opens a stream to the backend named by cfg.BaseURL.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Stream, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	wsURL, err := streamURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	if cfg.UserAgent != "" {
		headers.Set("User-Agent", cfg.UserAgent)
	}

	dialer := websocket.Dialer{HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, err
	}
	s := &Stream{
		conn:    conn,
		logger:  logger,
		waiters: make(map[string]chan protocol.CommandResult),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	logger.Info("chiku stream connected", zap.String("url", wsURL))
	return s, nil
}

// Resolve sends req and waits for its reply or for ctx.
func (s *Stream) Resolve(ctx context.Context, req media.Request) media.Result {
	id := uuid.NewString()
	ch := make(chan protocol.CommandResult, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return media.ServerError()
	}
	s.waiters[id] = ch
	s.mu.Unlock()
	defer s.forget(id)

	frame := protocol.NewCommandRequest(req)
	frame.Type = protocol.TypeCommand
	frame.RequestID = id
	if err := s.send(frame); err != nil {
		s.logger.Warn("chiku stream write failed", zap.String("request_id", id), zap.Error(err))
		return media.ServerError()
	}

	select {
	case reply := <-ch:
		kind, subType := expectation(req.Command)
		return reply.CommandResponse.Result(kind, subType, reply.Status)
	case <-s.done:
		return media.ServerError()
	case <-ctx.Done():
		return media.ServerError()
	}
}

// Close ends the stream. Waiting requests fail with a server error.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}

func (s *Stream) send(payload any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(payload)
}

func (s *Stream) readLoop() {
	defer close(s.done)
	for {
		var reply protocol.CommandResult
		if err := s.conn.ReadJSON(&reply); err != nil {
			s.mu.Lock()
			closed := s.closed
			s.closed = true
			s.mu.Unlock()
			if !closed {
				s.logger.Warn("chiku stream lost", zap.Error(err))
			}
			return
		}
		if reply.Type != protocol.TypeCommand || reply.RequestID == "" {
			s.logger.Debug("chiku stream frame ignored",
				zap.String("type", reply.Type),
				zap.String("request_id", reply.RequestID),
			)
			continue
		}
		s.mu.Lock()
		ch, ok := s.waiters[reply.RequestID]
		s.mu.Unlock()
		if ok {
			select {
			case ch <- reply:
			default:
			}
		}
	}
}

func (s *Stream) forget(id string) {
	s.mu.Lock()
	delete(s.waiters, id)
	s.mu.Unlock()
}

func streamURL(base string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws", nil
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws", nil
	case strings.HasPrefix(base, "ws://"), strings.HasPrefix(base, "wss://"):
		if strings.HasSuffix(base, "/ws") {
			return base, nil
		}
		return base + "/ws", nil
	default:
		return "", errors.New("chiku backend url must be http(s) or ws(s)")
	}
}
