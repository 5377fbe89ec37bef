package ws

import (
	"context"

	"go.uber.org/zap"

	"github.com/saker-ai/chiku/internal/protocol"
)

type incomingHandler func(context.Context, protocol.CommandRequest)

func (s *session) dispatchIncoming(ctx context.Context, msg protocol.CommandRequest) {
	handlers := map[string]incomingHandler{
		protocol.TypeCommand:      s.onCommand,
		"":                        s.onCommand,
		protocol.TypeListCommands: s.onListCommands,
		protocol.TypeHeartbeat:    s.onNoop,
	}

	if handler, ok := handlers[msg.Type]; ok {
		handler(ctx, msg)
		return
	}
	s.logger.Debug("ws unknown message type",
		zap.String("session_id", s.id),
		zap.String("type", msg.Type),
	)
	s.sendJSON(errorFrame{Type: "error", RequestID: msg.RequestID, Message: "unknown message type"})
}

// onCommand resolves in the background so a slow provider does not block
// later frames. Replies are matched by request_id, not by order.
func (s *session) onCommand(ctx context.Context, msg protocol.CommandRequest) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		result := s.resolver.Resolve(ctx, msg.MediaRequest())
		if ctx.Err() != nil {
			return
		}
		status, body := protocol.NewCommandResponse(result)
		s.sendJSON(protocol.CommandResult{
			Type:            protocol.TypeCommand,
			RequestID:       msg.RequestID,
			Status:          status,
			CommandResponse: body,
		})
	}()
}

func (s *session) onListCommands(_ context.Context, _ protocol.CommandRequest) {
	s.sendJSON(protocol.NewCommandList())
}

func (s *session) onNoop(_ context.Context, _ protocol.CommandRequest) {}
