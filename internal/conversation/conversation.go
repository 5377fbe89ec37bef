// Package conversation keeps the message list of one chat and turns
// submitted text into replies: commands go to a media resolver, plain text
// to an optional responder.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saker-ai/chiku/internal/command"
	"github.com/saker-ai/chiku/internal/media"
)

// Role tells who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status is the delivery state of an assistant message.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

var (
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNotRetryable is returned by Retry for unknown or successful messages.
	ErrNotRetryable = errors.New("message cannot be retried")
)

// Message is one bubble of the conversation.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Status    Status
	Request   *media.Request
	Media     *media.Payload
	Error     string
	Class     media.ErrorClass
	CreatedAt time.Time
}

// Failed reports whether the message shows a retry affordance.
func (m Message) Failed() bool {
	return m.Status == StatusFailed
}

// Responder answers plain chat text.
type Responder interface {
	Reply(ctx context.Context, history []Message, text string) (string, error)
}

// Options configures a Conversation.
type Options struct {
	Resolver  media.Resolver
	Responder Responder
	Greeting  string
	Logger    *zap.Logger
	Now       func() time.Time
}

// Conversation is safe for concurrent use. Replies are resolved outside the
// lock so a slow provider does not block other sends.
type Conversation struct {
	mu        sync.Mutex
	messages  []Message
	resolver  media.Resolver
	responder Responder
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a conversation, opening with the greeting when one is set.
func New(opts Options) *Conversation {
	c := &Conversation{
		resolver:  opts.Resolver,
		responder: opts.Responder,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if greeting := strings.TrimSpace(opts.Greeting); greeting != "" {
		c.messages = append(c.messages, c.newMessage(RoleAssistant, greeting, StatusDone))
	}
	return c
}

// Messages returns a copy of the conversation in order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Get returns the message with id.
func (c *Conversation) Get(id string) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return Message{}, false
	}
	return c.messages[i], true
}

// Send appends the user's text and returns the assistant reply. A nil reply
// means plain text was sent with no responder configured.
func (c *Conversation) Send(ctx context.Context, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	req, isCommand := command.Parse(text)
	if !isCommand && c.responder == nil {
		c.mu.Lock()
		c.messages = append(c.messages, c.newMessage(RoleUser, text, StatusDone))
		c.mu.Unlock()
		return nil, nil
	}

	reply := c.newMessage(RoleAssistant, "", StatusPending)
	if isCommand {
		reply.Request = &req
		reply.Text = caption(req)
	}

	c.mu.Lock()
	c.messages = append(c.messages, c.newMessage(RoleUser, text, StatusDone))
	history := append([]Message(nil), c.messages...)
	c.messages = append(c.messages, reply)
	c.mu.Unlock()

	if isCommand {
		reply = c.complete(reply, c.resolve(ctx, req))
	} else {
		reply = c.answer(ctx, reply, history, text)
	}
	c.store(reply)
	return &reply, nil
}

// Retry re-issues the exact request of a failed command reply. The message
// keeps its id and position.
func (c *Conversation) Retry(ctx context.Context, id string) (*Message, error) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 || !c.messages[i].Failed() || c.messages[i].Request == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotRetryable, id)
	}
	reply := c.messages[i]
	reply.Status = StatusPending
	reply.Error = ""
	reply.Class = 0
	c.messages[i] = reply
	c.mu.Unlock()

	c.logger.Info("retrying command", zap.String("message_id", id), zap.String("command", reply.Request.Command))
	reply = c.complete(reply, c.resolve(ctx, *reply.Request))
	c.store(reply)
	return &reply, nil
}

func (c *Conversation) resolve(ctx context.Context, req media.Request) media.Result {
	if c.resolver == nil {
		return media.ServerError()
	}
	return c.resolver.Resolve(ctx, req)
}

func (c *Conversation) complete(reply Message, result media.Result) Message {
	if payload, ok := result.Payload(); ok {
		reply.Status = StatusDone
		reply.Media = &payload
		return reply
	}
	reply.Status = StatusFailed
	reply.Error = result.Message()
	reply.Class = result.Class()
	c.logger.Warn("command failed",
		zap.String("message_id", reply.ID),
		zap.String("command", reply.Request.Command),
		zap.Stringer("class", result.Class()),
		zap.String("error", result.Message()),
	)
	return reply
}

func (c *Conversation) answer(ctx context.Context, reply Message, history []Message, text string) Message {
	answer, err := c.responder.Reply(ctx, history, text)
	if err != nil {
		c.logger.Warn("responder failed", zap.String("message_id", reply.ID), zap.Error(err))
		reply.Status = StatusFailed
		reply.Error = err.Error()
		reply.Class = media.ClassUpstream
		return reply
	}
	reply.Status = StatusDone
	reply.Text = answer
	return reply
}

func (c *Conversation) store(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(msg.ID); i >= 0 {
		c.messages[i] = msg
	}
}

func (c *Conversation) indexLocked(id string) int {
	for i := range c.messages {
		if c.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Conversation) newMessage(role Role, text string, status Status) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Status:    status,
		CreatedAt: c.now(),
	}
}

func caption(req media.Request) string {
	if req.Argument != "" {
		return req.Argument
	}
	if cmd, ok := command.Lookup(req.Command); ok {
		return cmd.Label
	}
	return req.Command
}
