package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"storefront/internal/gateway/llm"
)

// InterruptedMessage is appended when a reply cannot be completed.
const InterruptedMessage = "Sorry, the connection was interrupted. Please try again."

// ErrBusy is returned when a message is sent while a reply is still streaming.
var ErrBusy = errors.New("a reply is already in progress")

// Replier produces a streamed reply for a history.
type Replier interface {
	Reply(ctx context.Context, sessionID string, history []llm.Message, emit func(string)) (string, error)
}

// Conversation is one chat widget: a message history with at most one
// exchange outstanding.
type Conversation struct {
	replier   Replier
	sessionID string

	mu       sync.Mutex
	messages []llm.Message
	busy     bool
}

func NewConversation(replier Replier, sessionID string) *Conversation {
	return &Conversation{replier: replier, sessionID: sessionID}
}

// Send appends text as a user message and streams the reply into a new
// assistant message. onDelta, if set, sees each increment. When the reply
// fails the interrupted message is appended, the conversation returns to idle
// and the error is returned.
func (c *Conversation) Send(ctx context.Context, text string, onDelta func(string)) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyConversation
	}
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.messages = append(c.messages, llm.Message{Role: llm.RoleUser, Content: text})
	history := append([]llm.Message(nil), c.messages...)
	c.messages = append(c.messages, llm.Message{Role: llm.RoleAssistant})
	reply := len(c.messages) - 1
	c.mu.Unlock()

	_, err := c.replier.Reply(ctx, c.sessionID, history, func(delta string) {
		c.mu.Lock()
		c.messages[reply].Content += delta
		c.mu.Unlock()
		if onDelta != nil {
			onDelta(delta)
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		if c.messages[reply].Content == "" {
			c.messages[reply].Content = InterruptedMessage
		} else {
			c.messages = append(c.messages, llm.Message{Role: llm.RoleAssistant, Content: InterruptedMessage})
		}
		return err
	}
	return nil
}

// Busy reports whether a reply is streaming.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Message(nil), c.messages...)
}
