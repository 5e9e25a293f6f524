package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"storefront/internal/gateway/llm"
	"storefront/internal/service/chat"
)

type chatRequest struct {
	SessionID string        `json:"sessionId"`
	Messages  []llm.Message `json:"messages"`
}

// chat relays the assistant's reply as server-sent events: one "message"
// event per increment, then "done", or "error" if the provider fails.
func (h *handlers) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = requestID(c)
	}

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}
	emit := func(delta string) {
		start()
		c.SSEvent("message", gin.H{"text": delta})
		c.Writer.Flush()
	}

	_, err := h.deps.Chat.Reply(c.Request.Context(), sessionID, req.Messages, emit)
	if err != nil {
		if !started && (errors.Is(err, chat.ErrEmptyConversation) || errors.Is(err, chat.ErrMessageTooLong)) {
			respondError(c, err)
			return
		}
		_ = c.Error(err)
		start()
		c.SSEvent("error", gin.H{"message": chat.InterruptedMessage})
		c.Writer.Flush()
		return
	}
	start()
	c.SSEvent("done", gin.H{})
	c.Writer.Flush()
}
