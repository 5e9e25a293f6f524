// Package llm relays chat conversations to a hosted language model and
// exposes the reply as a stream of text increments.
package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront/internal/config"
)

// Roles used in chat history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider streams a completion for a conversation. The content channel is
// closed when the reply ends; the error channel receives at most one error
// and is closed afterwards.
type Provider interface {
	Stream(ctx context.Context, system string, history []Message) (<-chan string, <-chan error)
	Model() string
}

// New selects the configured provider.
func New(cfg config.ChatConfig, logger zerolog.Logger) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return NewOpenAI(OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		}, logger), nil
	case "gemini":
		return NewGemini(context.Background(), GeminiConfig{
			APIKey:  cfg.GeminiKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.Timeout,
		}, logger)
	default:
		return nil, errors.Errorf("unknown chat provider %q", cfg.Provider)
	}
}
