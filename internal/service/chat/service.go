// Package chat relays shopper questions to the configured model and records
// each exchange.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/gateway/llm"
)

// SystemPrompt frames the assistant for the store.
const SystemPrompt = `You are the shopping assistant for a supplement store.
Answer questions about our products, ingredients, dosage guidance printed on the label, shipping and returns.
Keep answers short and friendly. Do not give medical advice; suggest speaking to a doctor when health conditions come up.`

const (
	maxHistory       = 20
	maxMessageLength = 2000
	logTimeout       = 5 * time.Second
)

var (
	// ErrEmptyConversation is returned when the history has no user message to answer.
	ErrEmptyConversation = errors.New("conversation has no user message")
	// ErrMessageTooLong is returned for oversized user input.
	ErrMessageTooLong = errors.New("message too long")
)

// LogWriter stores chat audit records.
type LogWriter interface {
	CreateChatLog(ctx context.Context, log domain.ChatLog) error
}

// Counter is satisfied by prometheus counters.
type Counter interface {
	Inc()
}

// Service streams one reply per call and logs it once complete.
type Service struct {
	provider  llm.Provider
	logs      LogWriter
	exchanges Counter
	failures  Counter
	logger    zerolog.Logger
}

func New(provider llm.Provider, logs LogWriter, logger zerolog.Logger) *Service {
	return &Service{provider: provider, logs: logs, logger: logger}
}

// WithCounters records completed and failed exchanges.
func (s *Service) WithCounters(exchanges, failures Counter) *Service {
	s.exchanges = exchanges
	s.failures = failures
	return s
}

// Reply streams the model's answer to the last user message in history,
// calling emit for each increment in order. It returns the full reply; on
// failure the text streamed so far is returned with the error.
func (s *Service) Reply(ctx context.Context, sessionID string, history []llm.Message, emit func(string)) (string, error) {
	history, question, err := prepare(history)
	if err != nil {
		return "", err
	}

	content, errs := s.provider.Stream(ctx, SystemPrompt, history)
	var sb strings.Builder
	for delta := range content {
		sb.WriteString(delta)
		if emit != nil {
			emit(delta)
		}
	}
	if err := <-errs; err != nil {
		if s.failures != nil {
			s.failures.Inc()
		}
		s.logger.Warn().Err(err).Str("session", sessionID).Msg("chat stream failed")
		return sb.String(), errors.Wrap(err, "chat stream")
	}

	reply := sb.String()
	if s.exchanges != nil {
		s.exchanges.Inc()
	}
	s.record(ctx, domain.ChatLog{
		SessionID: sessionID,
		Message:   question,
		Reply:     reply,
		Model:     s.provider.Model(),
	})
	return reply, nil
}

// record writes the audit log after the response has been delivered. The
// browser may already be gone, so the request context's cancellation is not
// inherited.
func (s *Service) record(ctx context.Context, entry domain.ChatLog) {
	if s.logs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logTimeout)
	defer cancel()
	if err := s.logs.CreateChatLog(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("session", entry.SessionID).Msg("write chat log")
	}
}

// prepare drops empty and system turns, keeps the most recent turns, and
// returns the question being answered.
func prepare(history []llm.Message) ([]llm.Message, string, error) {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case llm.RoleUser, llm.RoleAssistant:
			out = append(out, llm.Message{Role: m.Role, Content: content})
		}
	}
	if len(out) == 0 || out[len(out)-1].Role != llm.RoleUser {
		return nil, "", ErrEmptyConversation
	}
	question := out[len(out)-1].Content
	if len(question) > maxMessageLength {
		return nil, "", ErrMessageTooLong
	}
	if len(out) > maxHistory {
		out = out[len(out)-maxHistory:]
	}
	return out, question, nil
}
