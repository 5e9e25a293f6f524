package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI streams chat completions over server-sent events.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewOpenAI(cfg OpenAIConfig, logger zerolog.Logger) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &OpenAI{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		// Stream applies the timeout to the whole reply, body included.
		httpClient: &http.Client{},
		logger:     logger.With().Str("c", "openai").Logger(),
	}
}

func (c *OpenAI) Model() string {
	return c.model
}

type openAIRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Stream sends the conversation with stream=true and forwards content deltas.
func (c *OpenAI) Stream(ctx context.Context, system string, history []Message) (<-chan string, <-chan error) {
	contentCh := make(chan string, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(contentCh)
		defer close(errCh)

		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		if c.apiKey == "" {
			errCh <- errors.New("openai: API key not configured")
			return
		}

		messages := make([]Message, 0, len(history)+1)
		if strings.TrimSpace(system) != "" {
			messages = append(messages, Message{Role: RoleSystem, Content: system})
		}
		messages = append(messages, history...)

		payload, err := json.Marshal(openAIRequest{Model: c.model, Messages: messages, Stream: true})
		if err != nil {
			errCh <- errors.Wrap(err, "openai: marshal request")
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			errCh <- errors.Wrap(err, "openai: build request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "text/event-stream")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			errCh <- errors.Wrap(err, "openai: request failed")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			errCh <- errors.Errorf("openai: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				c.logger.Debug().Dur("took", time.Since(start)).Msg("stream completed")
				return
			}
			var chunk openAIChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				errCh <- errors.Errorf("openai: %s", chunk.Error.Message)
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case contentCh <- chunk.Choices[0].Delta.Content:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if err := ctx.Err(); err != nil {
			errCh <- errors.Wrap(err, "openai: stream")
			return
		}
		if err := scanner.Err(); err != nil {
			errCh <- errors.Wrap(err, "openai: read stream")
			return
		}
		// Stream ended without [DONE]: the connection dropped mid-reply.
		errCh <- io.ErrUnexpectedEOF
	}()

	return contentCh, errCh
}
