package llm

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini client. BaseURL is only set in tests.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Gemini streams replies from Google's Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig, logger zerolog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, errors.Wrap(err, "gemini: create client")
	}
	return &Gemini{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.With().Str("c", "gemini").Logger(),
	}, nil
}

func (g *Gemini) Model() string {
	return g.model
}

// Stream forwards text increments. A stream that ends without a finish
// reason was cut off and reports io.ErrUnexpectedEOF.
func (g *Gemini) Stream(ctx context.Context, system string, history []Message) (<-chan string, <-chan error) {
	contentCh := make(chan string, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(contentCh)
		defer close(errCh)

		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		var cfg *genai.GenerateContentConfig
		if system != "" {
			cfg = &genai.GenerateContentConfig{SystemInstruction: genai.NewContentFromText(system, genai.RoleUser)}
		}
		start := time.Now()
		finished := false
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, toGeminiContents(history), cfg) {
			if err != nil {
				errCh <- errors.Wrap(err, "gemini: stream")
				return
			}
			if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
				finished = true
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case contentCh <- text:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if err := ctx.Err(); err != nil {
			errCh <- errors.Wrap(err, "gemini: stream")
			return
		}
		if !finished {
			errCh <- errors.Wrap(io.ErrUnexpectedEOF, "gemini: stream")
			return
		}
		g.logger.Debug().Dur("took", time.Since(start)).Msg("stream completed")
	}()

	return contentCh, errCh
}

func toGeminiContents(history []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		}
	}
	return contents
}
