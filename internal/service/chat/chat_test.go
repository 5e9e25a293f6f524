package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"storefront/internal/domain"
	"storefront/internal/gateway/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubProvider streams fixed deltas, then err. If gate is set each delta
// waits for a receive on it.
type stubProvider struct {
	deltas []string
	err    error
	gate   chan struct{}

	mu      sync.Mutex
	history []llm.Message
	system  string
}

func (p *stubProvider) Model() string { return "stub-model" }

func (p *stubProvider) Stream(ctx context.Context, system string, history []llm.Message) (<-chan string, <-chan error) {
	p.mu.Lock()
	p.system = system
	p.history = append([]llm.Message(nil), history...)
	p.mu.Unlock()

	content := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(content)
		for _, d := range p.deltas {
			if p.gate != nil {
				select {
				case <-p.gate:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			select {
			case content <- d:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if p.err != nil {
			errs <- p.err
		}
	}()
	return content, errs
}

type stubLogs struct {
	mu     sync.Mutex
	logs   []domain.ChatLog
	err    error
	ctxErr error
}

func (s *stubLogs) CreateChatLog(ctx context.Context, log domain.ChatLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxErr = ctx.Err()
	s.logs = append(s.logs, log)
	return s.err
}

type counter struct{ n int }

func (c *counter) Inc() { c.n++ }

func TestReplyStreamsAndLogs(t *testing.T) {
	provider := &stubProvider{deltas: []string{"Take ", "two ", "daily."}}
	logs := &stubLogs{}
	done, failed := &counter{}, &counter{}
	svc := New(provider, logs, zerolog.Nop()).WithCounters(done, failed)

	var got []string
	reply, err := svc.Reply(context.Background(), "s1", []llm.Message{
		{Role: llm.RoleSystem, Content: "ignore me"},
		{Role: llm.RoleUser, Content: " How many? "},
	}, func(d string) { got = append(got, d) })

	require.NoError(t, err)
	assert.Equal(t, "Take two daily.", reply)
	assert.Equal(t, []string{"Take ", "two ", "daily."}, got)
	assert.Equal(t, SystemPrompt, provider.system)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "How many?"}}, provider.history)

	require.Len(t, logs.logs, 1)
	assert.Equal(t, domain.ChatLog{SessionID: "s1", Message: "How many?", Reply: "Take two daily.", Model: "stub-model"}, logs.logs[0])
	assert.Equal(t, 1, done.n)
	assert.Equal(t, 0, failed.n)
}

func TestReplyLogsAfterClientCancel(t *testing.T) {
	logs := &stubLogs{}
	svc := New(&stubProvider{deltas: []string{"ok"}}, logs, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Reply(ctx, "s1", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, func(string) { cancel() })

	require.NoError(t, err)
	require.Len(t, logs.logs, 1)
	assert.NoError(t, logs.ctxErr)
}

func TestReplyLogFailureIsNotSurfaced(t *testing.T) {
	svc := New(&stubProvider{deltas: []string{"ok"}}, &stubLogs{err: errors.New("cms down")}, zerolog.Nop())

	reply, err := svc.Reply(context.Background(), "s1", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestReplyProviderFailure(t *testing.T) {
	logs := &stubLogs{}
	failed := &counter{}
	svc := New(&stubProvider{deltas: []string{"par"}, err: errors.New("reset")}, logs, zerolog.Nop()).WithCounters(&counter{}, failed)

	reply, err := svc.Reply(context.Background(), "s1", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)

	require.Error(t, err)
	assert.Equal(t, "par", reply)
	assert.Empty(t, logs.logs)
	assert.Equal(t, 1, failed.n)
}

func TestReplyRejectsBadHistory(t *testing.T) {
	svc := New(&stubProvider{}, nil, zerolog.Nop())

	_, err := svc.Reply(context.Background(), "s", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyConversation)

	_, err = svc.Reply(context.Background(), "s", []llm.Message{{Role: llm.RoleUser, Content: "hi"}, {Role: llm.RoleAssistant, Content: "hello"}}, nil)
	assert.ErrorIs(t, err, ErrEmptyConversation)

	_, err = svc.Reply(context.Background(), "s", []llm.Message{{Role: llm.RoleUser, Content: strings.Repeat("x", maxMessageLength+1)}}, nil)
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestReplyTrimsLongHistory(t *testing.T) {
	provider := &stubProvider{deltas: []string{"ok"}}
	svc := New(provider, nil, zerolog.Nop())

	var history []llm.Message
	for i := 0; i < maxHistory+5; i++ {
		history = append(history, llm.Message{Role: llm.RoleAssistant, Content: "a"}, llm.Message{Role: llm.RoleUser, Content: "u"})
	}
	_, err := svc.Reply(context.Background(), "s", history, nil)

	require.NoError(t, err)
	assert.Len(t, provider.history, maxHistory)
	assert.Equal(t, llm.RoleUser, provider.history[maxHistory-1].Role)
}

func TestConversationAppendsIncrements(t *testing.T) {
	conv := NewConversation(New(&stubProvider{deltas: []string{"Hel", "lo"}}, nil, zerolog.Nop()), "s1")

	var seen []string
	require.NoError(t, conv.Send(context.Background(), "hi", func(d string) { seen = append(seen, d) }))

	assert.Equal(t, []string{"Hel", "lo"}, seen)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "Hello"},
	}, conv.Messages())
	assert.False(t, conv.Busy())
}

func TestConversationRejectsSecondSendWhileStreaming(t *testing.T) {
	gate := make(chan struct{})
	conv := NewConversation(New(&stubProvider{deltas: []string{"a", "b"}, gate: gate}, nil, zerolog.Nop()), "s1")

	errc := make(chan error, 1)
	go func() { errc <- conv.Send(context.Background(), "first", nil) }()

	gate <- struct{}{}
	require.Eventually(t, func() bool {
		msgs := conv.Messages()
		return len(msgs) == 2 && msgs[1].Content == "a"
	}, time.Second, 5*time.Millisecond)

	assert.True(t, conv.Busy())
	assert.ErrorIs(t, conv.Send(context.Background(), "second", nil), ErrBusy)

	gate <- struct{}{}
	require.NoError(t, <-errc)
	assert.False(t, conv.Busy())
	assert.Len(t, conv.Messages(), 2)
}

func TestConversationInterrupted(t *testing.T) {
	t.Run("partial reply", func(t *testing.T) {
		conv := NewConversation(New(&stubProvider{deltas: []string{"par"}, err: errors.New("reset")}, nil, zerolog.Nop()), "s1")

		require.Error(t, conv.Send(context.Background(), "hi", nil))

		msgs := conv.Messages()
		require.Len(t, msgs, 3)
		assert.Equal(t, "par", msgs[1].Content)
		assert.Equal(t, InterruptedMessage, msgs[2].Content)
		assert.False(t, conv.Busy())
	})

	t.Run("no output", func(t *testing.T) {
		conv := NewConversation(New(&stubProvider{err: errors.New("refused")}, nil, zerolog.Nop()), "s1")

		require.Error(t, conv.Send(context.Background(), "hi", nil))

		msgs := conv.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: InterruptedMessage}, msgs[1])
	})

	t.Run("ready for next message", func(t *testing.T) {
		provider := &stubProvider{err: errors.New("refused")}
		conv := NewConversation(New(provider, nil, zerolog.Nop()), "s1")
		require.Error(t, conv.Send(context.Background(), "hi", nil))

		provider.err = nil
		provider.deltas = []string{"back"}
		require.NoError(t, conv.Send(context.Background(), "again", nil))

		msgs := conv.Messages()
		assert.Equal(t, "back", msgs[len(msgs)-1].Content)
	})
}

func TestConversationRejectsBlankInput(t *testing.T) {
	conv := NewConversation(New(&stubProvider{}, nil, zerolog.Nop()), "s1")

	assert.ErrorIs(t, conv.Send(context.Background(), "   ", nil), ErrEmptyConversation)
	assert.Empty(t, conv.Messages())
}
