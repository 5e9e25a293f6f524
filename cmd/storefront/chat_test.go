package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/gateway/llm"
	"storefront/internal/service/chat"
)

type scriptedReplier struct {
	replies []string
	err     error
	seen    [][]llm.Message
}

func (s *scriptedReplier) Reply(_ context.Context, _ string, history []llm.Message, emit func(string)) (string, error) {
	s.seen = append(s.seen, history)
	if s.err != nil {
		return "", s.err
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	emit(r)
	return r, nil
}

func runChat(t *testing.T, r chat.Replier, input string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)

	require.NoError(t, chatLoop(cmd, chat.NewConversation(r, "cli-test")))
	return out.String()
}

func TestChatLoopKeepsHistory(t *testing.T) {
	r := &scriptedReplier{replies: []string{"Try Sleep Support.", "Take it an hour before bed."}}

	out := runChat(t, r, "I can't sleep\n\nwhen should I take it?\nexit\n")

	assert.Contains(t, out, "Try Sleep Support.")
	assert.Contains(t, out, "Take it an hour before bed.")
	require.Len(t, r.seen, 2)
	assert.Len(t, r.seen[1], 3)
}

func TestChatLoopReportsInterruption(t *testing.T) {
	out := runChat(t, &scriptedReplier{err: errors.New("provider down")}, "hello\n")

	assert.Contains(t, out, chat.InterruptedMessage)
}
