package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"storefront/internal/gateway/llm"
	"storefront/internal/gateway/sanity"
	"storefront/internal/logging"
	"storefront/internal/service/chat"
)

func newChatCmd(rt *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the shopping assistant from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := llm.New(rt.cfg.Chat, logging.Component(rt.logger, "llm"))
			if err != nil {
				return err
			}
			logs := sanity.New(rt.cfg.Sanity, logging.Component(rt.logger, "sanity"))
			svc := chat.New(provider, logs, logging.Component(rt.logger, "chat"))

			conv := chat.NewConversation(svc, "cli-"+uuid.NewString())
			return chatLoop(cmd, conv)
		},
	}
}

// chatLoop reads one message per line until EOF or "exit".
func chatLoop(cmd *cobra.Command, conv *chat.Conversation) error {
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())

	fmt.Fprintln(out, "Ask about our supplements. Type exit to quit.")
	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			fmt.Fprintln(out)
			return in.Err()
		}
		text := strings.TrimSpace(in.Text())
		switch text {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		err := conv.Send(cmd.Context(), text, func(delta string) {
			io.WriteString(out, delta)
		})
		fmt.Fprintln(out)
		if err != nil {
			if cmd.Context().Err() != nil {
				return nil
			}
			fmt.Fprintln(out, chat.InterruptedMessage)
		}
	}
}
