package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func conversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List your direct-message conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			summaries, err := restClient.ListMyConversations(ctx, cfg.Username)
			if err != nil {
				return fmt.Errorf("failed to list conversations: %w", err)
			}

			if len(summaries) == 0 {
				fmt.Println("No conversations yet.")
				return nil
			}

			for _, s := range summaries {
				unread := ""
				if s.UnreadCount > 0 {
					unread = fmt.Sprintf(" (%d unread)", s.UnreadCount)
				}
				fmt.Printf("%-20s %s  %s%s\n",
					s.Peer,
					s.LastMessageTime.Local().Format("Jan 02 15:04"),
					s.LastMessage,
					unread,
				)
			}
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <username> <message>",
		Short: "Send a direct message via REST",
		Long: `Send a single message to a user. Works without the realtime channel;
the recipient sees it on their next refresh.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			recipient := args[0]
			text := ""
			for i, a := range args[1:] {
				if i > 0 {
					text += " "
				}
				text += a
			}

			conv, err := restClient.SendMessageToUser(ctx, recipient, text)
			if err != nil {
				return fmt.Errorf("failed to send: %w", err)
			}
			fmt.Printf("Sent to %s (conversation %s)\n", recipient, conv.ID)
			return nil
		},
	}
}
