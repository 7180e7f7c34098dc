package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campuscircle/campuscircle-go/messaging"
	"github.com/campuscircle/campuscircle-go/shared/otel"
)

// chatCmd creates the interactive direct-message command.
func chatCmd() *cobra.Command {
	var trace bool

	cmd := &cobra.Command{
		Use:   "chat <username>",
		Short: "Interactive direct-message session with another user",
		Long: `Open a live conversation with another user.
Messages are delivered over the realtime channel when connected and always
persisted through the REST API.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := args[0]
			if cfg.Username == "" {
				return fmt.Errorf("username required: set CAMPUSCIRCLE_USERNAME or pass --user")
			}

			ctx := context.Background()

			var traceWriter io.Writer
			if trace {
				traceWriter = os.Stderr
			}
			shutdown, err := otel.Init(otel.Config{
				ServiceName: "campuscircle-cli",
				Environment: "local",
				Writer:      traceWriter,
			})
			if err != nil {
				return err
			}
			defer shutdown(ctx)

			if err := rtClient.Connect(ctx, cfg.Username); err != nil {
				fmt.Fprintf(os.Stderr, "realtime channel unavailable, falling back to REST only: %v\n", err)
			}
			defer rtClient.Disconnect()

			session := messaging.NewSession(rtClient, restClient, messaging.SessionOptions{
				Identity: cfg.Username,
				Peer:     peer,
			})
			session.Open(ctx)
			defer session.Close()

			for _, m := range session.Messages() {
				printMessage(cfg.Username, m)
			}

			rtClient.OnConnectionChange("cli-chat", func(connected bool) {
				if connected {
					fmt.Println("* realtime channel connected")
				} else {
					fmt.Println("* realtime channel lost, messages go via REST")
				}
			})
			defer rtClient.OffConnectionChange("cli-chat")

			fmt.Printf("Chatting with %s. Type a message and press Enter; 'exit' to quit.\n", peer)
			fmt.Println(strings.Repeat("-", 60))

			scanner := bufio.NewScanner(os.Stdin)
			seen := len(session.Messages())

			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "exit" || line == "quit" {
					break
				}
				if line == "" {
					continue
				}

				if _, err := session.Send(ctx, line); err != nil {
					fmt.Fprintf(os.Stderr, "send failed (kept locally): %v\n", err)
				}

				msgs := session.Messages()
				for _, m := range msgs[seen:] {
					if m.Sender != cfg.Username {
						printMessage(cfg.Username, m)
					}
				}
				seen = len(msgs)

				if session.PeerTyping() {
					fmt.Printf("%s is typing...\n", peer)
				}
			}

			return scanner.Err()
		},
	}

	cmd.Flags().BoolVar(&trace, "trace", false, "export trace spans to stderr")
	return cmd
}

func printMessage(self string, m messaging.Message) {
	who := m.Sender
	if m.Sender == self {
		who = "you"
	}
	suffix := ""
	switch m.Delivery {
	case messaging.DeliveryPending:
		suffix = " (sending)"
	case messaging.DeliveryFailed:
		suffix = " (failed)"
	}
	fmt.Printf("[%s] %s: %s%s\n", m.Timestamp.Local().Format("15:04"), who, m.Text, suffix)
}
