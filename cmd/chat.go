package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/mrady9280/asfoor/internal/model"
)

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Chat with the assistant from the terminal",
		Flags: append(globalFlags(),
			&cli.StringFlag{
				Name:  "user",
				Usage: "Memory owner for this session (defaults to the configured user)",
			},
			&cli.StringFlag{
				Name:  "effort",
				Usage: "Reasoning effort: minimal, low, medium, or high",
				Value: "medium",
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			a, _, err := boot(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			conversationID := uuid.NewString()
			threadState := ""

			fmt.Println("Asfoor. Type a message, or /quit to exit.")
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					fmt.Println()
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch {
				case line == "":
					continue
				case line == "/quit", line == "/exit":
					return nil
				case line == "/new":
					conversationID = uuid.NewString()
					threadState = ""
					fmt.Println("Started a new conversation.")
					continue
				}

				resp, err := a.Chat.ProcessChatTurn(ctx, &model.ChatRequest{
					Message:         line,
					ConversationID:  conversationID,
					ThreadState:     threadState,
					ReasoningEffort: c.String("effort"),
					UserID:          c.String("user"),
				})
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				threadState = resp.ThreadState

				fmt.Println()
				fmt.Println(resp.Answer)
				fmt.Println()
				fmt.Println(resp.Usage.String())
			}
		},
	}
}
