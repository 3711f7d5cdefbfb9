package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bitop-dev/dbchat/pkg/auth"
	"github.com/bitop-dev/dbchat/pkg/chats"
	"github.com/bitop-dev/dbchat/pkg/convo"
	"github.com/bitop-dev/dbchat/pkg/history"
	"github.com/bitop-dev/dbchat/pkg/sqlblock"
	"github.com/bitop-dev/dbchat/pkg/sqlfmt"
	"github.com/bitop-dev/dbchat/pkg/stream"
)

func init() {
	chatCmd.Flags().String("chat", "", "chat ID to resume (default: create a new chat)")
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive schema chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tokens := auth.Static(cfg.Token)
		chatClient := chats.New(cfg.BackendURL, tokens)
		streamClient := stream.New(cfg.BackendURL, tokens)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		// Resume or create the chat record.
		var chat *chats.Chat
		if id, _ := cmd.Flags().GetString("chat"); id != "" {
			chat, err = chatClient.Get(ctx, id)
		} else {
			chat, err = chatClient.Create(ctx)
		}
		if err != nil {
			return err
		}

		conv := convo.New(chat.ID)
		if chat.LatestSQL != nil {
			conv.SetSQL(*chat.LatestSQL)
		}
		conv.OnRollover = func(newChatID string) {
			fmt.Printf("\n[chat] context cap reached, continuing in new chat %s\n", short(newChatID))
			list, active, err := chatClient.Refresh(context.Background(), newChatID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[warn] chat list refresh: %v\n", err)
				return
			}
			if active != nil && active.LatestSQL != nil {
				conv.SetSQL(*active.LatestSQL)
			}
			fmt.Printf("[chat] %d chats total\n", len(list))
		}

		historyDir := cfg.HistoryDir
		if historyDir == "" {
			historyDir = history.DefaultDir()
		}
		hist, err := history.Create(historyDir, chat.ID)
		if err != nil {
			// Non-fatal: chatting works without a local transcript.
			fmt.Fprintf(os.Stderr, "[warn] could not create transcript log: %v\n", err)
			hist = nil
		}
		if hist != nil {
			defer hist.Close()
		}

		fmt.Printf("[chat] %s. Type a request and press enter. Commands: /sql /context /new exit\n", short(chat.ID))

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				return nil
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			switch strings.ToLower(line) {
			case "exit", "quit":
				return nil
			case "/sql":
				if sql := conv.SQL(); sql == "" {
					fmt.Println("[no SQL yet]")
				} else {
					fmt.Println(sql)
				}
				continue
			case "/context":
				u := conv.Usage()
				fmt.Printf("[context] %d/%d chars (%d%%)\n", u.UsedChars, u.CapChars, u.UsagePct)
				continue
			case "/new":
				chat, err = chatClient.Create(ctx)
				if err != nil {
					fmt.Fprintf(os.Stderr, "new chat: %v\n", err)
					continue
				}
				conv = convo.New(chat.ID)
				fmt.Printf("[chat] switched to %s\n", short(chat.ID))
				continue
			}

			send(ctx, streamClient, conv, hist, line)

			if ctx.Err() != nil {
				return nil
			}
		}
	},
}

// send runs one streaming exchange: user line in, rendered events out.
func send(ctx context.Context, client *stream.Client, conv *convo.Conversation, hist *history.Log, line string) {
	conv.AddUserMessage(line)
	if hist != nil {
		hist.Append("user", line)
	}

	events, wait := client.Stream(ctx, stream.SendRequest{
		Message: line,
		ChatID:  conv.ChatID(),
	})

	sqlUpdated := false
	for ev := range events {
		conv.Apply(ev)
		switch ev.Tag {
		case stream.TagDelta:
			if ev.Payload.TextDelta != nil {
				fmt.Print(*ev.Payload.TextDelta)
			}
		case stream.TagTool:
			if ev.Payload.Name != nil && ev.Payload.Status != nil {
				fmt.Printf("\n[tool] %s: %s\n", *ev.Payload.Name, *ev.Payload.Status)
			}
		case stream.TagSQL:
			sqlUpdated = true
		case stream.TagDone:
			sqlUpdated = true
			// Some deployments stream finalText with the SQL still fenced
			// instead of a separate finalSql field; recover it locally.
			if ev.Payload.FinalSQL == nil && ev.Payload.FinalText != nil {
				if sql := sqlblock.Extract(*ev.Payload.FinalText); sql != "" {
					conv.SetSQL(sqlfmt.Format(sqlblock.MergePatch(conv.SQL(), sql)))
				}
			}
		case stream.TagError:
			msgs := conv.Messages()
			fmt.Printf("\n[error] %s\n", msgs[len(msgs)-1].Text)
		}
	}

	if err := wait(); err != nil {
		if ctx.Err() != nil {
			return
		}
		notice := fmt.Sprintf("The request failed: %v", err)
		conv.AppendNotice(notice)
		fmt.Printf("\n[error] %s\n", notice)
		return
	}

	fmt.Println()
	if sqlUpdated {
		fmt.Println("--- SQL ---")
		fmt.Println(conv.SQL())
		fmt.Println("-----------")
	}
	u := conv.Usage()
	if u.CapChars > 0 {
		fmt.Printf("[context] %d%% used\n", u.UsagePct)
	}

	if hist != nil {
		msgs := conv.Messages()
		if len(msgs) > 0 && msgs[len(msgs)-1].Role == convo.RoleAssistant {
			hist.Append("assistant", sqlblock.Strip(msgs[len(msgs)-1].Text))
		}
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
