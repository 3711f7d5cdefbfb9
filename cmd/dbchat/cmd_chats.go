package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bitop-dev/dbchat/pkg/auth"
	"github.com/bitop-dev/dbchat/pkg/chats"
)

func init() {
	rootCmd.AddCommand(chatsCmd)
	chatsCmd.AddCommand(chatsListCmd, chatsNewCmd, chatsShowCmd, chatsDeleteCmd)
}

func chatsClient() (*chats.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return chats.New(cfg.BackendURL, auth.Static(cfg.Token)), nil
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Manage chats",
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all chats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := chatsClient()
		if err != nil {
			return err
		}
		list, err := client.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No chats found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tCONTEXT\tUPDATED")
		for _, c := range list {
			title := "(untitled)"
			if c.Title != nil && *c.Title != "" {
				title = *c.Title
			}
			fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\n",
				short(c.ID), title, c.ContextUsagePct,
				c.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var chatsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := chatsClient()
		if err != nil {
			return err
		}
		chat, err := client.Create(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Created chat %s\n", chat.ID)
		return nil
	},
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a chat's details and latest SQL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := chatsClient()
		if err != nil {
			return err
		}
		chat, err := client.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("id:      %s\n", chat.ID)
		fmt.Printf("updated: %s\n", chat.UpdatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("context: %d/%d chars (%d%%)\n",
			chat.ContextUsedChars, chat.ContextCapChars, chat.ContextUsagePct)
		if chat.LatestSQL != nil && *chat.LatestSQL != "" {
			fmt.Println("--- SQL ---")
			fmt.Println(*chat.LatestSQL)
		}
		return nil
	},
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a chat and its SQL versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := chatsClient()
		if err != nil {
			return err
		}
		if err := client.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Chat %s deleted.\n", short(args[0]))
		return nil
	},
}
