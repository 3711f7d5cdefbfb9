package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitop-dev/dbchat/pkg/auth"
	"github.com/bitop-dev/dbchat/pkg/chats"
	"github.com/bitop-dev/dbchat/pkg/supabase"
)

func init() {
	execCmd.Flags().String("chat", "", "chat ID whose latest SQL to run (required unless --file)")
	execCmd.Flags().String("file", "", "run SQL from a file instead of a chat")
	execCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(execCmd)
}

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Execute generated SQL against the configured Supabase project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Supabase.ProjectRef == "" || cfg.Supabase.AccessToken == "" {
			return fmt.Errorf("supabase.project_ref and supabase.access_token must be configured")
		}

		var query string
		switch {
		case cmd.Flags().Changed("file"):
			path, _ := cmd.Flags().GetString("file")
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			query = string(data)

		case cmd.Flags().Changed("chat"):
			id, _ := cmd.Flags().GetString("chat")
			client := chats.New(cfg.BackendURL, auth.Static(cfg.Token))
			chat, err := client.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if chat.LatestSQL == nil || strings.TrimSpace(*chat.LatestSQL) == "" {
				return fmt.Errorf("chat %s has no SQL to execute", short(id))
			}
			query = *chat.LatestSQL

		default:
			return fmt.Errorf("one of --chat or --file is required")
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			fmt.Println(query)
			fmt.Printf("Run this against project %s? [y/N] ", cfg.Supabase.ProjectRef)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		res, err := supabase.New("").ExecuteSQL(cmd.Context(),
			cfg.Supabase.ProjectRef, cfg.Supabase.AccessToken, query)
		if err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("execution failed: %s", res.Message)
		}
		fmt.Println(res.Message)
		return nil
	},
}
