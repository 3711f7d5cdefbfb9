package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bitop-dev/dbchat/pkg/history"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd)
}

func historyDir() string {
	// History listing should work even without a backend config.
	if cfg, err := loadConfig(); err == nil && cfg.HistoryDir != "" {
		return cfg.HistoryDir
	}
	return history.DefaultDir()
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse local chat transcripts",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded transcripts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := history.List(historyDir())
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No transcripts found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHAT\tMSGS\tCREATED\tFIRST MESSAGE")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				short(info.ChatID), info.MessageCount,
				info.Created.Format("2006-01-02 15:04"),
				truncate(info.FirstMessage, 50))
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <chat-id-prefix>",
	Short: "Print one transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msgs, err := history.Load(historyDir(), args[0])
		if err != nil {
			return err
		}
		for _, m := range msgs {
			fmt.Printf("[%s] %s\n%s\n\n", m.Timestamp, m.Role, m.Text)
		}
		return nil
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
