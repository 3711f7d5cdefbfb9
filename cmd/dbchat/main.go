// Binary dbchat is a conversational front-end for a streaming database
// schema backend: describe data requirements in chat, watch explanatory text
// and generated SQL stream back, and execute the SQL against a Supabase
// project when you are ready.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitop-dev/dbchat/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "dbchat",
	Short:         "Chat with a database schema agent",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")
}

// loadConfig loads the config file and sets up logging. Commands call this
// instead of doing it in PersistentPreRun so `dbchat help` works without a
// config file.
func loadConfig() (*config.File, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dbchat: %v\n", err)
		os.Exit(1)
	}
}
