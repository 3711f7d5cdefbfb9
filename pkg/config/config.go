// Package config loads the dbchat YAML config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// File is the YAML structure of the dbchat config file.
type File struct {
	// BackendURL is the base URL of the chat backend.
	BackendURL string `yaml:"backend_url"`

	// Token is the bearer token for the backend. Can be a literal value or
	// "${ENV_VAR}" to read from the environment.
	Token string `yaml:"token"`

	// Supabase holds the SQL execution target.
	Supabase SupabaseConfig `yaml:"supabase"`

	// HistoryDir overrides where chat transcripts are logged locally
	// (default: ~/.config/dbchat/history).
	HistoryDir string `yaml:"history_dir"`

	// LogLevel: "debug" | "info" | "warn" | "error". Default: "info".
	LogLevel string `yaml:"log_level"`
}

// SupabaseConfig identifies the project SQL is executed against.
type SupabaseConfig struct {
	// ProjectRef is the Supabase project reference ID.
	ProjectRef string `yaml:"project_ref"`

	// AccessToken is the Management API personal access token. Supports
	// "${ENV_VAR}" like Token.
	AccessToken string `yaml:"access_token"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dbchat", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dbchat", "config.yaml")
}

// Load reads and parses a YAML config file, expanding ${ENV_VAR} references
// in string values.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	// Expand environment variables in the raw YAML before parsing.
	expanded := os.ExpandEnv(string(data))

	var cfg File
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *File) error {
	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
	if cfg.BackendURL == "" {
		return fmt.Errorf("config: backend_url is required")
	}
	if cfg.Token == "" {
		return fmt.Errorf("config: token is required")
	}
	return nil
}
