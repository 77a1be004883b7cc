package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rendis/certflow/internal/expressions"
	"github.com/rendis/certflow/pkg/schema"
)

// Config holds the CLI and server configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	DBPath     string `json:"db_path"`
	LogLevel   string `json:"log_level"`
	IssueLimit int    `json:"issue_limit"`
	Engine     string `json:"engine"`
	LocaleFile string `json:"locale_file"`
}

func defaultConfig() Config {
	return Config{
		DBPath:     filepath.Join(certflowDir(), "certflow.db"),
		LogLevel:   "warn",
		IssueLimit: schema.DefaultIssueLimit,
		Engine:     expressions.EngineExpr,
	}
}

func certflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".certflow"
	}
	return filepath.Join(home, ".certflow")
}

func settingsPath() string {
	return filepath.Join(certflowDir(), "settings.json")
}

func loadConfig() Config {
	return loadConfigFrom(settingsPath(), os.Getenv)
}

func loadConfigFrom(path string, getenv func(string) string) Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := getenv("CERTFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("CERTFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("CERTFLOW_ISSUE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IssueLimit = n
		}
	}
	if v := getenv("CERTFLOW_ENGINE"); v != "" {
		cfg.Engine = v
	}
	if v := getenv("CERTFLOW_LOCALE_FILE"); v != "" {
		cfg.LocaleFile = v
	}

	return cfg
}

// applyFlags overrides fields whose persistent flag was set on this invocation.
func (c *Config) applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("db-path") {
		c.DBPath, _ = flags.GetString("db-path")
	}
	if flags.Changed("log-level") {
		c.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("issue-limit") {
		c.IssueLimit, _ = flags.GetInt("issue-limit")
	}
	if flags.Changed("engine") {
		c.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("locale-file") {
		c.LocaleFile, _ = flags.GetString("locale-file")
	}
}

// writeSettings persists cfg as the settings.json layer.
func writeSettings(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
