package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfigFrom_Defaults(t *testing.T) {
	cfg := loadConfigFrom(filepath.Join(t.TempDir(), "missing.json"), envMap(nil))
	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, 5, cfg.IssueLimit)
	assert.Equal(t, "expr", cfg.Engine)
}

func TestLoadConfigFrom_Layers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"db_path":"/data/cf.db","log_level":"info","issue_limit":9}`), 0o644))

	cfg := loadConfigFrom(path, envMap(map[string]string{
		"CERTFLOW_LOG_LEVEL":   "debug",
		"CERTFLOW_ENGINE":      "cel",
		"CERTFLOW_ISSUE_LIMIT": "not-a-number",
		"CERTFLOW_LOCALE_FILE": "/etc/certflow/zh.yaml",
	}))

	assert.Equal(t, "/data/cf.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9, cfg.IssueLimit)
	assert.Equal(t, "cel", cfg.Engine)
	assert.Equal(t, "/etc/certflow/zh.yaml", cfg.LocaleFile)
}

func TestLoadConfigFrom_MalformedSettingsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	cfg := loadConfigFrom(path, envMap(map[string]string{"CERTFLOW_ISSUE_LIMIT": "0"}))
	assert.Equal(t, 0, cfg.IssueLimit)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestWriteSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	want := Config{DBPath: "/tmp/x.db", LogLevel: "error", IssueLimit: 3, Engine: "cel"}
	require.NoError(t, writeSettings(path, want))

	got := loadConfigFrom(path, envMap(nil))
	assert.Equal(t, want, got)
}
