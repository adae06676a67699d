package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "splcat.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
max_results: 100
timeout: 5s
strict_functions: true
format: csv
log_level: debug
lookups:
  hosts: lookups/hosts.csv
  codes: /abs/codes.jsonl
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 100, cfg.MaxResults)
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.True(t, cfg.StrictFunctions)
	require.Equal(t, "csv", cfg.Format)
	require.Equal(t, "auto", cfg.InputFormat)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, filepath.Join(filepath.Dir(path), "lookups", "hosts.csv"), cfg.Lookups["hosts"])
	require.Equal(t, "/abs/codes.jsonl", cfg.Lookups["codes"])
}

func TestLoad_EmptyFileGivesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "max_rows: 5\n", "max_rows"},
		{"bad duration", "timeout: soon\n", "invalid config"},
		{"negative max", "max_results: -1\n", "max_results must be non-negative"},
		{"bad level", "log_level: loud\n", "unknown log_level"},
		{"empty lookup path", "lookups:\n  hosts: \"\"\n", "lookup hosts has no path"},
		{"not yaml", "max_results: [1\n", "invalid config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLevelFilter(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "WARNING", "error", "none", ""} {
		t.Run(name, func(t *testing.T) {
			opt, err := Config{LogLevel: name}.LevelFilter()
			require.NoError(t, err)
			require.NotNil(t, opt)
		})
	}

	_, err := Config{LogLevel: "trace"}.LevelFilter()
	require.Error(t, err)
}
