package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
logs_dir: /var/faf/logs
database:
  path: /var/faf/faf.db
  max_open_conns: 2
patterns:
  file: /etc/faflog/patterns.yaml
ingest:
  parse_workers: 4
report:
  min_occurrences: 3
  min_players: 4
  include_private: true
  limit: 50
`,
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "/var/faf/logs", cfg.LogsDir)
				assert.Equal(t, "/var/faf/faf.db", cfg.Database.Path)
				assert.Equal(t, 2, cfg.Database.MaxOpenConns)
				assert.Equal(t, "/etc/faflog/patterns.yaml", cfg.Patterns.File)
				assert.Equal(t, 4, cfg.Ingest.ParseWorkers)
				assert.Equal(t, 3, cfg.Report.MinOccurrences)
				assert.Equal(t, 4, cfg.Report.MinPlayers)
				assert.True(t, cfg.Report.IncludePrivate)
				assert.Equal(t, 50, cfg.Report.Limit)
			},
		},
		{
			name:       "config with defaults",
			configFile: "debug: false\n",
			validate: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Debug)
				assert.Equal(t, "logs", cfg.LogsDir)
				assert.Equal(t, "faf_logs.db", cfg.Database.Path)
				assert.Equal(t, 1, cfg.Database.MaxOpenConns)
				assert.Empty(t, cfg.Patterns.File)
				assert.Equal(t, 1, cfg.Ingest.ParseWorkers)
				assert.Equal(t, 2, cfg.Report.MinOccurrences)
				assert.Equal(t, 2, cfg.Report.MinPlayers)
				assert.Equal(t, 20, cfg.Report.Limit)
			},
		},
		{
			name:       "missing config file",
			configFile: "",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "faf_logs.db", cfg.Database.Path)
			},
		},
		{
			name:        "invalid value",
			configFile:  "ingest:\n  parse_workers: many\n",
			expectError: true,
		},
		{
			name:        "out of range",
			configFile:  "ingest:\n  parse_workers: 0\n",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			var configFile string

			if tt.configFile != "" {
				configFile = filepath.Join(tmpDir, "config.yaml")
				require.NoError(t, os.WriteFile(configFile, []byte(tt.configFile), 0600))
			} else {
				configFile = filepath.Join(tmpDir, "nonexistent.yaml")
			}

			cfg, err := Load(configFile, tmpDir)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	envDir := filepath.Join(tmpDir, "env")
	require.NoError(t, os.MkdirAll(envDir, 0750))

	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env"), []byte(
		"FAFLOG_DATABASE_PATH=/from/env.db\nFAFLOG_REPORT_LIMIT=5\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env.local"), []byte(
		"FAFLOG_REPORT_LIMIT=7\n"), 0600))

	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("database:\n  path: /from/file.db\nlogs_dir: /from/file\n"), 0600))

	// godotenv.Overload sets real environment variables
	t.Cleanup(func() {
		os.Unsetenv("FAFLOG_DATABASE_PATH")
		os.Unsetenv("FAFLOG_REPORT_LIMIT")
	})

	cfg, err := Load(configPath, envDir)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.db", cfg.Database.Path)
	assert.Equal(t, 7, cfg.Report.Limit)
	assert.Equal(t, "/from/file", cfg.LogsDir)
}

func TestLoad_EnvWithoutConfigFile(t *testing.T) {
	t.Setenv("FAFLOG_INGEST_PARSE_WORKERS", "3")
	t.Setenv("FAFLOG_DEBUG", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Ingest.ParseWorkers)
	assert.True(t, cfg.Debug)
}
