// Package config loads the tool configuration from a YAML file, .env files
// and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. FAFLOG_DATABASE_PATH.
const EnvPrefix = "FAFLOG"

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path         string `mapstructure:"path"`           // SQLite database file
	MaxOpenConns int    `mapstructure:"max_open_conns"` // Maximum number of open connections to the database
}

// PatternsConfig holds line pattern configuration
type PatternsConfig struct {
	// File replaces the built-in patterns when set
	File string `mapstructure:"file"`
}

// IngestConfig holds ingestion configuration
type IngestConfig struct {
	ParseWorkers int `mapstructure:"parse_workers"` // Files parsed concurrently; commits stay sequential
}

// ReportConfig holds suspect report defaults
type ReportConfig struct {
	MinOccurrences int  `mapstructure:"min_occurrences"`
	MinPlayers     int  `mapstructure:"min_players"`
	IncludePrivate bool `mapstructure:"include_private"`
	Limit          int  `mapstructure:"limit"`
}

// Config holds the command line tool configuration
type Config struct {
	Debug    bool           `mapstructure:"debug"`
	LogsDir  string         `mapstructure:"logs_dir"`
	Database DatabaseConfig `mapstructure:"database"`
	Patterns PatternsConfig `mapstructure:"patterns"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Report   ReportConfig   `mapstructure:"report"`
}

var keys = []string{
	"debug",
	"logs_dir",
	"database.path",
	"database.max_open_conns",
	"patterns.file",
	"ingest.parse_workers",
	"report.min_occurrences",
	"report.min_players",
	"report.include_private",
	"report.limit",
}

// Load loads configuration from configFile (or config.yaml in the usual
// locations), the .env files in envPath and FAFLOG_* environment variables.
// A missing config file is not an error.
func Load(configFile string, envPath string) (*Config, error) {
	v := configureViper(configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("logs_dir", "logs")
	v.SetDefault("database.path", "faf_logs.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("patterns.file", "")
	v.SetDefault("ingest.parse_workers", 1)
	v.SetDefault("report.min_occurrences", 2)
	v.SetDefault("report.min_players", 2)
	v.SetDefault("report.include_private", false)
	v.SetDefault("report.limit", 20)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if c.Ingest.ParseWorkers < 1 {
		return fmt.Errorf("ingest.parse_workers must be at least 1, got %d", c.Ingest.ParseWorkers)
	}
	if c.Report.MinOccurrences < 1 {
		return fmt.Errorf("report.min_occurrences must be at least 1, got %d", c.Report.MinOccurrences)
	}
	if c.Report.MinPlayers < 1 {
		return fmt.Errorf("report.min_players must be at least 1, got %d", c.Report.MinPlayers)
	}
	if c.Report.Limit < 0 {
		return fmt.Errorf("report.limit must not be negative, got %d", c.Report.Limit)
	}
	return nil
}

func configureViper(configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env vars for keys viper knows about
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	return v
}

// loadEnv loads .env then .env.local from envPath, later files overriding earlier ones
func loadEnv(envPath string) {
	if envPath == "" {
		envPath = "config/"
	}
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Overload(filepath.Join(envPath, envFile))
	}
}
