// Command faflog ingests FAF game and client logs into a SQLite database and
// reports accounts that share addresses or keep meeting in the same matches.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dann1kid/faf-ddos-incidents/internal/config"
	"github.com/dann1kid/faf-ddos-incidents/internal/logger"
	"github.com/dann1kid/faf-ddos-incidents/internal/pipeline"
	"github.com/dann1kid/faf-ddos-incidents/internal/store"
)

var (
	// global flags
	configFile string
	envDir     string
	logsDir    string
	dbPath     string
	debug      bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "faflog",
	Short: "Ingest FAF logs and report suspicious account overlap",
	Long: `faflog parses Forged Alliance Forever game session logs (game_<uid>.log)
and client logs (client.log.<date>.<seq>.log) into a SQLite database of
players, matches, IP addresses and connection events, and reports accounts
that share addresses or recur across matches.

Configuration is read from config.yaml (or --config), .env files in
--env-dir and FAFLOG_* environment variables. Flags override all of them.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envDir, "env-dir", "config/", "directory holding .env and .env.local")
	rootCmd.PersistentFlags().StringVarP(&logsDir, "logs-dir", "d", "", "directory holding game_*.log and client.log.* files")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "v", false, "enable debug logging")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == completionCmd.Name() {
		return nil
	}

	c, err := config.Load(configFile, envDir)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("logs-dir") {
		c.LogsDir = logsDir
	}
	if flags.Changed("db") {
		c.Database.Path = dbPath
	}
	if flags.Changed("debug") {
		c.Debug = debug
	}
	cfg = c

	if err := logger.Initialize(logger.Config{
		Debug:  cfg.Debug,
		Fields: []zap.Field{zap.String("app", "faflog")},
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// runWithPipeline opens the configured store, migrates it and runs fn with a
// context canceled on SIGINT or SIGTERM.
func runWithPipeline(cmd *cobra.Command, fn func(ctx context.Context, p *pipeline.Pipeline, st store.Store) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Default()
	st, err := store.Open(ctx, store.Config{
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, log.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close()

	lib, err := pipeline.LoadLibrary(cfg.Patterns.File)
	if err != nil {
		return fmt.Errorf("failed to load patterns: %w", err)
	}
	p, err := pipeline.New(cfg, st, lib, log)
	if err != nil {
		return err
	}
	if err := p.InitStorage(ctx); err != nil {
		return err
	}
	return fn(ctx, p, st)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
