package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dann1kid/faf-ddos-incidents/internal/model"
	"github.com/dann1kid/faf-ddos-incidents/internal/pipeline"
	"github.com/dann1kid/faf-ddos-incidents/internal/store"
)

var (
	force   bool
	reparse bool
	format  string
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or update the database schema",
	Long: `Create the database file and its tables, or add missing tables and columns
to an existing database. With --force every table is dropped first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline, _ store.Store) error {
			if force {
				if err := p.ResetStorage(ctx); err != nil {
					return err
				}
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "database ready: %s\n", cfg.Database.Path)
			return err
		})
	},
}

var loadGameLogsCmd = &cobra.Command{
	Use:   "load-game-logs",
	Short: "Ingest game session logs",
	Long: `Parse every game_<match uid>.log in the logs directory and merge players,
participations and addresses into the database. Files whose modification time
has not changed since they were last committed are skipped unless --reparse
is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, model.CategoryGame)
	},
}

var loadClientLogsCmd = &cobra.Command{
	Use:   "load-client-logs",
	Short: "Ingest client logs",
	Long: `Parse every client.log.<date>.<seq>.log in the logs directory, appending
connection events and ICE candidate addresses. --reparse replaces the events
previously stored for each file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, model.CategoryClient)
	},
}

var rebuildAllCmd = &cobra.Command{
	Use:   "rebuild-all",
	Short: "Drop all data and ingest every log again",
	Long: `Drop every table, operator data included, and ingest all game and client
logs again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !validFormats[format] {
			return fmt.Errorf("unknown format: %s", format)
		}
		return runWithPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline, _ store.Store) error {
			sums, err := p.Rebuild(ctx)
			if outErr := OutputSummaries(format, sums, cmd.OutOrStdout()); outErr != nil {
				return outErr
			}
			return err
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print row counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !validFormats[format] {
			return fmt.Errorf("unknown format: %s", format)
		}
		return runWithPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline, _ store.Store) error {
			st, err := p.Status(ctx)
			if err != nil {
				return err
			}
			return OutputStatus(format, st, cmd.OutOrStdout())
		})
	},
}

func init() {
	initDBCmd.Flags().BoolVar(&force, "force", false, "drop all tables before creating them")

	for _, cmd := range []*cobra.Command{loadGameLogsCmd, loadClientLogsCmd} {
		cmd.Flags().BoolVar(&reparse, "reparse", false, "parse files again even if unchanged")
	}
	for _, cmd := range []*cobra.Command{loadGameLogsCmd, loadClientLogsCmd, rebuildAllCmd, statusCmd} {
		cmd.Flags().StringVarP(&format, "format", "f", "pretty", "Output format: pretty, json")
	}

	rootCmd.AddCommand(initDBCmd, loadGameLogsCmd, loadClientLogsCmd, rebuildAllCmd, statusCmd)
}

func runIngest(cmd *cobra.Command, category model.Category) error {
	if !validFormats[format] {
		return fmt.Errorf("unknown format: %s", format)
	}
	return runWithPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline, _ store.Store) error {
		sums, err := p.Ingest(ctx, category, reparse)
		if outErr := OutputSummaries(format, sums, cmd.OutOrStdout()); outErr != nil {
			return outErr
		}
		return err
	})
}
