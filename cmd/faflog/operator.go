package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dann1kid/faf-ddos-incidents/internal/pipeline"
	"github.com/dann1kid/faf-ddos-incidents/internal/store"
)

var (
	suspectNotes string
	clearSuspect bool
)

var markSuspectCmd = &cobra.Command{
	Use:   "mark-suspect <uid>",
	Short: "Flag a player as suspect",
	Long: `Flag a player as suspect, optionally with notes. --clear removes the flag
and keeps existing notes unless --notes is also given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := parseUID(args[0])
		if err != nil {
			return err
		}
		var notes *string
		if cmd.Flags().Changed("notes") {
			notes = &suspectNotes
		}
		return runWithPipeline(cmd, func(ctx context.Context, _ *pipeline.Pipeline, st store.Store) error {
			if err := st.MarkSuspect(ctx, uid, !clearSuspect, notes); err != nil {
				return err
			}
			state := "marked"
			if clearSuspect {
				state = "cleared"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "player %d %s\n", uid, state)
			return err
		})
	},
}

var bindIPCmd = &cobra.Command{
	Use:   "bind-ip <uid> <ip>",
	Short: "Record a manual player/address binding",
	Long: `Record that a player was seen behind an address, with MANUAL provenance.
Unknown players are created as placeholders.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := parseUID(args[0])
		if err != nil {
			return err
		}
		return runWithPipeline(cmd, func(ctx context.Context, _ *pipeline.Pipeline, st store.Store) error {
			if err := st.BindManual(ctx, uid, args[1], time.Now()); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "bound player %d to %s\n", uid, args[1])
			return err
		})
	},
}

func init() {
	markSuspectCmd.Flags().StringVar(&suspectNotes, "notes", "", "free text stored with the player")
	markSuspectCmd.Flags().BoolVar(&clearSuspect, "clear", false, "remove the suspect flag")

	rootCmd.AddCommand(markSuspectCmd, bindIPCmd)
}

func parseUID(s string) (int64, error) {
	uid, err := strconv.ParseInt(s, 10, 64)
	if err != nil || uid <= 0 {
		return 0, fmt.Errorf("invalid uid %q: must be a positive integer", s)
	}
	return uid, nil
}
