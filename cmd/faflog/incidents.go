package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dann1kid/faf-ddos-incidents/internal/analysis"
	"github.com/dann1kid/faf-ddos-incidents/internal/pipeline"
	"github.com/dann1kid/faf-ddos-incidents/internal/store"
)

var (
	attackType   string
	ppsPeak      int64
	targetIP     string
	attackStart  string
	ddosOnly     bool
	listLimit    int
	detailFormat string
)

var markDDoSCmd = &cobra.Command{
	Use:   "mark-ddos <match uid>",
	Short: "Record a DDoS attack on a match",
	Long: `Flag a match as attacked and record an incident. The attacked address,
the peak packet rate and the attack start are optional.

Examples:
  faflog mark-ddos 25997214
  faflog mark-ddos 25997214 --type tcp_syn --pps 120000 --target-ip 77.51.212.234`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := parseUID(args[0])
		if err != nil {
			return err
		}
		inc := store.Incident{AttackType: attackType, TargetIP: targetIP}
		if cmd.Flags().Changed("pps") {
			inc.PacketsPerSecondPeak = &ppsPeak
		}
		if attackStart != "" {
			start, err := time.Parse(time.RFC3339, attackStart)
			if err != nil {
				return fmt.Errorf("invalid --start %q: want RFC 3339", attackStart)
			}
			inc.Start = start
		}
		return runWithPipeline(cmd, func(ctx context.Context, _ *pipeline.Pipeline, st store.Store) error {
			row, err := st.MarkDDoS(ctx, uid, inc)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "match %d marked as DDoS (incident #%d)\n", uid, row.ID)
			return err
		})
	},
}

var unmarkDDoSCmd = &cobra.Command{
	Use:   "unmark-ddos <match uid>",
	Short: "Clear the DDoS flag of a match and delete its incidents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := parseUID(args[0])
		if err != nil {
			return err
		}
		return runWithPipeline(cmd, func(ctx context.Context, _ *pipeline.Pipeline, st store.Store) error {
			n, err := st.UnmarkDDoS(ctx, uid)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "match %d unmarked (%d incidents deleted)\n", uid, n)
			return err
		})
	},
}

var listMatchesCmd = &cobra.Command{
	Use:   "list-matches",
	Short: "List stored matches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !validFormats[detailFormat] {
			return fmt.Errorf("unknown format: %s", detailFormat)
		}
		return runWithPipeline(cmd, func(ctx context.Context, _ *pipeline.Pipeline, st store.Store) error {
			matches, err := analysis.New(st.DB()).ListMatches(ctx, ddosOnly, listLimit)
			if err != nil {
				return err
			}
			return output(detailFormat, matches, cmd, func() error {
				return analysis.RenderMatches(cmd.OutOrStdout(), matches)
			})
		})
	},
}

var reportMatchCmd = &cobra.Command{
	Use:   "report-match <match uid>",
	Short: "Show the players and addresses of one match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !validFormats[detailFormat] {
			return fmt.Errorf("unknown format: %s", detailFormat)
		}
		uid, err := parseUID(args[0])
		if err != nil {
			return err
		}
		return runWithPipeline(cmd, func(ctx context.Context, _ *pipeline.Pipeline, st store.Store) error {
			d, err := analysis.New(st.DB()).MatchReport(ctx, uid)
			if err != nil {
				return err
			}
			return output(detailFormat, d, cmd, func() error {
				return analysis.RenderMatch(cmd.OutOrStdout(), d)
			})
		})
	},
}

var reportIPCmd = &cobra.Command{
	Use:   "report-ip <address>",
	Short: "Show the players and matches behind one address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !validFormats[detailFormat] {
			return fmt.Errorf("unknown format: %s", detailFormat)
		}
		return runWithPipeline(cmd, func(ctx context.Context, _ *pipeline.Pipeline, st store.Store) error {
			d, err := analysis.New(st.DB()).IPReport(ctx, args[0])
			if err != nil {
				return err
			}
			return output(detailFormat, d, cmd, func() error {
				return analysis.RenderIP(cmd.OutOrStdout(), d)
			})
		})
	},
}

var scorePlayersCmd = &cobra.Command{
	Use:   "score-players",
	Short: "Recompute player risk scores from recorded incidents",
	Long: `Score every player against the recorded DDoS incidents and store the result.
Players that took part in attacked matches or were seen behind an attacked
address score higher; older incidents weigh less.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !validFormats[detailFormat] {
			return fmt.Errorf("unknown format: %s", detailFormat)
		}
		return runWithPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline, _ store.Store) error {
			scores, err := p.ScoreRisk(ctx, time.Now())
			if err != nil {
				return err
			}
			if listLimit > 0 && len(scores) > listLimit {
				scores = scores[:listLimit]
			}
			return output(detailFormat, scores, cmd, func() error {
				return analysis.RenderRiskScores(cmd.OutOrStdout(), scores)
			})
		})
	},
}

// output writes v as JSON or runs pretty.
func output(format string, v any, cmd *cobra.Command, pretty func() error) error {
	if format == "json" {
		return outputJSON(v, cmd.OutOrStdout())
	}
	return pretty()
}

func init() {
	markDDoSCmd.Flags().StringVar(&attackType, "type", store.AttackUDPFlood,
		"attack type: "+strings.Join(store.AttackTypes, ", "))
	markDDoSCmd.Flags().Int64Var(&ppsPeak, "pps", 0, "peak packets per second")
	markDDoSCmd.Flags().StringVar(&targetIP, "target-ip", "", "attacked address")
	markDDoSCmd.Flags().StringVar(&attackStart, "start", "", "attack start, RFC 3339 (default now)")
	_ = markDDoSCmd.RegisterFlagCompletionFunc("type", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return store.AttackTypes, cobra.ShellCompDirectiveNoFileComp
	})

	listMatchesCmd.Flags().BoolVar(&ddosOnly, "ddos", false, "only matches marked as DDoS")
	for _, cmd := range []*cobra.Command{listMatchesCmd, scorePlayersCmd} {
		cmd.Flags().IntVar(&listLimit, "limit", 0, "maximum rows, 0 for all")
	}
	for _, cmd := range []*cobra.Command{listMatchesCmd, reportMatchCmd, reportIPCmd, scorePlayersCmd} {
		cmd.Flags().StringVarP(&detailFormat, "format", "f", "pretty", "Output format: pretty, json")
	}

	rootCmd.AddCommand(markDDoSCmd, unmarkDDoSCmd, listMatchesCmd, reportMatchCmd, reportIPCmd, scorePlayersCmd)
}
