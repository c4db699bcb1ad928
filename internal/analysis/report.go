package analysis

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// ReportOptions tunes SuspectReport. Zero thresholds fall back to 2; a
// Limit of 0 keeps every row.
type ReportOptions struct {
	MinMatches     int
	MinPlayers     int
	IncludePrivate bool
	Limit          int
}

func (o ReportOptions) withDefaults() ReportOptions {
	if o.MinMatches <= 0 {
		o.MinMatches = 2
	}
	if o.MinPlayers <= 0 {
		o.MinPlayers = 2
	}
	if o.Limit < 0 {
		o.Limit = 0
	}
	return o
}

// Report is the combined suspect report.
type Report struct {
	GeneratedAt      time.Time         `json:"generated_at"`
	MinMatches       int               `json:"min_matches"`
	MinPlayers       int               `json:"min_players"`
	RecurringPlayers []RecurringPlayer `json:"recurring_players"`
	SharedIPs        []SharedIP        `json:"shared_ips"`
	Overlaps         []Overlap         `json:"player_ip_overlaps"`
}

// SuspectReport runs every query with the given thresholds.
func (a *Analyzer) SuspectReport(ctx context.Context, opts ReportOptions) (*Report, error) {
	opts = opts.withDefaults()

	recurring, err := a.RecurringPlayers(ctx, opts.MinMatches)
	if err != nil {
		return nil, err
	}
	shared, err := a.SharedIPs(ctx, opts.MinPlayers, opts.IncludePrivate)
	if err != nil {
		return nil, err
	}
	overlaps, err := a.PlayerIPMatchOverlap(ctx, opts.MinMatches, opts.IncludePrivate)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:      time.Now().UTC(),
		MinMatches:       opts.MinMatches,
		MinPlayers:       opts.MinPlayers,
		RecurringPlayers: limit(recurring, opts.Limit),
		SharedIPs:        limit(shared, opts.Limit),
		Overlaps:         limit(overlaps, opts.Limit),
	}, nil
}

func limit[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

var rule = strings.Repeat("=", 72)

// Render writes r as plain text.
func Render(w io.Writer, r *Report) error {
	b := &strings.Builder{}

	fmt.Fprintln(b, rule)
	fmt.Fprintln(b, "SUSPECT REPORT")
	fmt.Fprintln(b, rule)
	fmt.Fprintf(b, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(b, "RECURRING PLAYERS (>= %d matches)\n", r.MinMatches)
	if len(r.RecurringPlayers) == 0 {
		fmt.Fprintln(b, "  (none)")
	}
	for _, p := range r.RecurringPlayers {
		mark := " "
		if p.IsSuspect {
			mark = "!"
		}
		notes := "(none)"
		if p.Notes != nil && *p.Notes != "" {
			notes = *p.Notes
		}
		fmt.Fprintf(b, "%s #%-9d %-20s %3d matches  notes: %s\n", mark, p.UID, p.Nickname, p.MatchCount, notes)
	}

	fmt.Fprintf(b, "\nSHARED IPS (>= %d players)\n", r.MinPlayers)
	if len(r.SharedIPs) == 0 {
		fmt.Fprintln(b, "  (none)")
	}
	for _, ip := range r.SharedIPs {
		kind := ip.Kind
		if ip.IsPrivate {
			kind = "private"
		}
		fmt.Fprintf(b, "  %-39s %-18s %d players\n", ip.Address, "("+kind+")", len(ip.Players))
		for _, p := range ip.Players {
			fmt.Fprintf(b, "      -> #%-9d %s\n", p.UID, p.Nickname)
		}
	}

	fmt.Fprintln(b, "\nPLAYER + IP ACROSS MATCHES")
	if len(r.Overlaps) == 0 {
		fmt.Fprintln(b, "  (none)")
	}
	for _, o := range r.Overlaps {
		fmt.Fprintf(b, "  #%-9d %-20s <- %-39s %d matches\n", o.Player.UID, o.Player.Nickname, o.Address, o.MatchCount())
		for _, m := range o.Matches {
			if m.Title != "" {
				fmt.Fprintf(b, "      match #%d: %s\n", m.UID, m.Title)
			} else {
				fmt.Fprintf(b, "      match #%d\n", m.UID)
			}
		}
	}
	fmt.Fprintln(b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "n/a"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// RenderMatches writes the match list as a table.
func RenderMatches(w io.Writer, matches []MatchSummary) error {
	b := &strings.Builder{}
	fmt.Fprintf(b, "%-10s %-7s %-5s %-9s %-16s %s\n", "MATCH", "PLAYERS", "DDOS", "INCIDENTS", "STARTED", "TITLE")
	if len(matches) == 0 {
		fmt.Fprintln(b, "(none)")
	}
	for _, m := range matches {
		ddos := "no"
		if m.DDoSDetected {
			ddos = "yes"
		}
		fmt.Fprintf(b, "%-10d %-7d %-5s %-9d %-16s %s\n", m.UID, m.PlayerCount, ddos, m.Incidents, formatTime(m.StartedAt), m.Title)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderIncidents(b *strings.Builder, incidents []Incident) {
	if len(incidents) == 0 {
		fmt.Fprintln(b, "  (none)")
	}
	for _, inc := range incidents {
		line := fmt.Sprintf("  #%-5d match #%d %-10s at %s", inc.ID, inc.MatchUID, inc.AttackType, formatTime(&inc.DetectedAt))
		if inc.TargetIP != nil {
			line += " target " + *inc.TargetIP
		}
		if inc.PPSPeak != nil {
			line += fmt.Sprintf(" peak %d pps", *inc.PPSPeak)
		}
		fmt.Fprintln(b, line)
	}
}

// RenderMatch writes the per-match report as plain text.
func RenderMatch(w io.Writer, d *MatchDetail) error {
	b := &strings.Builder{}
	fmt.Fprintln(b, rule)
	fmt.Fprintf(b, "MATCH %d", d.UID)
	if d.Title != "" {
		fmt.Fprintf(b, " %s", d.Title)
	}
	fmt.Fprintln(b)
	fmt.Fprintln(b, rule)
	fmt.Fprintf(b, "Map: %s  Started: %s\n", orNA(d.MapName), formatTime(d.StartedAt))
	if d.DDoSDetected {
		fmt.Fprintf(b, "DDoS: yes, since %s\n", formatTime(d.DDoSStart))
	} else {
		fmt.Fprintln(b, "DDoS: no")
	}

	fmt.Fprintf(b, "\nPLAYERS (%d)\n", len(d.Players))
	if len(d.Players) == 0 {
		fmt.Fprintln(b, "  (none)")
	}
	for _, p := range d.Players {
		mark := " "
		if p.IsSuspect {
			mark = "!"
		}
		addrs := make([]string, 0, len(p.Addresses))
		for _, a := range p.Addresses {
			addrs = append(addrs, a.Address)
		}
		ips := "(no ip)"
		if len(addrs) > 0 {
			ips = strings.Join(addrs, ", ")
		}
		fmt.Fprintf(b, "%s #%-9d %-20s %-8s risk %.2f  %s\n", mark, p.UID, p.Nickname, p.Role, p.RiskScore, ips)
	}

	fmt.Fprintln(b, "\nINCIDENTS")
	renderIncidents(b, d.IncidentList)
	fmt.Fprintln(b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderIP writes the per-address report as plain text.
func RenderIP(w io.Writer, d *IPDetail) error {
	b := &strings.Builder{}
	kind := d.Kind
	if d.IsPrivate {
		kind = "private"
	}
	fmt.Fprintln(b, rule)
	fmt.Fprintf(b, "ADDRESS %s (%s)\n", d.Address.Address, kind)
	fmt.Fprintln(b, rule)
	fmt.Fprintf(b, "Seen: %s .. %s\n", formatTime(&d.FirstSeen), formatTime(&d.LastSeen))

	fmt.Fprintf(b, "\nPLAYERS (%d)\n", len(d.Players))
	if len(d.Players) == 0 {
		fmt.Fprintln(b, "  (none)")
	}
	for _, p := range d.Players {
		fmt.Fprintf(b, "  #%-9d %-20s %-8s %s\n", p.UID, p.Nickname, p.Provenance, formatTime(&p.FirstSeen))
	}

	fmt.Fprintf(b, "\nMATCHES (%d)\n", len(d.Matches))
	if len(d.Matches) == 0 {
		fmt.Fprintln(b, "  (none)")
	}
	for _, m := range d.Matches {
		mark := " "
		if m.DDoSDetected {
			mark = "!"
		}
		fmt.Fprintf(b, "%s match #%-10d player #%-9d %s\n", mark, m.UID, m.PlayerUID, m.Title)
	}

	fmt.Fprintln(b, "\nINCIDENTS TARGETING THIS ADDRESS")
	renderIncidents(b, d.Incidents)
	fmt.Fprintln(b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderRiskScores writes player risk scores as a table.
func RenderRiskScores(w io.Writer, scores []RiskScore) error {
	b := &strings.Builder{}
	fmt.Fprintf(b, "%-10s %-20s %-6s %-8s %s\n", "PLAYER", "NICKNAME", "SCORE", "ATTACKED", "TARGETED")
	if len(scores) == 0 {
		fmt.Fprintln(b, "(none)")
	}
	for _, s := range scores {
		fmt.Fprintf(b, "%-10d %-20s %-6.2f %-8d %d\n", s.UID, s.Nickname, s.Score, s.AttackedMatches, s.TargetHits)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
