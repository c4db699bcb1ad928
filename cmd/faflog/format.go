package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dann1kid/faf-ddos-incidents/internal/analysis"
	"github.com/dann1kid/faf-ddos-incidents/internal/model"
	"github.com/dann1kid/faf-ddos-incidents/internal/pipeline"
	"github.com/dann1kid/faf-ddos-incidents/internal/store"
)

// validFormats lists all valid output formats.
var validFormats = map[string]bool{
	"pretty": true,
	"json":   true,
}

func outputJSON(v any, out io.Writer) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// summaryJSON carries the error text that CommitSummary leaves out.
type summaryJSON struct {
	store.CommitSummary
	Error string `json:"error,omitempty"`
}

// OutputSummaries writes per-file ingestion results followed by the totals.
func OutputSummaries(format string, sums []store.CommitSummary, out io.Writer) error {
	totals := pipeline.Tally(sums)

	switch format {
	case "json":
		files := make([]summaryJSON, 0, len(sums))
		for _, s := range sums {
			sj := summaryJSON{CommitSummary: s}
			if s.Err != nil {
				sj.Error = s.Err.Error()
			}
			files = append(files, sj)
		}
		return outputJSON(struct {
			Files  []summaryJSON   `json:"files"`
			Totals pipeline.Totals `json:"totals"`
		}{files, totals}, out)
	case "pretty":
		for _, s := range sums {
			if _, err := fmt.Fprintln(out, formatSummary(s)); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(out, "%d parsed, %d skipped, %d failed\n", totals.Parsed, totals.Skipped, totals.Failed)
		return err
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// formatSummary renders one file's result on a single line.
func formatSummary(s store.CommitSummary) string {
	name := filepath.Base(s.Path)
	switch {
	case s.Skipped && s.Err != nil:
		return fmt.Sprintf("skip  %s: %v", name, s.Err)
	case s.Skipped:
		return fmt.Sprintf("skip  %s: unchanged", name)
	case s.Err != nil:
		return fmt.Sprintf("FAIL  %s: %v", name, s.Err)
	}

	line := fmt.Sprintf("ok    %s: players +%d ~%d, ips +%d, bindings +%d",
		name, s.Players.Created, s.Players.Updated, s.IPs.Created, s.Bindings.Created)
	if s.Category == model.CategoryClient {
		line += fmt.Sprintf(", events %d", s.EventsAppended)
		if s.EventsReplaced > 0 {
			line += fmt.Sprintf(" (replaced %d)", s.EventsReplaced)
		}
	} else {
		line += fmt.Sprintf(", participations +%d", s.Participations.Created)
	}
	if s.Dropped > 0 {
		line += fmt.Sprintf(", dropped %d", s.Dropped)
	}
	if s.SkippedLines > 0 {
		line += fmt.Sprintf(", %d bad lines", s.SkippedLines)
	}
	return line
}

// OutputStatus writes the row counts of the store.
func OutputStatus(format string, st store.Status, out io.Writer) error {
	switch format {
	case "json":
		return outputJSON(st, out)
	case "pretty":
		rows := []struct {
			label string
			n     int64
		}{
			{"players", st.Players},
			{"suspects", st.Suspects},
			{"matches", st.Matches},
			{"participations", st.Participations},
			{"ip addresses", st.IPAddresses},
			{"player/ip bindings", st.Bindings},
			{"player/ip/match", st.IPMatches},
			{"connection events", st.Events},
			{"ddos matches", st.DDoSMatches},
			{"ddos incidents", st.Incidents},
			{"game logs processed", st.ProcessedGame},
			{"client logs processed", st.ProcessedClient},
		}
		for _, r := range rows {
			if _, err := fmt.Fprintf(out, "%-22s %8d\n", r.label, r.n); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputReport writes the suspect report.
func OutputReport(format string, r *analysis.Report, out io.Writer) error {
	switch format {
	case "json":
		return outputJSON(r, out)
	case "pretty":
		return analysis.Render(out, r)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
