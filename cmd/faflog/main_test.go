package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dann1kid/faf-ddos-incidents/internal/analysis"
	"github.com/dann1kid/faf-ddos-incidents/internal/store"
)

const sessionLog = `2025-11-26 00:20:01.100 info: starting with local uid of 324211 [Nucka_Sempai]
2025-11-26 00:20:02.000 info: HostGame (uid=324211)
2025-11-26 00:20:05.000 info: ConnectToPeer (name=bubushin, uid=197190, address=77.51.212.234:6112, USE PROXY)
2025-11-26 00:20:10.000 info: GameState Launching
`

// resetFlags restores every flag to its default so that runs do not leak
// into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type env struct {
	dir  string
	logs string
	db   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	e := env{dir: dir, logs: filepath.Join(dir, "logs"), db: filepath.Join(dir, "data", "faf.db")}
	require.NoError(t, os.MkdirAll(e.logs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.logs, "game_25997214.log"), []byte(sessionLog), 0o644))
	return e
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args,
		"--config", filepath.Join(e.dir, "none.yaml"),
		"--env-dir", e.dir,
		"--logs-dir", e.logs,
		"--db", e.db,
	))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands_IngestAndStatus(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "init-db")
	require.NoError(t, err)
	assert.Contains(t, out, "database ready")
	assert.FileExists(t, e.db)

	out, err = e.run(t, "load-game-logs")
	require.NoError(t, err)
	assert.Contains(t, out, "ok    game_25997214.log")
	assert.Contains(t, out, "1 parsed, 0 skipped, 0 failed")

	out, err = e.run(t, "load-game-logs")
	require.NoError(t, err)
	assert.Contains(t, out, "skip  game_25997214.log: unchanged")

	out, err = e.run(t, "load-game-logs", "--reparse")
	require.NoError(t, err)
	assert.Contains(t, out, "1 parsed")

	out, err = e.run(t, "load-client-logs")
	require.NoError(t, err)
	assert.Contains(t, out, "0 parsed, 0 skipped, 0 failed")

	out, err = e.run(t, "status", "--format", "json")
	require.NoError(t, err)
	var st store.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, int64(1), st.Matches)
	assert.Equal(t, int64(2), st.Players)
	assert.Equal(t, int64(1), st.ProcessedGame)
}

func TestCommands_Operator(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "load-game-logs")
	require.NoError(t, err)

	out, err := e.run(t, "mark-suspect", "324211", "--notes", "ddos after every loss")
	require.NoError(t, err)
	assert.Contains(t, out, "player 324211 marked")

	_, err = e.run(t, "mark-suspect", "1")
	assert.ErrorIs(t, err, store.ErrPlayerNotFound)

	_, err = e.run(t, "mark-suspect", "abc")
	assert.Error(t, err)

	out, err = e.run(t, "bind-ip", "324211", "77.51.212.234")
	require.NoError(t, err)
	assert.Contains(t, out, "bound player 324211 to 77.51.212.234")

	_, err = e.run(t, "bind-ip", "324211", "not-an-ip")
	assert.Error(t, err)

	out, err = e.run(t, "report-suspects", "--format", "json", "--min-players", "2")
	require.NoError(t, err)
	var report analysis.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.SharedIPs, 1)
	assert.Equal(t, "77.51.212.234", report.SharedIPs[0].Address)

	out, err = e.run(t, "mark-suspect", "324211", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")

	_, err = e.run(t, "report-suspects", "--format", "xml")
	assert.Error(t, err)
}

func TestCommands_DDoS(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "load-game-logs")
	require.NoError(t, err)

	out, err := e.run(t, "mark-ddos", "25997214", "--type", "tcp_syn", "--pps", "50000", "--target-ip", "77.51.212.234")
	require.NoError(t, err)
	assert.Contains(t, out, "match 25997214 marked as DDoS (incident #1)")

	_, err = e.run(t, "mark-ddos", "1")
	assert.ErrorIs(t, err, store.ErrMatchNotFound)
	_, err = e.run(t, "mark-ddos", "25997214", "--type", "smurf")
	assert.ErrorIs(t, err, store.ErrUnknownAttackType)
	_, err = e.run(t, "mark-ddos", "25997214", "--start", "yesterday")
	assert.Error(t, err)

	out, err = e.run(t, "list-matches", "--ddos", "--format", "json")
	require.NoError(t, err)
	var matches []analysis.MatchSummary
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Incidents)

	out, err = e.run(t, "report-match", "25997214")
	require.NoError(t, err)
	assert.Contains(t, out, "MATCH 25997214")
	assert.Contains(t, out, "tcp_syn")

	out, err = e.run(t, "report-ip", "77.51.212.234", "--format", "json")
	require.NoError(t, err)
	var ip analysis.IPDetail
	require.NoError(t, json.Unmarshal([]byte(out), &ip))
	require.Len(t, ip.Players, 1)
	assert.Equal(t, int64(197190), ip.Players[0].UID)
	require.Len(t, ip.Incidents, 1)

	_, err = e.run(t, "report-ip", "9.9.9.9")
	assert.ErrorIs(t, err, analysis.ErrNotFound)

	out, err = e.run(t, "score-players", "--format", "json")
	require.NoError(t, err)
	var scores []analysis.RiskScore
	require.NoError(t, json.Unmarshal([]byte(out), &scores))
	assert.Len(t, scores, 2)

	out, err = e.run(t, "unmark-ddos", "25997214")
	require.NoError(t, err)
	assert.Contains(t, out, "1 incidents deleted")

	out, err = e.run(t, "status", "--format", "json")
	require.NoError(t, err)
	var st store.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Zero(t, st.DDoSMatches)
	assert.Zero(t, st.Incidents)
}

func TestCommands_FormatCheckedBeforeWork(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "load-game-logs")
	require.NoError(t, err)
	_, err = e.run(t, "mark-suspect", "324211")
	require.NoError(t, err)

	for _, args := range [][]string{
		{"rebuild-all", "--format", "xml"},
		{"status", "--format", "xml"},
		{"list-matches", "--format", "xml"},
		{"report-match", "25997214", "--format", "xml"},
	} {
		_, err := e.run(t, args...)
		assert.ErrorContains(t, err, "unknown format: xml", args[0])
	}

	// The rejected rebuild left the operator flag in place.
	out, err := e.run(t, "status", "--format", "json")
	require.NoError(t, err)
	var st store.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, int64(1), st.Suspects)
	assert.Equal(t, int64(1), st.ProcessedGame)
}

func TestCommands_Completion(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "bash completion")

	_, err = e.run(t, "completion", "tcsh")
	assert.Error(t, err)
}
