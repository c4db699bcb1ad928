package gamelog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dann1kid/faf-ddos-incidents/internal/model"
	"github.com/dann1kid/faf-ddos-incidents/pkg/faflog/pattern"
)

const sessionLog = `2025-11-26 00:20:01.100 info: starting with local uid of 324211 [Nucka_Sempai]
2025-11-26 00:20:02.000 info: HostGame (uid=324211)
2025-11-26 00:20:05.000 info: ConnectToPeer (name=bubushin, uid=197190, address=77.51.212.234:6112, USE PROXY)
2025-11-26 00:20:06.000 info: PlayerOption (uid=324211, Team=1)
2025-11-26 00:20:06.500 info: PlayerOption (uid=197190, Team=2)
2025-11-26 00:20:07.000 info: {"match_id": 25997214, "title": "2v2 setons", "mapname": "setons_clutch", "game_type": "faf", "host": "Nucka_Sempai"}
2025-11-26 00:20:10.000 info: GameState Launching
2025-11-26 00:21:00.000 info: LOBBY: "bubushin" [77.51.212.234:6112, uid=197190] has established connections to: 324211
2025-11-26 00:40:00.000 info: DisconnectFromPeer (uid=197190)
2025-11-26 00:41:00.000 info: GameState Ended
`

func newParser(t *testing.T, log *zap.Logger) *Parser {
	t.Helper()
	lib, err := pattern.Builtin()
	require.NoError(t, err)
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{Library: lib, Logger: log}
}

func writeLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func at(s string) time.Time {
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return ts
}

func TestParse_Session(t *testing.T) {
	path := writeLog(t, "game_25997214.log", sessionLog)

	tr, err := newParser(t, nil).Parse(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, int64(25997214), tr.Match.UID)
	assert.Equal(t, "2v2 setons", tr.Match.Title)
	assert.Equal(t, "setons_clutch", tr.Match.MapName)
	assert.Equal(t, "faf", tr.Match.GameType)
	assert.Equal(t, int64(324211), tr.Match.HostUID)
	assert.Equal(t, at("2025-11-26 00:20:10"), tr.Match.StartedAt)
	assert.Equal(t, at("2025-11-26 00:41:00"), tr.Match.EndedAt)
	assert.NotEmpty(t, tr.Match.RawPayload)

	assert.Equal(t, []int64{197190, 324211}, tr.PlayerUIDs())
	host := tr.Participations[324211]
	require.NotNil(t, host.Team)
	assert.Equal(t, model.RoleHost, host.Role)
	assert.Equal(t, 1, *host.Team)
	assert.True(t, tr.Players[324211].IsLocal)
	assert.Equal(t, "Nucka_Sempai", tr.Players[324211].Nickname)

	peer := tr.Participations[197190]
	require.NotNil(t, peer.Team)
	assert.Equal(t, model.RolePlayer, peer.Role)
	assert.Equal(t, 2, *peer.Team)
	assert.Equal(t, at("2025-11-26 00:20:05"), peer.Seen.First)
	assert.Equal(t, at("2025-11-26 00:40:00"), peer.Seen.Last)

	ip := tr.IPs[model.IPKey{UID: 197190, Address: "77.51.212.234:6112", MatchUID: 25997214}]
	require.NotNil(t, ip)
	assert.Equal(t, model.KindUnknown, ip.Kind)
	assert.Equal(t, model.ProvenanceGameLog, ip.Provenance)
	assert.Equal(t, at("2025-11-26 00:21:00"), ip.Seen.Last)
	assert.Zero(t, tr.SkippedLines)
}

func TestParse_DuplicateSightingsIdempotent(t *testing.T) {
	path := writeLog(t, "game_10.log", `info: PlayerOption (uid=5, Team=1)
info: ConnectToPeer (name=old, uid=5, address=1.2.3.4:1)
info: ConnectToPeer (name=new, uid=5, address=1.2.3.4:1)
info: PlayerOption (uid=5, Team=3)
info: MoveToObservers (uid=5)
`)
	tr, err := newParser(t, nil).Parse(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, tr.Players, 1)
	require.Len(t, tr.IPs, 1)
	assert.Equal(t, "new", tr.Players[5].Nickname)
	assert.Equal(t, 3, *tr.Participations[5].Team)
	assert.Equal(t, model.RoleObserver, tr.Participations[5].Role)
}

func TestParse_NoTimestampUsesModTime(t *testing.T) {
	path := writeLog(t, "game_11.log", "info: ConnectToPeer (name=a, uid=7, address=1.2.3.4:1)\n")
	mtime := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	tr, err := newParser(t, nil).Parse(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, tr.Players[7].Seen.First.Equal(mtime))
	assert.True(t, tr.ModTime.Equal(mtime))
}

func TestParse_MissingPayload(t *testing.T) {
	path := writeLog(t, "game_12.log", "info: HostGame (uid=9)\n")
	tr, err := newParser(t, nil).Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, tr.Match.Title)
	assert.Nil(t, tr.Match.RawPayload)
	assert.Equal(t, int64(9), tr.Match.HostUID)
	assert.Equal(t, model.RoleHost, tr.Participations[9].Role)
}

func TestParse_MalformedLinesSkipped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	path := writeLog(t, "game_13.log", `info: ConnectToPeer (name=a, uid=abc, address=1.2.3.4:1)
info: PlayerOption (uid=1, Team=blue)
info: {"match_id": 13, "title": broken}
info: DisconnectFromPeer (uid=2)
`)
	tr, err := newParser(t, zap.New(core)).Parse(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 3, tr.SkippedLines)
	assert.Equal(t, 3, logs.Len())
	assert.Nil(t, tr.Participations[1].Team)
	assert.Contains(t, tr.Players, int64(2))
	assert.Empty(t, tr.Match.Title)
}

func TestParse_HostResolution(t *testing.T) {
	tests := []struct {
		name string
		log  string
		want int64
	}{
		{
			name: "payload uid wins",
			log:  `info: HostGame (uid=1)` + "\n" + `info: {"match_id": 20, "host_uid": 2, "host": "a"}` + "\n",
			want: 2,
		},
		{
			name: "payload nickname",
			log:  "info: HostGame (uid=1)\ninfo: ConnectToPeer (name=b, uid=3, address=1.1.1.1:1)\n" + `info: {"match_id": 20, "host": "b"}` + "\n",
			want: 3,
		},
		{
			name: "unmatched nickname falls back to HostGame",
			log:  "info: HostGame (uid=1)\n" + `info: {"match_id": 20, "host": "nobody"}` + "\n",
			want: 1,
		},
		{
			name: "local player without other evidence",
			log:  "info: starting with local uid of 4 [d]\ninfo: ConnectToPeer (name=b, uid=3, address=1.1.1.1:1)\n",
			want: 4,
		},
		{
			name: "HostGame beats local player",
			log:  "info: starting with local uid of 4 [d]\ninfo: HostGame (uid=1)\n",
			want: 1,
		},
		{
			name: "no host",
			log:  "info: ConnectToPeer (name=b, uid=3, address=1.1.1.1:1)\n",
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := newParser(t, nil).Parse(context.Background(), writeLog(t, "game_20.log", tt.log))
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.Match.HostUID)
		})
	}
}

func TestParse_ForeignPayloadIgnored(t *testing.T) {
	path := writeLog(t, "game_30.log", `info: {"match_id": 31, "title": "other"}`+"\n")
	tr, err := newParser(t, nil).Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, tr.Match.Title)
}

func TestParse_Failures(t *testing.T) {
	p := newParser(t, nil)

	_, err := p.Parse(context.Background(), writeLog(t, "match_1.log", "x\n"))
	var pf *model.ParseFailure
	require.True(t, errors.As(err, &pf))
	assert.ErrorIs(t, err, model.ErrUnrecognizedName)

	_, err = p.Parse(context.Background(), filepath.Join(t.TempDir(), "game_1.log"))
	require.True(t, errors.As(err, &pf))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_Cancelled(t *testing.T) {
	path := writeLog(t, "game_40.log", sessionLog)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newParser(t, nil).Parse(ctx, path)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
