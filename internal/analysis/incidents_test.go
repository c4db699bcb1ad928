package analysis

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dann1kid/faf-ddos-incidents/internal/netaddr"
	"github.com/dann1kid/faf-ddos-incidents/internal/store"
)

func markDDoS(t *testing.T, st store.Store, match int64, inc store.Incident) {
	t.Helper()
	_, err := st.MarkDDoS(context.Background(), match, inc)
	require.NoError(t, err)
}

func TestListMatches(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	commitSession(t, st, 100, 0, player{uid: 10, nick: "a"}, player{uid: 11, nick: "b"})
	commitSession(t, st, 200, 60, player{uid: 10, nick: "a"})
	commitSession(t, st, 300, 120, player{uid: 12, nick: "c"})
	markDDoS(t, st, 200, store.Incident{DetectedAt: at(70)})
	markDDoS(t, st, 200, store.Incident{DetectedAt: at(75), AttackType: store.AttackTCPSyn})

	a := New(st.DB())
	all, err := a.ListMatches(ctx, false, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{300, 200, 100}, []int64{all[0].UID, all[1].UID, all[2].UID})
	assert.Equal(t, 2, all[2].PlayerCount)
	assert.False(t, all[2].DDoSDetected)
	assert.Zero(t, all[2].Incidents)

	attacked, err := a.ListMatches(ctx, true, 0)
	require.NoError(t, err)
	require.Len(t, attacked, 1)
	assert.Equal(t, int64(200), attacked[0].UID)
	assert.True(t, attacked[0].DDoSDetected)
	assert.Equal(t, 2, attacked[0].Incidents)
	require.NotNil(t, attacked[0].DDoSStart)
	assert.True(t, attacked[0].DDoSStart.Equal(at(70)))

	limited, err := a.ListMatches(ctx, false, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	var buf bytes.Buffer
	require.NoError(t, RenderMatches(&buf, all))
	assert.Contains(t, buf.String(), "200        1       yes")
}

func TestMatchReport(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	commitSession(t, st, 25997214, 0,
		player{uid: 324211, nick: "Nucka_Sempai", ips: []string{"77.51.212.234"}},
		player{uid: 197190, nick: "bubushin"},
	)
	commitSession(t, st, 25997260, 60, player{uid: 324211, nick: "Nucka_Sempai", ips: []string{"5.6.7.8"}})
	pps := int64(90000)
	markDDoS(t, st, 25997214, store.Incident{TargetIP: "77.51.212.234", PacketsPerSecondPeak: &pps, DetectedAt: at(5)})

	a := New(st.DB())
	d, err := a.MatchReport(ctx, 25997214)
	require.NoError(t, err)
	assert.Equal(t, "match title", d.Title)
	assert.True(t, d.DDoSDetected)
	assert.Equal(t, 2, d.PlayerCount)
	require.Len(t, d.Players, 2)
	assert.Equal(t, int64(197190), d.Players[0].UID)
	assert.Empty(t, d.Players[0].Addresses)
	// Only addresses seen during this match are listed.
	assert.Equal(t, []Address{{Address: "77.51.212.234", Kind: "unknown"}}, d.Players[1].Addresses)
	require.Len(t, d.IncidentList, 1)
	assert.Equal(t, store.AttackUDPFlood, d.IncidentList[0].AttackType)
	assert.Equal(t, &pps, d.IncidentList[0].PPSPeak)

	var buf bytes.Buffer
	require.NoError(t, RenderMatch(&buf, d))
	out := buf.String()
	assert.Contains(t, out, "MATCH 25997214 match title")
	assert.Contains(t, out, "DDoS: yes")
	assert.Contains(t, out, "target 77.51.212.234 peak 90000 pps")
	assert.Contains(t, out, "(no ip)")

	_, err = a.MatchReport(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIPReport(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	commitSession(t, st, 100, 0, player{uid: 10, nick: "a", ips: []string{"77.51.212.234"}})
	commitSession(t, st, 200, 60, player{uid: 11, nick: "b", ips: []string{"77.51.212.234"}})
	markDDoS(t, st, 200, store.Incident{TargetIP: "77.51.212.234", DetectedAt: at(61)})
	markDDoS(t, st, 100, store.Incident{TargetIP: "5.6.7.8", DetectedAt: at(1)})

	a := New(st.DB())
	d, err := a.IPReport(ctx, "77.51.212.234:6112")
	require.NoError(t, err)
	assert.Equal(t, "77.51.212.234", d.Address.Address)
	require.Len(t, d.Players, 2)
	assert.Equal(t, int64(10), d.Players[0].UID)
	assert.Equal(t, "GAME_LOG", d.Players[0].Provenance)
	require.Len(t, d.Matches, 2)
	assert.Equal(t, int64(200), d.Matches[0].UID)
	assert.True(t, d.Matches[0].DDoSDetected)
	assert.False(t, d.Matches[1].DDoSDetected)
	require.Len(t, d.Incidents, 1)
	assert.Equal(t, int64(200), d.Incidents[0].MatchUID)

	var buf bytes.Buffer
	require.NoError(t, RenderIP(&buf, d))
	assert.Contains(t, buf.String(), "ADDRESS 77.51.212.234 (unknown)")

	_, err = a.IPReport(ctx, "9.9.9.9")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = a.IPReport(ctx, "not-an-ip")
	assert.ErrorIs(t, err, netaddr.ErrInvalidAddress)
}

func TestRiskScores(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	commitSession(t, st, 1, 0, player{uid: 10, nick: "a"}, player{uid: 11, nick: "b", ips: []string{"77.51.212.234"}})
	commitSession(t, st, 2, 60, player{uid: 10, nick: "a"})
	commitSession(t, st, 3, 120, player{uid: 10, nick: "a"})
	commitSession(t, st, 4, 180, player{uid: 12, nick: "c"})
	// A second binding to the target must not count twice.
	require.NoError(t, st.BindManual(ctx, 11, "77.51.212.234", at(2)))
	markDDoS(t, st, 1, store.Incident{TargetIP: "77.51.212.234", DetectedAt: at(30)})
	markDDoS(t, st, 2, store.Incident{DetectedAt: at(60)})
	markDDoS(t, st, 3, store.Incident{DetectedAt: at(120)})

	a := New(st.DB())
	now := base.Add(RiskDecay)
	got, err := a.RiskScores(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(11), got[0].UID)
	assert.Equal(t, "b", got[0].Nickname)
	assert.InDelta(t, 0.3*decay(at(1), now)+0.7*decay(at(30), now), got[0].Score, 1e-9)
	assert.Equal(t, 1, got[0].AttackedMatches)
	assert.Equal(t, 1, got[0].TargetHits)

	assert.Equal(t, int64(10), got[1].UID)
	assert.InDelta(t, 0.3*(decay(at(0), now)+decay(at(60), now)+decay(at(120), now)), got[1].Score, 1e-9)
	assert.Equal(t, 3, got[1].AttackedMatches)

	// Three attacked matches within a day add the burst bonus; the total is clamped.
	recent, err := a.RiskScores(ctx, at(180))
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.Equal(t, int64(10), recent[0].UID)
	assert.Equal(t, 1.0, recent[0].Score)

	var buf bytes.Buffer
	require.NoError(t, RenderRiskScores(&buf, got))
	assert.Contains(t, buf.String(), "NICKNAME")
}

func TestRiskScores_NoIncidents(t *testing.T) {
	st := newStore(t)
	commitSession(t, st, 1, 0, player{uid: 10, nick: "a"})

	got, err := New(st.DB()).RiskScores(context.Background(), at(60))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
