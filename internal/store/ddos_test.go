package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dann1kid/faf-ddos-incidents/internal/netaddr"
	"github.com/dann1kid/faf-ddos-incidents/internal/store/schema"
)

func TestMarkDDoS(t *testing.T) {
	st := newTestStore(t, nil)
	ctx := context.Background()
	_, err := st.CommitSession(ctx, session25997214(), "run")
	require.NoError(t, err)

	pps := int64(120000)
	inc, err := st.MarkDDoS(ctx, 25997214, Incident{
		TargetIP:             "77.51.212.234:6112",
		PacketsPerSecondPeak: &pps,
		DetectedAt:           at(30),
	})
	require.NoError(t, err)
	assert.NotZero(t, inc.ID)
	assert.Equal(t, AttackUDPFlood, inc.AttackType)
	require.NotNil(t, inc.TargetIP)
	assert.Equal(t, "77.51.212.234", *inc.TargetIP)

	var m schema.Match
	require.NoError(t, st.DB().First(&m, "uid = ?", 25997214).Error)
	assert.True(t, m.DDoSDetected)
	require.NotNil(t, m.DDoSStart)
	assert.True(t, m.DDoSStart.Equal(at(30)))

	// A later report keeps the earlier start, an earlier one moves it.
	_, err = st.MarkDDoS(ctx, 25997214, Incident{AttackType: AttackTCPSyn, DetectedAt: at(40)})
	require.NoError(t, err)
	_, err = st.MarkDDoS(ctx, 25997214, Incident{AttackType: AttackICMPFlood, DetectedAt: at(50), Start: at(10)})
	require.NoError(t, err)
	require.NoError(t, st.DB().First(&m, "uid = ?", 25997214).Error)
	assert.True(t, m.DDoSStart.Equal(at(10)))

	status, err := st.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.DDoSMatches)
	assert.Equal(t, int64(3), status.Incidents)
}

func TestMarkDDoS_Rejects(t *testing.T) {
	st := newTestStore(t, nil)
	ctx := context.Background()
	_, err := st.CommitSession(ctx, session25997214(), "run")
	require.NoError(t, err)

	negative := int64(-1)
	tests := []struct {
		name  string
		match int64
		inc   Incident
		want  error
	}{
		{"unknown match", 1, Incident{}, ErrMatchNotFound},
		{"unknown attack type", 25997214, Incident{AttackType: "smurf"}, ErrUnknownAttackType},
		{"invalid target", 25997214, Incident{TargetIP: "router"}, netaddr.ErrInvalidAddress},
		{"negative pps", 25997214, Incident{PacketsPerSecondPeak: &negative}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := st.MarkDDoS(ctx, tt.match, tt.inc)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}

	assert.Zero(t, count(t, st, &schema.DDoSIncident{}))
	var m schema.Match
	require.NoError(t, st.DB().First(&m, "uid = ?", 25997214).Error)
	assert.False(t, m.DDoSDetected)
}

func TestUnmarkDDoS(t *testing.T) {
	st := newTestStore(t, nil)
	ctx := context.Background()
	_, err := st.CommitSession(ctx, session25997214(), "run")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = st.MarkDDoS(ctx, 25997214, Incident{DetectedAt: at(30)})
		require.NoError(t, err)
	}

	deleted, err := st.UnmarkDDoS(ctx, 25997214)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var m schema.Match
	require.NoError(t, st.DB().First(&m, "uid = ?", 25997214).Error)
	assert.False(t, m.DDoSDetected)
	assert.Nil(t, m.DDoSStart)
	assert.Zero(t, count(t, st, &schema.DDoSIncident{}))

	_, err = st.UnmarkDDoS(ctx, 1)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestMarkDDoS_SurvivesReingest(t *testing.T) {
	st := newTestStore(t, nil)
	ctx := context.Background()
	_, err := st.CommitSession(ctx, session25997214(), "run-1")
	require.NoError(t, err)
	_, err = st.MarkDDoS(ctx, 25997214, Incident{DetectedAt: at(30)})
	require.NoError(t, err)

	_, err = st.CommitSession(ctx, session25997214(), "run-2")
	require.NoError(t, err)

	var m schema.Match
	require.NoError(t, st.DB().First(&m, "uid = ?", 25997214).Error)
	assert.True(t, m.DDoSDetected)
	assert.Equal(t, int64(1), count(t, st, &schema.DDoSIncident{}))
}

func TestSetRiskScores(t *testing.T) {
	st := newTestStore(t, nil)
	ctx := context.Background()
	_, err := st.CommitSession(ctx, session25997214(), "run")
	require.NoError(t, err)

	require.NoError(t, st.SetRiskScores(ctx, map[int64]float64{324211: 0.6, 197190: 0.2}))
	require.NoError(t, st.SetRiskScores(ctx, map[int64]float64{324211: 0.3}))

	var players []schema.Player
	require.NoError(t, st.DB().Order("uid").Find(&players).Error)
	require.Len(t, players, 2)
	assert.Zero(t, players[0].RiskScore)
	assert.InDelta(t, 0.3, players[1].RiskScore, 1e-9)
}
