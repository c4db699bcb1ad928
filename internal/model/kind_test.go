package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefine(t *testing.T) {
	tests := []struct {
		name     string
		current  CandidateKind
		observed CandidateKind
		want     CandidateKind
	}{
		{"unknown to host", KindUnknown, KindHostLocal, KindHostLocal},
		{"host to srflx", KindHostLocal, KindServerReflexive, KindServerReflexive},
		{"srflx kept over unknown", KindServerReflexive, KindUnknown, KindServerReflexive},
		{"srflx kept over host", KindServerReflexive, KindHostLocal, KindServerReflexive},
		{"relayed kept over host", KindRelayed, KindHostLocal, KindRelayed},
		{"equal rank replaces", KindServerReflexive, KindRelayed, KindRelayed},
		{"empty current", "", KindHostLocal, KindHostLocal},
		{"invalid observation ignored", KindHostLocal, "bogus", KindHostLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Refine(tt.current, tt.observed))
		})
	}
}

func TestParseCandidateType(t *testing.T) {
	tests := map[string]CandidateKind{
		"HOST_CANDIDATE":             KindHostLocal,
		"HOSTCANDIDATE":              KindHostLocal,
		"host":                       KindHostLocal,
		"SERVER_REFLEXIVE_CANDIDATE": KindServerReflexive,
		"SERVERREFLEXIVECANDIDATE":   KindServerReflexive,
		"srflx":                      KindServerReflexive,
		"RELAYED_CANDIDATE":          KindRelayed,
		"relay":                      KindRelayed,
		"PEER_REFLEXIVE_CANDIDATE":   KindUnknown,
		"":                           KindUnknown,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseCandidateType(in), "ParseCandidateType(%q)", in)
	}
}

func TestWindowObserve(t *testing.T) {
	base := time.Date(2025, 11, 26, 0, 22, 0, 0, time.UTC)

	var w Window
	assert.True(t, w.IsZero())

	w.Observe(base)
	w.Observe(base.Add(-time.Minute))
	w.Observe(base.Add(time.Minute))
	w.Observe(time.Time{})

	assert.Equal(t, base.Add(-time.Minute), w.First)
	assert.Equal(t, base.Add(time.Minute), w.Last)

	w.Merge(Window{First: base.Add(-time.Hour), Last: base})
	assert.Equal(t, base.Add(-time.Hour), w.First)
	assert.Equal(t, base.Add(time.Minute), w.Last)
}

func TestClientTranscriptCandidates(t *testing.T) {
	ts := time.Date(2025, 11, 26, 0, 22, 0, 0, time.UTC)
	tr := NewClientTranscript("client.log.2025-11-26.0.log", ts, ts, 0)

	tr.SeeCandidate(324211, "77.51.212.234", KindServerReflexive, 0, ts)
	tr.SeeCandidate(197190, "77.51.212.234", KindUnknown, 0, ts.Add(time.Second))

	assert.Equal(t, KindServerReflexive, tr.Kinds["77.51.212.234"])
	assert.Len(t, tr.IPs, 2)
	assert.Equal(t, []int64{197190, 324211}, tr.PlayerUIDs())

	sorted := SortedIPs(tr.IPs)
	assert.Equal(t, int64(197190), sorted[0].UID)
	assert.Equal(t, KindUnknown, sorted[0].Kind)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Game ")
	assert.NoError(t, err)
	assert.Equal(t, CategoryGame, c)

	_, err = ParseCategory("ice")
	assert.Error(t, err)
}
