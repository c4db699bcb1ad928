package model

import (
	"sort"
	"time"
)

// Window is a first/last-seen interval. The zero Window has seen nothing.
type Window struct {
	First time.Time
	Last  time.Time
}

// Observe widens the window so that it contains ts. Zero timestamps are ignored.
func (w *Window) Observe(ts time.Time) {
	if ts.IsZero() {
		return
	}
	if w.First.IsZero() || ts.Before(w.First) {
		w.First = ts
	}
	if w.Last.IsZero() || ts.After(w.Last) {
		w.Last = ts
	}
}

// Merge widens the window to contain o.
func (w *Window) Merge(o Window) {
	w.Observe(o.First)
	w.Observe(o.Last)
}

// IsZero reports whether nothing has been observed.
func (w Window) IsZero() bool {
	return w.First.IsZero() && w.Last.IsZero()
}

// PlayerSighting accumulates what one file says about one player.
type PlayerSighting struct {
	UID      int64
	Nickname string // empty when the file only mentions the UID
	IsLocal  bool
	Seen     Window
}

// Participation is a player's presence in the session's match.
type Participation struct {
	UID  int64
	Role Role
	Team *int
	Seen Window
}

// IPKey identifies one IP sighting fact. MatchUID is 0 outside a match context.
type IPKey struct {
	UID      int64
	Address  string
	MatchUID int64
}

// IPSighting is a player observed behind an address. Address is the raw text
// from the log and is validated only when committed.
type IPSighting struct {
	IPKey
	Kind       CandidateKind
	Provenance Provenance
	Seen       Window
}

// MatchInfo is the match metadata found in a session log.
type MatchInfo struct {
	UID          int64
	Title        string
	MapName      string
	GameType     string
	HostUID      int64  // 0 when unknown
	HostNickname string // host as named by the payload, resolved against players
	StartedAt    time.Time
	EndedAt      time.Time
	RawPayload   []byte
}

// SessionTranscript is the unordered fact set extracted from one game log.
type SessionTranscript struct {
	Path           string
	ModTime        time.Time
	Match          MatchInfo
	Players        map[int64]*PlayerSighting
	Participations map[int64]*Participation
	IPs            map[IPKey]*IPSighting
	SkippedLines   int
}

// NewSessionTranscript returns an empty transcript for the given match.
func NewSessionTranscript(path string, modTime time.Time, matchUID int64) *SessionTranscript {
	return &SessionTranscript{
		Path:           path,
		ModTime:        modTime,
		Match:          MatchInfo{UID: matchUID},
		Players:        make(map[int64]*PlayerSighting),
		Participations: make(map[int64]*Participation),
		IPs:            make(map[IPKey]*IPSighting),
	}
}

// SeePlayer records a sighting of uid and returns its participation entry.
// A non-empty nickname replaces the one seen earlier in the file.
func (t *SessionTranscript) SeePlayer(uid int64, nickname string, ts time.Time) *Participation {
	seePlayer(t.Players, uid, nickname, ts)
	part, ok := t.Participations[uid]
	if !ok {
		part = &Participation{UID: uid, Role: RolePlayer}
		t.Participations[uid] = part
	}
	part.Seen.Observe(ts)
	return part
}

// SeeIP records that uid was observed behind address within the session's match.
func (t *SessionTranscript) SeeIP(uid int64, address string, ts time.Time) {
	seeIP(t.IPs, IPKey{UID: uid, Address: address, MatchUID: t.Match.UID}, KindUnknown, ProvenanceGameLog, ts)
}

// PlayerUIDs returns the UIDs of all players in ascending order.
func (t *SessionTranscript) PlayerUIDs() []int64 {
	return sortedUIDs(t.Players)
}

// ConnectionEvent is one observed connection lifecycle line.
// UIDs are 0 when the line does not name that side.
type ConnectionEvent struct {
	Line      int
	Timestamp time.Time
	Kind      EventKind
	SrcUID    int64
	DstUID    int64
	MatchUID  int64
	Raw       string
}

// ClientTranscript is the ordered event history extracted from one client log.
type ClientTranscript struct {
	Path     string
	ModTime  time.Time
	Date     time.Time
	Sequence int
	LocalUID int64

	Players map[int64]*PlayerSighting
	Matches map[int64]*Window
	Events  []ConnectionEvent
	IPs     map[IPKey]*IPSighting
	// Kinds holds the refined classification of every address seen in the file.
	Kinds        map[string]CandidateKind
	SkippedLines int
}

// NewClientTranscript returns an empty client transcript.
func NewClientTranscript(path string, modTime, date time.Time, seq int) *ClientTranscript {
	return &ClientTranscript{
		Path:     path,
		ModTime:  modTime,
		Date:     date,
		Sequence: seq,
		Players:  make(map[int64]*PlayerSighting),
		Matches:  make(map[int64]*Window),
		IPs:      make(map[IPKey]*IPSighting),
		Kinds:    make(map[string]CandidateKind),
	}
}

// SeePlayer records a sighting of uid.
func (t *ClientTranscript) SeePlayer(uid int64, nickname string, ts time.Time) *PlayerSighting {
	return seePlayer(t.Players, uid, nickname, ts)
}

// SeeMatch records that matchUID was referenced at ts.
func (t *ClientTranscript) SeeMatch(matchUID int64, ts time.Time) {
	w, ok := t.Matches[matchUID]
	if !ok {
		w = &Window{}
		t.Matches[matchUID] = w
	}
	w.Observe(ts)
}

// SeeCandidate records an ICE candidate address for uid and refines the
// file-level classification of the address.
func (t *ClientTranscript) SeeCandidate(uid int64, address string, kind CandidateKind, matchUID int64, ts time.Time) {
	t.SeePlayer(uid, "", ts)
	seeIP(t.IPs, IPKey{UID: uid, Address: address, MatchUID: matchUID}, kind, ProvenanceICE, ts)
	t.Kinds[address] = Refine(t.Kinds[address], kind)
}

// Append adds an event and registers the players and match it references.
func (t *ClientTranscript) Append(ev ConnectionEvent) {
	for _, uid := range []int64{ev.SrcUID, ev.DstUID} {
		if uid != 0 {
			t.SeePlayer(uid, "", ev.Timestamp)
		}
	}
	if ev.MatchUID != 0 {
		t.SeeMatch(ev.MatchUID, ev.Timestamp)
	}
	t.Events = append(t.Events, ev)
}

// PlayerUIDs returns the UIDs of all players in ascending order.
func (t *ClientTranscript) PlayerUIDs() []int64 {
	return sortedUIDs(t.Players)
}

// SortedIPs returns the IP sightings ordered by UID, address and match.
func SortedIPs(m map[IPKey]*IPSighting) []*IPSighting {
	out := make([]*IPSighting, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].IPKey, out[j].IPKey
		if a.UID != b.UID {
			return a.UID < b.UID
		}
		if a.Address != b.Address {
			return a.Address < b.Address
		}
		return a.MatchUID < b.MatchUID
	})
	return out
}

func seePlayer(players map[int64]*PlayerSighting, uid int64, nickname string, ts time.Time) *PlayerSighting {
	p, ok := players[uid]
	if !ok {
		p = &PlayerSighting{UID: uid}
		players[uid] = p
	}
	if nickname != "" {
		p.Nickname = nickname
	}
	p.Seen.Observe(ts)
	return p
}

func seeIP(ips map[IPKey]*IPSighting, key IPKey, kind CandidateKind, prov Provenance, ts time.Time) {
	s, ok := ips[key]
	if !ok {
		s = &IPSighting{IPKey: key, Kind: KindUnknown, Provenance: prov}
		ips[key] = s
	}
	s.Kind = Refine(s.Kind, kind)
	s.Seen.Observe(ts)
}

func sortedUIDs(players map[int64]*PlayerSighting) []int64 {
	uids := make([]int64, 0, len(players))
	for uid := range players {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids
}
