package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/dann1kid/faf-ddos-incidents/internal/netaddr"
	"github.com/dann1kid/faf-ddos-incidents/internal/store/schema"
)

// ErrNotFound is returned when the requested match or address is not stored.
var ErrNotFound = errors.New("not found")

// MatchSummary is one row of the match list.
type MatchSummary struct {
	MatchRef
	MapName      string     `json:"map_name,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	PlayerCount  int        `json:"player_count"`
	DDoSDetected bool       `json:"ddos_detected"`
	DDoSStart    *time.Time `json:"ddos_start,omitempty"`
	Incidents    int        `json:"incidents"`
}

// Incident is a reported attack.
type Incident struct {
	ID         int64     `json:"id"`
	MatchUID   int64     `json:"match_uid"`
	TargetIP   *string   `json:"target_ip,omitempty"`
	AttackType string    `json:"attack_type"`
	PPSPeak    *int64    `json:"pps_peak,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// Address is an address seen for a player.
type Address struct {
	Address   string `json:"address"`
	Kind      string `json:"kind"`
	IsPrivate bool   `json:"is_private"`
}

// MatchPlayer is a participant of a match and the addresses seen for it
// during that match.
type MatchPlayer struct {
	PlayerRef
	Role      string    `json:"role"`
	Team      *int      `json:"team,omitempty"`
	IsSuspect bool      `json:"is_suspect"`
	RiskScore float64   `json:"risk_score"`
	Addresses []Address `json:"addresses"`
}

// MatchDetail is the per-match report.
type MatchDetail struct {
	MatchSummary
	Players      []MatchPlayer `json:"players"`
	IncidentList []Incident    `json:"incident_list"`
}

// IPPlayer is a player bound to an address.
type IPPlayer struct {
	PlayerRef
	Provenance string    `json:"provenance"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// IPMatch is a match in which a player was seen behind an address.
type IPMatch struct {
	MatchRef
	PlayerUID    int64 `json:"player_uid"`
	DDoSDetected bool  `json:"ddos_detected"`
}

// IPDetail is the per-address report.
type IPDetail struct {
	Address
	FirstSeen time.Time  `json:"first_seen"`
	LastSeen  time.Time  `json:"last_seen"`
	Players   []IPPlayer `json:"players"`
	Matches   []IPMatch  `json:"matches"`
	// Incidents lists attacks that targeted the address
	Incidents []Incident `json:"incidents"`
}

type countRow struct {
	MatchUID int64 `gorm:"column:match_uid"`
	N        int   `gorm:"column:n"`
}

// ListMatches returns matches by UID descending. ddosOnly keeps attacked
// matches; a positive limit bounds the result.
func (a *Analyzer) ListMatches(ctx context.Context, ddosOnly bool, limit int) ([]MatchSummary, error) {
	db := a.db.WithContext(ctx)
	q := db.Model(&schema.Match{}).Order("uid DESC")
	if ddosOnly {
		q = q.Where("ddos_detected = ?", true)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var matches []schema.Match
	if err := q.Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	out := make([]MatchSummary, 0, len(matches))
	if len(matches) == 0 {
		return out, nil
	}
	uids := make([]int64, 0, len(matches))
	for _, m := range matches {
		uids = append(uids, m.UID)
	}
	players, err := a.countByMatch(ctx, "match_participations", uids)
	if err != nil {
		return nil, err
	}
	incidents, err := a.countByMatch(ctx, "ddos_incidents", uids)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		out = append(out, summarize(m, players[m.UID], incidents[m.UID]))
	}
	return out, nil
}

func (a *Analyzer) countByMatch(ctx context.Context, table string, uids []int64) (map[int64]int, error) {
	var rows []countRow
	err := a.db.WithContext(ctx).
		Table(table).
		Select("match_uid, COUNT(*) AS n").
		Where("match_uid IN ?", uids).
		Group("match_uid").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", table, err)
	}
	out := make(map[int64]int, len(rows))
	for _, r := range rows {
		out[r.MatchUID] = r.N
	}
	return out, nil
}

func summarize(m schema.Match, players, incidents int) MatchSummary {
	return MatchSummary{
		MatchRef:     MatchRef{UID: m.UID, Title: m.Title},
		MapName:      m.MapName,
		StartedAt:    m.StartedAt,
		PlayerCount:  players,
		DDoSDetected: m.DDoSDetected,
		DDoSStart:    m.DDoSStart,
		Incidents:    incidents,
	}
}

type matchPlayerRow struct {
	UID       int64   `gorm:"column:uid"`
	Nickname  string  `gorm:"column:nickname"`
	Role      string  `gorm:"column:role"`
	Team      *int    `gorm:"column:team"`
	IsSuspect bool    `gorm:"column:is_suspect"`
	RiskScore float64 `gorm:"column:risk_score"`
}

type playerAddressRow struct {
	PlayerUID int64  `gorm:"column:player_uid"`
	Address   string `gorm:"column:address"`
	Kind      string `gorm:"column:kind"`
	IsPrivate bool   `gorm:"column:is_private"`
}

// MatchReport returns the participants of a match with the addresses seen
// for each of them during it, and the incidents reported for the match.
func (a *Analyzer) MatchReport(ctx context.Context, matchUID int64) (*MatchDetail, error) {
	db := a.db.WithContext(ctx)
	var m schema.Match
	if err := db.Where("uid = ?", matchUID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("match %d: %w", matchUID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get match %d: %w", matchUID, err)
	}

	var players []matchPlayerRow
	err := db.Table("match_participations AS mp").
		Select("p.uid, p.nickname, mp.role, mp.team, p.is_suspect, p.risk_score").
		Joins("JOIN players AS p ON p.uid = mp.player_uid").
		Where("mp.match_uid = ?", matchUID).
		Order("p.uid ASC").
		Scan(&players).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}

	var addrs []playerAddressRow
	err = db.Table("player_ip_matches AS pm").
		Select("pm.player_uid, pm.address, ip.kind, ip.is_private").
		Joins("JOIN ip_addresses AS ip ON ip.address = pm.address").
		Where("pm.match_uid = ?", matchUID).
		Order("pm.player_uid ASC, pm.address ASC").
		Scan(&addrs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query match addresses: %w", err)
	}
	byPlayer := make(map[int64][]Address)
	for _, r := range addrs {
		byPlayer[r.PlayerUID] = append(byPlayer[r.PlayerUID], Address{Address: r.Address, Kind: r.Kind, IsPrivate: r.IsPrivate})
	}

	incidents, err := a.incidents(ctx, "match_uid = ?", matchUID)
	if err != nil {
		return nil, err
	}

	d := &MatchDetail{
		MatchSummary: summarize(m, len(players), len(incidents)),
		Players:      make([]MatchPlayer, 0, len(players)),
		IncidentList: incidents,
	}
	for _, p := range players {
		addresses := byPlayer[p.UID]
		if addresses == nil {
			addresses = []Address{}
		}
		d.Players = append(d.Players, MatchPlayer{
			PlayerRef: PlayerRef{UID: p.UID, Nickname: p.Nickname},
			Role:      p.Role,
			Team:      p.Team,
			IsSuspect: p.IsSuspect,
			RiskScore: p.RiskScore,
			Addresses: addresses,
		})
	}
	return d, nil
}

func (a *Analyzer) incidents(ctx context.Context, query string, arg any) ([]Incident, error) {
	var rows []schema.DDoSIncident
	err := a.db.WithContext(ctx).Where(query, arg).Order("detected_at ASC, id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	out := make([]Incident, 0, len(rows))
	for _, r := range rows {
		out = append(out, Incident{
			ID:         r.ID,
			MatchUID:   r.MatchUID,
			TargetIP:   r.TargetIP,
			AttackType: r.AttackType,
			PPSPeak:    r.PacketsPerSecondPeak,
			DetectedAt: r.DetectedAt,
		})
	}
	return out, nil
}

type ipPlayerRow struct {
	UID        int64     `gorm:"column:uid"`
	Nickname   string    `gorm:"column:nickname"`
	Provenance string    `gorm:"column:provenance"`
	FirstSeen  time.Time `gorm:"column:first_seen"`
	LastSeen   time.Time `gorm:"column:last_seen"`
}

type ipMatchDetailRow struct {
	MatchUID     int64  `gorm:"column:match_uid"`
	Title        string `gorm:"column:title"`
	PlayerUID    int64  `gorm:"column:player_uid"`
	DDoSDetected bool   `gorm:"column:ddos_detected"`
}

// IPReport returns the players bound to an address, the matches it was seen
// in and the incidents that targeted it. The address may carry a port.
func (a *Analyzer) IPReport(ctx context.Context, address string) (*IPDetail, error) {
	canonical, err := netaddr.Canonical(address)
	if err != nil {
		return nil, err
	}
	db := a.db.WithContext(ctx)

	var ip schema.IPAddress
	if err := db.Where("address = ?", canonical).First(&ip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("address %s: %w", canonical, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get address %s: %w", canonical, err)
	}

	var players []ipPlayerRow
	err = db.Table("player_ip_bindings AS b").
		Select("p.uid, p.nickname, b.provenance, b.first_seen, b.last_seen").
		Joins("JOIN players AS p ON p.uid = b.player_uid").
		Where("b.address = ?", canonical).
		Scan(&players).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query bindings: %w", err)
	}
	sort.Slice(players, func(i, j int) bool {
		if !players[i].FirstSeen.Equal(players[j].FirstSeen) {
			return players[i].FirstSeen.Before(players[j].FirstSeen)
		}
		if players[i].UID != players[j].UID {
			return players[i].UID < players[j].UID
		}
		return players[i].Provenance < players[j].Provenance
	})

	var matches []ipMatchDetailRow
	err = db.Table("player_ip_matches AS pm").
		Select("pm.match_uid, m.title, pm.player_uid, m.ddos_detected").
		Joins("JOIN matches AS m ON m.uid = pm.match_uid").
		Where("pm.address = ?", canonical).
		Order("pm.match_uid DESC, pm.player_uid ASC").
		Scan(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query address matches: %w", err)
	}

	incidents, err := a.incidents(ctx, "target_ip = ?", canonical)
	if err != nil {
		return nil, err
	}

	d := &IPDetail{
		Address:   Address{Address: ip.Address, Kind: ip.Kind, IsPrivate: ip.IsPrivate},
		FirstSeen: ip.FirstSeen,
		LastSeen:  ip.LastSeen,
		Players:   make([]IPPlayer, 0, len(players)),
		Matches:   make([]IPMatch, 0, len(matches)),
		Incidents: incidents,
	}
	for _, p := range players {
		d.Players = append(d.Players, IPPlayer{
			PlayerRef:  PlayerRef{UID: p.UID, Nickname: p.Nickname},
			Provenance: p.Provenance,
			FirstSeen:  p.FirstSeen,
			LastSeen:   p.LastSeen,
		})
	}
	for _, m := range matches {
		d.Matches = append(d.Matches, IPMatch{
			MatchRef:     MatchRef{UID: m.MatchUID, Title: m.Title},
			PlayerUID:    m.PlayerUID,
			DDoSDetected: m.DDoSDetected,
		})
	}
	return d, nil
}

// Risk score weights. Contributions decay exponentially with age.
const (
	RiskDecay = 7 * 24 * time.Hour

	riskPerAttackedMatch = 0.3
	riskAttackedCap      = 0.9
	riskPerTargetHit     = 0.7
	riskBurstBonus       = 0.2
	riskBurstMatches     = 3
	riskBurstWindow      = 24 * time.Hour
)

// RiskScore is the incident score of one player.
type RiskScore struct {
	PlayerRef
	Score           float64 `json:"score"`
	AttackedMatches int     `json:"attacked_matches"`
	TargetHits      int     `json:"target_hits"`
}

type attackedRow struct {
	PlayerUID int64     `gorm:"column:player_uid"`
	FirstSeen time.Time `gorm:"column:first_seen"`
	LastSeen  time.Time `gorm:"column:last_seen"`
}

type targetRow struct {
	PlayerUID  int64     `gorm:"column:player_uid"`
	IncidentID int64     `gorm:"column:incident_id"`
	DetectedAt time.Time `gorm:"column:detected_at"`
}

func decay(at, now time.Time) float64 {
	age := now.Sub(at)
	if age < 0 {
		age = 0
	}
	return math.Exp(-float64(age) / float64(RiskDecay))
}

// RiskScores scores players against the reported incidents as of now.
// Each attacked match a player took part in adds 0.3, capped at 0.9. Each
// incident that targeted one of the player's addresses adds 0.7. Three or
// more attacked matches within the last 24 hours add 0.2. Contributions decay
// with RiskDecay and the sum is clamped to [0, 1]. Players scoring 0 are left
// out; the result is ordered by score descending then UID.
func (a *Analyzer) RiskScores(ctx context.Context, now time.Time) ([]RiskScore, error) {
	db := a.db.WithContext(ctx)

	var attacked []attackedRow
	err := db.Table("match_participations AS mp").
		Select("mp.player_uid, mp.first_seen, mp.last_seen").
		Joins("JOIN matches AS m ON m.uid = mp.match_uid").
		Where("m.ddos_detected = ?", true).
		Scan(&attacked).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query attacked participations: %w", err)
	}

	var hits []targetRow
	err = db.Table("ddos_incidents AS i").
		Select("b.player_uid, i.id AS incident_id, i.detected_at").
		Joins("JOIN player_ip_bindings AS b ON b.address = i.target_ip").
		Scan(&hits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query incident targets: %w", err)
	}

	type tally struct {
		score    float64
		attacked int
		recent   int
		targeted float64
		hitCount int
	}
	tallies := make(map[int64]*tally)
	get := func(uid int64) *tally {
		t, ok := tallies[uid]
		if !ok {
			t = &tally{}
			tallies[uid] = t
		}
		return t
	}
	since := now.Add(-riskBurstWindow)
	for _, r := range attacked {
		t := get(r.PlayerUID)
		t.score += riskPerAttackedMatch * decay(r.FirstSeen, now)
		t.attacked++
		if !r.FirstSeen.Before(since) || !r.LastSeen.Before(since) {
			t.recent++
		}
	}
	type hitKey struct{ uid, incident int64 }
	counted := make(map[hitKey]bool)
	for _, r := range hits {
		// One binding per provenance can point at the same target.
		k := hitKey{r.PlayerUID, r.IncidentID}
		if counted[k] {
			continue
		}
		counted[k] = true
		t := get(r.PlayerUID)
		t.targeted += riskPerTargetHit * decay(r.DetectedAt, now)
		t.hitCount++
	}

	uids := make([]int64, 0, len(tallies))
	for uid := range tallies {
		uids = append(uids, uid)
	}
	names, err := a.nicknames(ctx, uids)
	if err != nil {
		return nil, err
	}

	out := make([]RiskScore, 0, len(tallies))
	for uid, t := range tallies {
		score := math.Min(t.score, riskAttackedCap) + t.targeted
		if t.recent >= riskBurstMatches {
			score += riskBurstBonus
		}
		score = math.Max(0, math.Min(1, score))
		if score == 0 {
			continue
		}
		out = append(out, RiskScore{
			PlayerRef:       PlayerRef{UID: uid, Nickname: names[uid]},
			Score:           score,
			AttackedMatches: t.attacked,
			TargetHits:      t.hitCount,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UID < out[j].UID
	})
	return out, nil
}

func (a *Analyzer) nicknames(ctx context.Context, uids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	var players []schema.Player
	if err := a.db.WithContext(ctx).Select("uid", "nickname").Where("uid IN ?", uids).Find(&players).Error; err != nil {
		return nil, fmt.Errorf("failed to query nicknames: %w", err)
	}
	for _, p := range players {
		out[p.UID] = p.Nickname
	}
	return out, nil
}
