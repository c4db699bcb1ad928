// Package analysis runs read-only queries over the store to surface accounts
// that share network identities or keep turning up in the same matches.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// MinOverlapMatches is the lowest match count at which a player/address pair
// counts as recurring.
const MinOverlapMatches = 2

// Analyzer queries a migrated store database.
type Analyzer struct {
	db *gorm.DB
}

// New returns an Analyzer over db.
func New(db *gorm.DB) *Analyzer {
	return &Analyzer{db: db}
}

// PlayerRef names a player.
type PlayerRef struct {
	UID      int64  `json:"uid"`
	Nickname string `json:"nickname"`
}

// RecurringPlayer is a player that took part in several matches.
type RecurringPlayer struct {
	PlayerRef
	MatchCount int     `json:"match_count"`
	IsSuspect  bool    `json:"is_suspect"`
	Notes      *string `json:"notes,omitempty"`
}

// SharedIP is an address bound to several players.
type SharedIP struct {
	Address   string      `json:"address"`
	IsPrivate bool        `json:"is_private"`
	Kind      string      `json:"kind"`
	Players   []PlayerRef `json:"players"`
}

// MatchRef names a match.
type MatchRef struct {
	UID   int64  `json:"uid"`
	Title string `json:"title,omitempty"`
}

// Overlap is a player seen behind the same address in several matches.
type Overlap struct {
	Player  PlayerRef  `json:"player"`
	Address string     `json:"address"`
	Matches []MatchRef `json:"matches"`
}

// MatchCount returns the number of distinct matches of the pair.
func (o Overlap) MatchCount() int {
	return len(o.Matches)
}

type recurringRow struct {
	UID        int64   `gorm:"column:uid"`
	Nickname   string  `gorm:"column:nickname"`
	IsSuspect  bool    `gorm:"column:is_suspect"`
	Notes      *string `gorm:"column:notes"`
	MatchCount int     `gorm:"column:match_count"`
}

// RecurringPlayers returns players with at least minMatches distinct match
// participations, by count descending then UID.
func (a *Analyzer) RecurringPlayers(ctx context.Context, minMatches int) ([]RecurringPlayer, error) {
	var rows []recurringRow
	err := a.db.WithContext(ctx).
		Table("players AS p").
		Select("p.uid, p.nickname, p.is_suspect, p.notes, COUNT(DISTINCT mp.match_uid) AS match_count").
		Joins("JOIN match_participations AS mp ON mp.player_uid = p.uid").
		Group("p.uid, p.nickname, p.is_suspect, p.notes").
		Having("COUNT(DISTINCT mp.match_uid) >= ?", minMatches).
		Order("match_count DESC, p.uid ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring players: %w", err)
	}

	out := make([]RecurringPlayer, 0, len(rows))
	for _, r := range rows {
		out = append(out, RecurringPlayer{
			PlayerRef:  PlayerRef{UID: r.UID, Nickname: r.Nickname},
			MatchCount: r.MatchCount,
			IsSuspect:  r.IsSuspect,
			Notes:      r.Notes,
		})
	}
	return out, nil
}

type bindingRow struct {
	Address   string    `gorm:"column:address"`
	IsPrivate bool      `gorm:"column:is_private"`
	Kind      string    `gorm:"column:kind"`
	PlayerUID int64     `gorm:"column:player_uid"`
	Nickname  string    `gorm:"column:nickname"`
	FirstSeen time.Time `gorm:"column:first_seen"`
}

// SharedIPs returns addresses bound to at least minPlayers distinct players.
// Private addresses are left out unless includePrivate is set. The result is
// ordered by player count descending then address; each address lists its
// players by earliest binding.
func (a *Analyzer) SharedIPs(ctx context.Context, minPlayers int, includePrivate bool) ([]SharedIP, error) {
	q := a.db.WithContext(ctx).
		Table("player_ip_bindings AS b").
		Select("b.address, ip.is_private, ip.kind, b.player_uid, p.nickname, b.first_seen").
		Joins("JOIN ip_addresses AS ip ON ip.address = b.address").
		Joins("JOIN players AS p ON p.uid = b.player_uid")
	if !includePrivate {
		q = q.Where("ip.is_private = ?", false)
	}
	var rows []bindingRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query bindings: %w", err)
	}

	type member struct {
		ref   PlayerRef
		first time.Time
	}
	type group struct {
		ip      SharedIP
		members map[int64]*member
	}
	groups := make(map[string]*group)
	for _, r := range rows {
		g, ok := groups[r.Address]
		if !ok {
			g = &group{
				ip:      SharedIP{Address: r.Address, IsPrivate: r.IsPrivate, Kind: r.Kind},
				members: make(map[int64]*member),
			}
			groups[r.Address] = g
		}
		// A player can hold one binding per provenance.
		m, ok := g.members[r.PlayerUID]
		if !ok {
			g.members[r.PlayerUID] = &member{ref: PlayerRef{UID: r.PlayerUID, Nickname: r.Nickname}, first: r.FirstSeen}
			continue
		}
		if r.FirstSeen.Before(m.first) {
			m.first = r.FirstSeen
		}
	}

	out := make([]SharedIP, 0)
	for _, g := range groups {
		if len(g.members) < minPlayers {
			continue
		}
		members := make([]*member, 0, len(g.members))
		for _, m := range g.members {
			members = append(members, m)
		}
		sort.Slice(members, func(i, j int) bool {
			if !members[i].first.Equal(members[j].first) {
				return members[i].first.Before(members[j].first)
			}
			return members[i].ref.UID < members[j].ref.UID
		})
		ip := g.ip
		ip.Players = make([]PlayerRef, 0, len(members))
		for _, m := range members {
			ip.Players = append(ip.Players, m.ref)
		}
		out = append(out, ip)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Players) != len(out[j].Players) {
			return len(out[i].Players) > len(out[j].Players)
		}
		return out[i].Address < out[j].Address
	})
	return out, nil
}

type ipMatchRow struct {
	PlayerUID int64  `gorm:"column:player_uid"`
	Nickname  string `gorm:"column:nickname"`
	Address   string `gorm:"column:address"`
	MatchUID  int64  `gorm:"column:match_uid"`
	Title     string `gorm:"column:title"`
}

// PlayerIPMatchOverlap returns player/address pairs observed together in at
// least minMatches distinct matches. minMatches below MinOverlapMatches is
// raised to it.
func (a *Analyzer) PlayerIPMatchOverlap(ctx context.Context, minMatches int, includePrivate bool) ([]Overlap, error) {
	if minMatches < MinOverlapMatches {
		minMatches = MinOverlapMatches
	}

	q := a.db.WithContext(ctx).
		Table("player_ip_matches AS pm").
		Select("pm.player_uid, p.nickname, pm.address, pm.match_uid, m.title").
		Joins("JOIN players AS p ON p.uid = pm.player_uid").
		Joins("JOIN matches AS m ON m.uid = pm.match_uid").
		Joins("JOIN ip_addresses AS ip ON ip.address = pm.address")
	if !includePrivate {
		q = q.Where("ip.is_private = ?", false)
	}
	var rows []ipMatchRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query ip matches: %w", err)
	}

	type pairKey struct {
		uid     int64
		address string
	}
	pairs := make(map[pairKey]*Overlap)
	for _, r := range rows {
		k := pairKey{r.PlayerUID, r.Address}
		o, ok := pairs[k]
		if !ok {
			o = &Overlap{Player: PlayerRef{UID: r.PlayerUID, Nickname: r.Nickname}, Address: r.Address}
			pairs[k] = o
		}
		o.Matches = append(o.Matches, MatchRef{UID: r.MatchUID, Title: r.Title})
	}

	out := make([]Overlap, 0)
	for _, o := range pairs {
		if len(o.Matches) < minMatches {
			continue
		}
		sort.Slice(o.Matches, func(i, j int) bool { return o.Matches[i].UID < o.Matches[j].UID })
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Matches) != len(out[j].Matches) {
			return len(out[i].Matches) > len(out[j].Matches)
		}
		if out[i].Player.UID != out[j].Player.UID {
			return out[i].Player.UID < out[j].Player.UID
		}
		return out[i].Address < out[j].Address
	})
	return out, nil
}
