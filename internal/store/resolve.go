package store

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dann1kid/faf-ddos-incidents/internal/model"
	"github.com/dann1kid/faf-ddos-incidents/internal/netaddr"
	"github.com/dann1kid/faf-ddos-incidents/internal/store/schema"
)

// widen adds first_seen/last_seen updates so that the stored window grows to
// contain seen. A zero seen window changes nothing.
func widen(updates map[string]any, curFirst, curLast time.Time, seen model.Window) {
	if !seen.First.IsZero() && seen.First.Before(curFirst) {
		updates["first_seen"] = seen.First.UTC()
	}
	if !seen.Last.IsZero() && seen.Last.After(curLast) {
		updates["last_seen"] = seen.Last.UTC()
	}
}

// orAt substitutes at for the missing ends of a window.
func orAt(w model.Window, at time.Time) model.Window {
	if w.First.IsZero() {
		w.First = at
	}
	if w.Last.IsZero() {
		w.Last = at
	}
	w.First, w.Last = w.First.UTC(), w.Last.UTC()
	return w
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// resolver applies one file's facts inside a transaction.
type resolver struct {
	tx     *gorm.DB
	log    *zap.Logger
	sum    *CommitSummary
	source model.Category
	// at stands in for missing sighting times (the file's modification time)
	at time.Time
}

// upsertPlayer merges a sighting into the players table. A non-empty nickname
// replaces the stored one unless the stored row was seen later.
func (r *resolver) upsertPlayer(uid int64, nickname string, seen model.Window, isLocal bool) error {
	seen = orAt(seen, r.at)

	var p schema.Player
	err := r.tx.Where("uid = ?", uid).First(&p).Error
	switch {
	case isNotFound(err):
		p = schema.Player{
			UID:         uid,
			Nickname:    nickname,
			FirstSeen:   seen.First,
			LastSeen:    seen.Last,
			IsLocal:     isLocal,
			Placeholder: nickname == "",
		}
		if nickname == "" {
			p.Nickname = model.PlaceholderNickname(uid)
		}
		if err := r.tx.Omit(clause.Associations).Create(&p).Error; err != nil {
			return fmt.Errorf("failed to create player %d: %w", uid, err)
		}
		r.sum.Players.add(true)
	case err != nil:
		return fmt.Errorf("failed to get player %d: %w", uid, err)
	default:
		updates := map[string]any{}
		if nickname != "" && (p.Placeholder || (nickname != p.Nickname && !seen.Last.Before(p.LastSeen))) {
			updates["nickname"] = nickname
			updates["placeholder"] = false
		}
		if isLocal && !p.IsLocal {
			updates["is_local"] = true
		}
		widen(updates, p.FirstSeen, p.LastSeen, seen)
		if len(updates) > 0 {
			if err := r.tx.Model(&p).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update player %d: %w", uid, err)
			}
			r.sum.Players.add(false)
		}
	}

	if nickname == "" {
		return nil
	}
	return r.upsertNickname(uid, nickname, seen)
}

func (r *resolver) upsertNickname(uid int64, nickname string, seen model.Window) error {
	var n schema.PlayerNickname
	err := r.tx.Where("player_uid = ? AND nickname = ? AND source = ?", uid, nickname, string(r.source)).First(&n).Error
	switch {
	case isNotFound(err):
		n = schema.PlayerNickname{
			PlayerUID: uid,
			Nickname:  nickname,
			Source:    string(r.source),
			FirstSeen: seen.First,
			LastSeen:  seen.Last,
		}
		if err := r.tx.Omit(clause.Associations).Create(&n).Error; err != nil {
			return fmt.Errorf("failed to create nickname of %d: %w", uid, err)
		}
		r.sum.Nicknames.add(true)
	case err != nil:
		return fmt.Errorf("failed to get nickname of %d: %w", uid, err)
	default:
		updates := map[string]any{}
		widen(updates, n.FirstSeen, n.LastSeen, seen)
		if len(updates) > 0 {
			if err := r.tx.Model(&n).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update nickname of %d: %w", uid, err)
			}
			r.sum.Nicknames.add(false)
		}
	}
	return nil
}

// ensurePlayer creates a placeholder row for uid if it does not exist yet.
func (r *resolver) ensurePlayer(uid int64) (bool, error) {
	var count int64
	if err := r.tx.Model(&schema.Player{}).Where("uid = ?", uid).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check player %d: %w", uid, err)
	}
	if count > 0 {
		return false, nil
	}
	return true, r.upsertPlayer(uid, "", model.Window{}, false)
}

// upsertMatch merges game log metadata. Metadata columns are filled only
// when empty; started_at only moves earlier and ended_at only later.
func (r *resolver) upsertMatch(info model.MatchInfo, sourceFile string) error {
	var m schema.Match
	err := r.tx.Where("uid = ?", info.UID).First(&m).Error
	switch {
	case isNotFound(err):
		m = schema.Match{
			UID:        info.UID,
			Title:      info.Title,
			MapName:    info.MapName,
			GameType:   info.GameType,
			HostUID:    optionalUID(info.HostUID),
			StartedAt:  optionalTime(info.StartedAt),
			EndedAt:    optionalTime(info.EndedAt),
			SourceFile: sourceFile,
		}
		if len(info.RawPayload) > 0 {
			m.RawPayload = datatypes.JSON(info.RawPayload)
		}
		if err := r.tx.Omit(clause.Associations).Create(&m).Error; err != nil {
			return fmt.Errorf("failed to create match %d: %w", info.UID, err)
		}
		r.sum.Matches.add(true)
		return nil
	case err != nil:
		return fmt.Errorf("failed to get match %d: %w", info.UID, err)
	}

	updates := map[string]any{}
	fill := func(column, cur, val string) {
		if cur == "" && val != "" {
			updates[column] = val
		}
	}
	fill("title", m.Title, info.Title)
	fill("map_name", m.MapName, info.MapName)
	fill("game_type", m.GameType, info.GameType)
	fill("source_file", m.SourceFile, sourceFile)
	if m.HostUID == nil && info.HostUID != 0 {
		updates["host_uid"] = info.HostUID
	}
	if len(m.RawPayload) == 0 && len(info.RawPayload) > 0 {
		updates["raw_payload"] = datatypes.JSON(info.RawPayload)
	}
	if !info.StartedAt.IsZero() && (m.StartedAt == nil || info.StartedAt.Before(*m.StartedAt)) {
		updates["started_at"] = info.StartedAt.UTC()
	}
	if !info.EndedAt.IsZero() && (m.EndedAt == nil || info.EndedAt.After(*m.EndedAt)) {
		updates["ended_at"] = info.EndedAt.UTC()
	}
	if len(updates) == 0 {
		return nil
	}
	if err := r.tx.Model(&m).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update match %d: %w", info.UID, err)
	}
	r.sum.Matches.add(false)
	return nil
}

// ensureMatch creates a stub row for a match known only from a client log.
func (r *resolver) ensureMatch(uid int64) error {
	var count int64
	if err := r.tx.Model(&schema.Match{}).Where("uid = ?", uid).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check match %d: %w", uid, err)
	}
	if count > 0 {
		return nil
	}
	if err := r.tx.Omit(clause.Associations).Create(&schema.Match{UID: uid}).Error; err != nil {
		return fmt.Errorf("failed to create match %d: %w", uid, err)
	}
	r.sum.Matches.add(true)
	return nil
}

// endMatch records a terminal event; ended_at only moves later.
func (r *resolver) endMatch(uid int64, at time.Time) error {
	var m schema.Match
	if err := r.tx.Where("uid = ?", uid).First(&m).Error; err != nil {
		return fmt.Errorf("failed to get match %d: %w", uid, err)
	}
	if m.EndedAt != nil && !at.After(*m.EndedAt) {
		return nil
	}
	if err := r.tx.Model(&m).Update("ended_at", at.UTC()).Error; err != nil {
		return fmt.Errorf("failed to end match %d: %w", uid, err)
	}
	r.sum.Matches.add(false)
	return nil
}

func (r *resolver) upsertParticipation(matchUID int64, p *model.Participation) error {
	seen := orAt(p.Seen, r.at)
	role := p.Role
	if role == "" {
		role = model.RolePlayer
	}

	var mp schema.MatchParticipation
	err := r.tx.Where("player_uid = ? AND match_uid = ?", p.UID, matchUID).First(&mp).Error
	switch {
	case isNotFound(err):
		mp = schema.MatchParticipation{
			PlayerUID: p.UID,
			MatchUID:  matchUID,
			Team:      p.Team,
			Role:      string(role),
			FirstSeen: seen.First,
			LastSeen:  seen.Last,
		}
		if err := r.tx.Omit(clause.Associations).Create(&mp).Error; err != nil {
			return fmt.Errorf("failed to create participation %d/%d: %w", p.UID, matchUID, err)
		}
		r.sum.Participations.add(true)
		return nil
	case err != nil:
		return fmt.Errorf("failed to get participation %d/%d: %w", p.UID, matchUID, err)
	}

	updates := map[string]any{}
	if mp.Role != string(role) {
		updates["role"] = string(role)
	}
	if p.Team != nil && (mp.Team == nil || *mp.Team != *p.Team) {
		updates["team"] = *p.Team
	}
	widen(updates, mp.FirstSeen, mp.LastSeen, seen)
	if len(updates) == 0 {
		return nil
	}
	if err := r.tx.Model(&mp).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update participation %d/%d: %w", p.UID, matchUID, err)
	}
	r.sum.Participations.add(false)
	return nil
}

// upsertIPSighting validates the address and merges the ip_addresses row,
// the binding and, inside a match, the per-match binding. An invalid address
// drops the whole relation.
func (r *resolver) upsertIPSighting(s *model.IPSighting) error {
	addr, err := netaddr.Parse(s.Address)
	if err != nil {
		r.log.Warn("dropping relation with invalid ip address",
			zap.Int64("uid", s.UID), zap.String("address", s.Address), zap.Error(err))
		r.sum.Dropped++
		return nil
	}
	address := addr.String()
	seen := orAt(s.Seen, r.at)

	if _, err := r.ensurePlayer(s.UID); err != nil {
		return err
	}
	if err := r.upsertIP(address, netaddr.IsPrivate(addr), s.Kind, seen); err != nil {
		return err
	}
	if err := r.upsertBinding(s.UID, address, s.Provenance, seen); err != nil {
		return err
	}
	if s.MatchUID == 0 {
		return nil
	}
	return r.upsertIPMatch(s.UID, address, s.MatchUID, seen)
}

// upsertIP refines the stored kind only towards more specific kinds.
func (r *resolver) upsertIP(address string, private bool, kind model.CandidateKind, seen model.Window) error {
	var ip schema.IPAddress
	err := r.tx.Where("address = ?", address).First(&ip).Error
	switch {
	case isNotFound(err):
		ip = schema.IPAddress{
			Address:   address,
			IsPrivate: private,
			Kind:      string(model.Refine(model.KindUnknown, kind)),
			FirstSeen: seen.First,
			LastSeen:  seen.Last,
		}
		if err := r.tx.Create(&ip).Error; err != nil {
			return fmt.Errorf("failed to create ip %s: %w", address, err)
		}
		r.sum.IPs.add(true)
		return nil
	case err != nil:
		return fmt.Errorf("failed to get ip %s: %w", address, err)
	}

	updates := map[string]any{}
	if refined := model.Refine(model.CandidateKind(ip.Kind), kind); string(refined) != ip.Kind {
		updates["kind"] = string(refined)
	}
	widen(updates, ip.FirstSeen, ip.LastSeen, seen)
	if len(updates) == 0 {
		return nil
	}
	if err := r.tx.Model(&ip).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update ip %s: %w", address, err)
	}
	r.sum.IPs.add(false)
	return nil
}

func (r *resolver) upsertBinding(uid int64, address string, prov model.Provenance, seen model.Window) error {
	var b schema.PlayerIPBinding
	err := r.tx.Where("player_uid = ? AND address = ? AND provenance = ?", uid, address, string(prov)).First(&b).Error
	switch {
	case isNotFound(err):
		b = schema.PlayerIPBinding{
			PlayerUID:  uid,
			Address:    address,
			Provenance: string(prov),
			FirstSeen:  seen.First,
			LastSeen:   seen.Last,
		}
		if err := r.tx.Omit(clause.Associations).Create(&b).Error; err != nil {
			return fmt.Errorf("failed to create binding %d/%s: %w", uid, address, err)
		}
		r.sum.Bindings.add(true)
		return nil
	case err != nil:
		return fmt.Errorf("failed to get binding %d/%s: %w", uid, address, err)
	}

	updates := map[string]any{}
	widen(updates, b.FirstSeen, b.LastSeen, seen)
	if len(updates) == 0 {
		return nil
	}
	if err := r.tx.Model(&b).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update binding %d/%s: %w", uid, address, err)
	}
	r.sum.Bindings.add(false)
	return nil
}

func (r *resolver) upsertIPMatch(uid int64, address string, matchUID int64, seen model.Window) error {
	if err := r.ensureMatch(matchUID); err != nil {
		return err
	}

	var pm schema.PlayerIPMatch
	err := r.tx.Where("player_uid = ? AND address = ? AND match_uid = ?", uid, address, matchUID).First(&pm).Error
	switch {
	case isNotFound(err):
		pm = schema.PlayerIPMatch{
			PlayerUID: uid,
			Address:   address,
			MatchUID:  matchUID,
			FirstSeen: seen.First,
			LastSeen:  seen.Last,
		}
		if err := r.tx.Omit(clause.Associations).Create(&pm).Error; err != nil {
			return fmt.Errorf("failed to create ip match %d/%s/%d: %w", uid, address, matchUID, err)
		}
		r.sum.IPMatches.add(true)
		return nil
	case err != nil:
		return fmt.Errorf("failed to get ip match %d/%s/%d: %w", uid, address, matchUID, err)
	}

	updates := map[string]any{}
	widen(updates, pm.FirstSeen, pm.LastSeen, seen)
	if len(updates) == 0 {
		return nil
	}
	if err := r.tx.Model(&pm).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update ip match %d/%s/%d: %w", uid, address, matchUID, err)
	}
	r.sum.IPMatches.add(false)
	return nil
}

func (r *resolver) markProcessed(path string, modTime time.Time, runID string) error {
	row := schema.ProcessedFile{
		Path:     path,
		Category: string(r.source),
		ModTime:  modTime.UnixNano(),
		ParsedAt: time.Now().UTC(),
		RunID:    runID,
	}
	err := r.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "mod_time", "parsed_at", "run_id"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record processed file: %w", err)
	}
	return nil
}

func optionalUID(uid int64) *int64 {
	if uid == 0 {
		return nil
	}
	return &uid
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
