package store

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dann1kid/faf-ddos-incidents/internal/model"
	"github.com/dann1kid/faf-ddos-incidents/internal/store/schema"
)

const eventBatchSize = 500

// CommitSession merges a game session transcript in a single transaction
func (s *sqliteStore) CommitSession(ctx context.Context, tr *model.SessionTranscript, runID string) (CommitSummary, error) {
	sum := CommitSummary{
		Path:         tr.Path,
		Category:     model.CategoryGame,
		MatchUID:     tr.Match.UID,
		SkippedLines: tr.SkippedLines,
	}
	log := s.log.With(zap.String("file", tr.Path), zap.Int64("match_uid", tr.Match.UID))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := &resolver{tx: tx, log: log, sum: &sum, source: model.CategoryGame, at: tr.ModTime.UTC()}

		uids := tr.PlayerUIDs()
		for _, uid := range uids {
			p := tr.Players[uid]
			if err := r.upsertPlayer(uid, p.Nickname, p.Seen, p.IsLocal); err != nil {
				return err
			}
		}

		if host := tr.Match.HostUID; host != 0 {
			created, err := r.ensurePlayer(host)
			if err != nil {
				return err
			}
			if created {
				log.Warn("host is not among the session's players, created placeholder", zap.Int64("uid", host))
			}
		}
		if err := r.upsertMatch(tr.Match, tr.Path); err != nil {
			return err
		}

		for _, uid := range uids {
			p, ok := tr.Participations[uid]
			if !ok {
				continue
			}
			if err := r.upsertParticipation(tr.Match.UID, p); err != nil {
				return err
			}
		}

		for _, ip := range model.SortedIPs(tr.IPs) {
			if err := r.upsertIPSighting(ip); err != nil {
				return err
			}
		}

		return r.markProcessed(tr.Path, tr.ModTime, runID)
	})
	if err != nil {
		return CommitSummary{Path: tr.Path, Category: model.CategoryGame, MatchUID: tr.Match.UID, Err: err},
			fmt.Errorf("failed to commit %s: %w", tr.Path, err)
	}
	return sum, nil
}

// CommitClient merges a client transcript in a single transaction. Events
// previously appended from the same file are replaced.
func (s *sqliteStore) CommitClient(ctx context.Context, tr *model.ClientTranscript, runID string) (CommitSummary, error) {
	sum := CommitSummary{
		Path:         tr.Path,
		Category:     model.CategoryClient,
		SkippedLines: tr.SkippedLines,
	}
	log := s.log.With(zap.String("file", tr.Path))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := &resolver{tx: tx, log: log, sum: &sum, source: model.CategoryClient, at: tr.ModTime.UTC()}

		for _, uid := range tr.PlayerUIDs() {
			p := tr.Players[uid]
			if err := r.upsertPlayer(uid, p.Nickname, p.Seen, p.IsLocal); err != nil {
				return err
			}
		}

		matchUIDs := make([]int64, 0, len(tr.Matches))
		for uid := range tr.Matches {
			matchUIDs = append(matchUIDs, uid)
		}
		sort.Slice(matchUIDs, func(i, j int) bool { return matchUIDs[i] < matchUIDs[j] })
		for _, uid := range matchUIDs {
			if err := r.ensureMatch(uid); err != nil {
				return err
			}
		}

		for _, ip := range model.SortedIPs(tr.IPs) {
			sighting := *ip
			if kind, ok := tr.Kinds[ip.Address]; ok {
				sighting.Kind = model.Refine(sighting.Kind, kind)
			}
			if err := r.upsertIPSighting(&sighting); err != nil {
				return err
			}
		}

		res := tx.Where("source_file = ?", tr.Path).Delete(&schema.ConnectionEvent{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete previous events: %w", res.Error)
		}
		sum.EventsReplaced = int(res.RowsAffected)

		rows := make([]schema.ConnectionEvent, 0, len(tr.Events))
		for _, ev := range tr.Events {
			if ev.Kind == model.EventGameClosed && ev.MatchUID != 0 {
				if err := r.endMatch(ev.MatchUID, ev.Timestamp); err != nil {
					return err
				}
			}
			rows = append(rows, schema.ConnectionEvent{
				Timestamp:    ev.Timestamp.UTC(),
				SrcPlayerUID: optionalUID(ev.SrcUID),
				DstPlayerUID: optionalUID(ev.DstUID),
				MatchUID:     optionalUID(ev.MatchUID),
				Kind:         string(ev.Kind),
				Raw:          ev.Raw,
				SourceFile:   tr.Path,
				LineNumber:   ev.Line,
			})
		}
		if len(rows) > 0 {
			if err := tx.Omit(clause.Associations).CreateInBatches(rows, eventBatchSize).Error; err != nil {
				return fmt.Errorf("failed to append events: %w", err)
			}
		}
		sum.EventsAppended = len(rows)

		return r.markProcessed(tr.Path, tr.ModTime, runID)
	})
	if err != nil {
		return CommitSummary{Path: tr.Path, Category: model.CategoryClient, Err: err},
			fmt.Errorf("failed to commit %s: %w", tr.Path, err)
	}
	return sum, nil
}
