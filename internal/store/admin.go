package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dann1kid/faf-ddos-incidents/internal/model"
	"github.com/dann1kid/faf-ddos-incidents/internal/netaddr"
	"github.com/dann1kid/faf-ddos-incidents/internal/store/schema"
)

// ProcessedFile returns the processing record of path, or nil if it was never committed
func (s *sqliteStore) ProcessedFile(ctx context.Context, path string) (*schema.ProcessedFile, error) {
	var pf schema.ProcessedFile
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&pf).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get processed file: %w", err)
	}
	return &pf, nil
}

// Status returns row counts
func (s *sqliteStore) Status(ctx context.Context) (Status, error) {
	var st Status
	db := s.db.WithContext(ctx)
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&st.Players, db.Model(&schema.Player{})},
		{&st.Suspects, db.Model(&schema.Player{}).Where("is_suspect = ?", true)},
		{&st.Matches, db.Model(&schema.Match{})},
		{&st.Participations, db.Model(&schema.MatchParticipation{})},
		{&st.IPAddresses, db.Model(&schema.IPAddress{})},
		{&st.Bindings, db.Model(&schema.PlayerIPBinding{})},
		{&st.IPMatches, db.Model(&schema.PlayerIPMatch{})},
		{&st.Events, db.Model(&schema.ConnectionEvent{})},
		{&st.DDoSMatches, db.Model(&schema.Match{}).Where("ddos_detected = ?", true)},
		{&st.Incidents, db.Model(&schema.DDoSIncident{})},
		{&st.ProcessedGame, db.Model(&schema.ProcessedFile{}).Where("category = ?", string(model.CategoryGame))},
		{&st.ProcessedClient, db.Model(&schema.ProcessedFile{}).Where("category = ?", string(model.CategoryClient))},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return Status{}, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return st, nil
}

// MarkSuspect sets or clears the suspect flag of a player. Notes are left
// untouched when nil.
func (s *sqliteStore) MarkSuspect(ctx context.Context, uid int64, suspect bool, notes *string) error {
	updates := map[string]any{"is_suspect": suspect}
	if notes != nil {
		updates["notes"] = *notes
	}
	res := s.db.WithContext(ctx).Model(&schema.Player{}).Where("uid = ?", uid).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to mark player %d: %w", uid, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrPlayerNotFound, uid)
	}
	return nil
}

// BindManual records an operator-supplied binding. An unknown UID gets a
// placeholder player.
func (s *sqliteStore) BindManual(ctx context.Context, uid int64, address string, at time.Time) error {
	addr, err := netaddr.Parse(address)
	if err != nil {
		return err
	}
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	seen := model.Window{First: at, Last: at}

	var sum CommitSummary
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := &resolver{tx: tx, log: s.log, sum: &sum, at: at}
		if _, err := r.ensurePlayer(uid); err != nil {
			return err
		}
		if err := r.upsertIP(addr.String(), netaddr.IsPrivate(addr), model.KindUnknown, seen); err != nil {
			return err
		}
		return r.upsertBinding(uid, addr.String(), model.ProvenanceManual, seen)
	})
	if err != nil {
		return fmt.Errorf("failed to bind %d to %s: %w", uid, address, err)
	}
	return nil
}
