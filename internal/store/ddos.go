package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dann1kid/faf-ddos-incidents/internal/netaddr"
	"github.com/dann1kid/faf-ddos-incidents/internal/store/schema"
)

// ErrMatchNotFound is returned by incident commands for an unknown match UID.
var ErrMatchNotFound = errors.New("match not found")

// ErrUnknownAttackType is returned for an attack type outside AttackTypes.
var ErrUnknownAttackType = errors.New("unknown attack type")

// Attack types accepted by MarkDDoS.
const (
	AttackUDPFlood  = "udp_flood"
	AttackICMPFlood = "icmp_flood"
	AttackTCPSyn    = "tcp_syn"
)

// AttackTypes lists the accepted attack types.
var AttackTypes = []string{AttackUDPFlood, AttackICMPFlood, AttackTCPSyn}

// Incident is an operator report of an attack on a match.
type Incident struct {
	// AttackType defaults to udp_flood
	AttackType string
	// TargetIP is optional
	TargetIP string
	// PacketsPerSecondPeak is optional
	PacketsPerSecondPeak *int64
	// DetectedAt defaults to now
	DetectedAt time.Time
	// Start is when the attack began; DetectedAt when zero
	Start time.Time
}

func (inc Incident) normalize() (Incident, *string, error) {
	if inc.AttackType == "" {
		inc.AttackType = AttackUDPFlood
	}
	known := false
	for _, t := range AttackTypes {
		if inc.AttackType == t {
			known = true
			break
		}
	}
	if !known {
		return inc, nil, fmt.Errorf("%w: %s", ErrUnknownAttackType, inc.AttackType)
	}
	if inc.PacketsPerSecondPeak != nil && *inc.PacketsPerSecondPeak < 0 {
		return inc, nil, fmt.Errorf("packets per second must not be negative: %d", *inc.PacketsPerSecondPeak)
	}

	var target *string
	if inc.TargetIP != "" {
		addr, err := netaddr.Canonical(inc.TargetIP)
		if err != nil {
			return inc, nil, err
		}
		target = &addr
	}
	if inc.DetectedAt.IsZero() {
		inc.DetectedAt = time.Now()
	}
	inc.DetectedAt = inc.DetectedAt.UTC()
	if inc.Start.IsZero() {
		inc.Start = inc.DetectedAt
	}
	inc.Start = inc.Start.UTC()
	return inc, target, nil
}

// MarkDDoS flags the match as attacked and records the incident. ddos_start
// only moves earlier when a match is reported more than once.
func (s *sqliteStore) MarkDDoS(ctx context.Context, matchUID int64, inc Incident) (*schema.DDoSIncident, error) {
	inc, target, err := inc.normalize()
	if err != nil {
		return nil, err
	}

	row := &schema.DDoSIncident{
		MatchUID:             matchUID,
		TargetIP:             target,
		DetectedAt:           inc.DetectedAt,
		AttackType:           inc.AttackType,
		PacketsPerSecondPeak: inc.PacketsPerSecondPeak,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m schema.Match
		if err := tx.Where("uid = ?", matchUID).First(&m).Error; err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: %d", ErrMatchNotFound, matchUID)
			}
			return fmt.Errorf("failed to get match %d: %w", matchUID, err)
		}

		updates := map[string]any{"ddos_detected": true}
		if m.DDoSStart == nil || inc.Start.Before(*m.DDoSStart) {
			updates["ddos_start"] = inc.Start
		}
		if err := tx.Model(&m).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update match %d: %w", matchUID, err)
		}
		if err := tx.Omit(clause.Associations).Create(row).Error; err != nil {
			return fmt.Errorf("failed to create incident: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// UnmarkDDoS clears the attack flag of a match and deletes its incidents. It
// returns the number of incidents deleted.
func (s *sqliteStore) UnmarkDDoS(ctx context.Context, matchUID int64) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&schema.Match{}).Where("uid = ?", matchUID).
			Updates(map[string]any{"ddos_detected": false, "ddos_start": nil})
		if res.Error != nil {
			return fmt.Errorf("failed to update match %d: %w", matchUID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", ErrMatchNotFound, matchUID)
		}

		res = tx.Where("match_uid = ?", matchUID).Delete(&schema.DDoSIncident{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete incidents of match %d: %w", matchUID, res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// SetRiskScores stores computed scores. Players missing from scores are reset to 0.
func (s *sqliteStore) SetRiskScores(ctx context.Context, scores map[int64]float64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&schema.Player{}).Where("risk_score <> ?", 0).Update("risk_score", 0).Error; err != nil {
			return fmt.Errorf("failed to reset risk scores: %w", err)
		}
		for uid, score := range scores {
			if score == 0 {
				continue
			}
			if err := tx.Model(&schema.Player{}).Where("uid = ?", uid).Update("risk_score", score).Error; err != nil {
				return fmt.Errorf("failed to store risk score of %d: %w", uid, err)
			}
		}
		return nil
	})
}
