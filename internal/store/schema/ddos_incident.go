package schema

import "time"

// DDoSIncident represents the ddos_incidents table - an operator report of an attack during a match
type DDoSIncident struct {
	ID       int64 `gorm:"column:id;primaryKey;autoIncrement"`
	MatchUID int64 `gorm:"column:match_uid;not null;index"`
	// TargetIP is the attacked address, when known
	TargetIP   *string   `gorm:"column:target_ip;type:text;index"`
	DetectedAt time.Time `gorm:"column:detected_at;not null;index"`
	// AttackType is udp_flood, icmp_flood or tcp_syn
	AttackType           string    `gorm:"column:attack_type;not null"`
	PacketsPerSecondPeak *int64    `gorm:"column:pps_peak"`
	Mitigated            bool      `gorm:"column:mitigated;not null;default:false"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`

	// Associations
	Match Match `gorm:"foreignKey:MatchUID;references:UID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the DDoSIncident model
func (DDoSIncident) TableName() string {
	return "ddos_incidents"
}
