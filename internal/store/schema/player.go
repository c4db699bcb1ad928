package schema

import "time"

// Player represents the players table - one row per FAF account UID
type Player struct {
	// UID is the FAF network UID, the player's stable identity
	UID int64 `gorm:"column:uid;primaryKey;autoIncrement:false"`
	// Nickname is the most recently observed display name
	Nickname string `gorm:"column:nickname;not null;index"`
	// FirstSeen is the earliest sighting across all files
	FirstSeen time.Time `gorm:"column:first_seen;not null"`
	// LastSeen is the latest sighting across all files
	LastSeen time.Time `gorm:"column:last_seen;not null"`
	// IsSuspect is set by the operator
	IsSuspect bool `gorm:"column:is_suspect;not null;default:false"`
	// Notes is free text set by the operator
	Notes *string `gorm:"column:notes"`
	// RiskScore is the last computed incident score in [0, 1]
	RiskScore float64 `gorm:"column:risk_score;not null;default:0"`
	// IsLocal marks the account that wrote the logs
	IsLocal bool `gorm:"column:is_local;not null;default:false"`
	// Placeholder is true while only the UID is known
	Placeholder bool      `gorm:"column:placeholder;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for the Player model
func (Player) TableName() string {
	return "players"
}
