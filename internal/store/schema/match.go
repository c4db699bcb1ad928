package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Match represents the matches table - one row per FAF match UID
type Match struct {
	// UID is the match ID from the game log file name
	UID      int64  `gorm:"column:uid;primaryKey;autoIncrement:false"`
	Title    string `gorm:"column:title;not null;default:''"`
	MapName  string `gorm:"column:map_name;not null;default:''"`
	GameType string `gorm:"column:game_type;not null;default:''"`
	// HostUID references the hosting player, if known
	HostUID   *int64     `gorm:"column:host_uid;index"`
	StartedAt *time.Time `gorm:"column:started_at"`
	// EndedAt is set when a terminal event is observed
	EndedAt *time.Time `gorm:"column:ended_at"`
	// RawPayload is the embedded match metadata object as logged
	RawPayload datatypes.JSON `gorm:"column:raw_payload"`
	// DDoSDetected is set by the operator when the match was attacked
	DDoSDetected bool `gorm:"column:ddos_detected;not null;default:false;index"`
	// DDoSStart is the earliest reported attack time
	DDoSStart *time.Time `gorm:"column:ddos_start"`
	// SourceFile is the game log the metadata came from; empty for stubs created from client logs
	SourceFile string    `gorm:"column:source_file;not null;default:''"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Associations
	Host *Player `gorm:"foreignKey:HostUID;references:UID;constraint:OnDelete:SET NULL"`
}

// TableName specifies the table name for the Match model
func (Match) TableName() string {
	return "matches"
}
