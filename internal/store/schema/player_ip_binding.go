package schema

import "time"

// PlayerIPBinding represents the player_ip_bindings table - a player seen behind an address
type PlayerIPBinding struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	PlayerUID int64  `gorm:"column:player_uid;not null;uniqueIndex:idx_player_ip_bindings_key,priority:1"`
	Address   string `gorm:"column:address;not null;type:text;uniqueIndex:idx_player_ip_bindings_key,priority:2;index"`
	// Provenance is ICE, GAME_LOG or MANUAL
	Provenance string    `gorm:"column:provenance;not null;uniqueIndex:idx_player_ip_bindings_key,priority:3"`
	FirstSeen  time.Time `gorm:"column:first_seen;not null"`
	LastSeen   time.Time `gorm:"column:last_seen;not null"`

	// Associations
	Player Player `gorm:"foreignKey:PlayerUID;references:UID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the PlayerIPBinding model
func (PlayerIPBinding) TableName() string {
	return "player_ip_bindings"
}
