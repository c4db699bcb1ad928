package schema

import "time"

// PlayerNickname represents the player_nicknames table - every nickname a UID was seen under
type PlayerNickname struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	PlayerUID int64  `gorm:"column:player_uid;not null;uniqueIndex:idx_player_nicknames_key,priority:1"`
	Nickname  string `gorm:"column:nickname;not null;uniqueIndex:idx_player_nicknames_key,priority:2"`
	// Source is the log category the nickname came from
	Source    string    `gorm:"column:source;not null;uniqueIndex:idx_player_nicknames_key,priority:3"`
	FirstSeen time.Time `gorm:"column:first_seen;not null"`
	LastSeen  time.Time `gorm:"column:last_seen;not null"`

	// Associations
	Player Player `gorm:"foreignKey:PlayerUID;references:UID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the PlayerNickname model
func (PlayerNickname) TableName() string {
	return "player_nicknames"
}
