package schema

import "time"

// PlayerIPMatch represents the player_ip_matches table - a player seen behind an address during a match
type PlayerIPMatch struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PlayerUID int64     `gorm:"column:player_uid;not null;uniqueIndex:idx_player_ip_matches_key,priority:1"`
	Address   string    `gorm:"column:address;not null;type:text;uniqueIndex:idx_player_ip_matches_key,priority:2"`
	MatchUID  int64     `gorm:"column:match_uid;not null;uniqueIndex:idx_player_ip_matches_key,priority:3;index"`
	FirstSeen time.Time `gorm:"column:first_seen;not null"`
	LastSeen  time.Time `gorm:"column:last_seen;not null"`

	// Associations
	Player Player `gorm:"foreignKey:PlayerUID;references:UID;constraint:OnDelete:CASCADE"`
	Match  Match  `gorm:"foreignKey:MatchUID;references:UID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the PlayerIPMatch model
func (PlayerIPMatch) TableName() string {
	return "player_ip_matches"
}
