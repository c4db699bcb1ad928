package schema

import "time"

// MatchParticipation represents the match_participations table - a player's presence in a match
type MatchParticipation struct {
	ID        int64 `gorm:"column:id;primaryKey;autoIncrement"`
	PlayerUID int64 `gorm:"column:player_uid;not null;uniqueIndex:idx_match_participations_key,priority:1"`
	MatchUID  int64 `gorm:"column:match_uid;not null;uniqueIndex:idx_match_participations_key,priority:2;index"`
	Team      *int  `gorm:"column:team"`
	// Role is host, player or observer
	Role      string    `gorm:"column:role;not null;default:'player'"`
	FirstSeen time.Time `gorm:"column:first_seen;not null"`
	LastSeen  time.Time `gorm:"column:last_seen;not null"`

	// Associations
	Player Player `gorm:"foreignKey:PlayerUID;references:UID;constraint:OnDelete:CASCADE"`
	Match  Match  `gorm:"foreignKey:MatchUID;references:UID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the MatchParticipation model
func (MatchParticipation) TableName() string {
	return "match_participations"
}
