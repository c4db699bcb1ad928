package schema

import "time"

// ConnectionEvent represents the connection_events table - append-only, one row per client log line
type ConnectionEvent struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Timestamp    time.Time `gorm:"column:timestamp;not null;index"`
	SrcPlayerUID *int64    `gorm:"column:src_player_uid;index"`
	DstPlayerUID *int64    `gorm:"column:dst_player_uid;index"`
	MatchUID     *int64    `gorm:"column:match_uid;index"`
	Kind         string    `gorm:"column:kind;not null"`
	Raw          string    `gorm:"column:raw;not null"`
	SourceFile   string    `gorm:"column:source_file;not null;index"`
	LineNumber   int       `gorm:"column:line_number;not null"`

	// Associations
	Src   *Player `gorm:"foreignKey:SrcPlayerUID;references:UID;constraint:OnDelete:SET NULL"`
	Dst   *Player `gorm:"foreignKey:DstPlayerUID;references:UID;constraint:OnDelete:SET NULL"`
	Match *Match  `gorm:"foreignKey:MatchUID;references:UID;constraint:OnDelete:SET NULL"`
}

// TableName specifies the table name for the ConnectionEvent model
func (ConnectionEvent) TableName() string {
	return "connection_events"
}
