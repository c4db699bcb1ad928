package schema

import "time"

// ProcessedFile represents the processed_files table - the ingestion idempotency guard
type ProcessedFile struct {
	// Path is the absolute path of the log file
	Path     string `gorm:"column:path;primaryKey;type:text"`
	Category string `gorm:"column:category;not null;index"`
	// ModTime is the file's modification time at parse, in unix nanoseconds
	ModTime  int64     `gorm:"column:mod_time;not null"`
	ParsedAt time.Time `gorm:"column:parsed_at;not null"`
	// RunID identifies the ingest run that committed the file
	RunID string `gorm:"column:run_id;not null;default:''"`
}

// TableName specifies the table name for the ProcessedFile model
func (ProcessedFile) TableName() string {
	return "processed_files"
}
