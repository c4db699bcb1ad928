// Package store persists parsed log transcripts into a normalized SQLite
// database, merging every row by its natural key.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dann1kid/faf-ddos-incidents/internal/model"
	"github.com/dann1kid/faf-ddos-incidents/internal/store/schema"
)

// ErrPlayerNotFound is returned by operator commands for an unknown UID.
var ErrPlayerNotFound = errors.New("player not found")

// Store defines the interface for database operations
type Store interface {
	// Migrate creates or updates every table
	Migrate(ctx context.Context) error
	// Reset drops every table and migrates again
	Reset(ctx context.Context) error
	// CommitSession merges a game session transcript in a single transaction
	CommitSession(ctx context.Context, tr *model.SessionTranscript, runID string) (CommitSummary, error)
	// CommitClient merges a client transcript in a single transaction
	CommitClient(ctx context.Context, tr *model.ClientTranscript, runID string) (CommitSummary, error)
	// ProcessedFile returns the processing record of path, or nil if it was never committed
	ProcessedFile(ctx context.Context, path string) (*schema.ProcessedFile, error)
	// Status returns row counts
	Status(ctx context.Context) (Status, error)
	// MarkSuspect sets or clears the suspect flag of a player
	MarkSuspect(ctx context.Context, uid int64, suspect bool, notes *string) error
	// BindManual records an operator-supplied binding between a player and an address
	BindManual(ctx context.Context, uid int64, address string, at time.Time) error
	// MarkDDoS flags a match as attacked and records the incident
	MarkDDoS(ctx context.Context, matchUID int64, inc Incident) (*schema.DDoSIncident, error)
	// UnmarkDDoS clears the attack flag of a match and deletes its incidents
	UnmarkDDoS(ctx context.Context, matchUID int64) (int64, error)
	// SetRiskScores stores computed player risk scores
	SetRiskScores(ctx context.Context, scores map[int64]float64) error
	// DB returns the underlying gorm handle for read-only queries
	DB() *gorm.DB
	// Close releases the database
	Close() error
}

// Counts is the number of rows created and updated for one entity.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

func (c *Counts) add(created bool) {
	if created {
		c.Created++
	} else {
		c.Updated++
	}
}

// CommitSummary describes the outcome of committing one file.
type CommitSummary struct {
	Path     string         `json:"path"`
	Category model.Category `json:"category"`
	MatchUID int64          `json:"match_uid,omitempty"`

	Players        Counts `json:"players"`
	Nicknames      Counts `json:"nicknames"`
	Matches        Counts `json:"matches"`
	Participations Counts `json:"participations"`
	IPs            Counts `json:"ips"`
	Bindings       Counts `json:"bindings"`
	IPMatches      Counts `json:"ip_matches"`

	EventsAppended int `json:"events_appended"`
	EventsReplaced int `json:"events_replaced"`
	// Dropped counts relations discarded because of an invalid address
	Dropped      int `json:"dropped"`
	SkippedLines int `json:"skipped_lines"`

	// Skipped is set when the file was not parsed because it is unchanged or unusable
	Skipped bool  `json:"skipped"`
	Err     error `json:"-"`
}

// Status holds the row count of every table.
type Status struct {
	Players         int64 `json:"players"`
	Suspects        int64 `json:"suspects"`
	Matches         int64 `json:"matches"`
	Participations  int64 `json:"participations"`
	IPAddresses     int64 `json:"ip_addresses"`
	Bindings        int64 `json:"bindings"`
	IPMatches       int64 `json:"ip_matches"`
	Events          int64 `json:"connection_events"`
	DDoSMatches     int64 `json:"ddos_matches"`
	Incidents       int64 `json:"ddos_incidents"`
	ProcessedGame   int64 `json:"processed_game_files"`
	ProcessedClient int64 `json:"processed_client_files"`
}
