// Package schema defines the gorm models of the log store.
package schema

// Models lists every model in creation order; tables are dropped in reverse.
func Models() []any {
	return []any{
		&Player{},
		&PlayerNickname{},
		&Match{},
		&MatchParticipation{},
		&IPAddress{},
		&PlayerIPBinding{},
		&PlayerIPMatch{},
		&ConnectionEvent{},
		&DDoSIncident{},
		&ProcessedFile{},
	}
}
