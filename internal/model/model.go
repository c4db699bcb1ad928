// Package model holds the types shared by the log parsers, the store and the analysis layer.
package model

import (
	"fmt"
	"strings"
)

// Category identifies which family of log files a file belongs to.
type Category string

const (
	CategoryGame   Category = "game"
	CategoryClient Category = "client"
)

// Categories lists every category in ingestion order.
var Categories = []Category{CategoryGame, CategoryClient}

// ParseCategory parses a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryGame:
		return CategoryGame, nil
	case CategoryClient:
		return CategoryClient, nil
	}
	return "", fmt.Errorf("unknown log category %q", s)
}

// Role is a player's role within one match.
type Role string

const (
	RoleHost     Role = "host"
	RolePlayer   Role = "player"
	RoleObserver Role = "observer"
)

// Provenance records which source produced a player/IP binding.
type Provenance string

const (
	ProvenanceICE     Provenance = "ICE"
	ProvenanceGameLog Provenance = "GAME_LOG"
	ProvenanceManual  Provenance = "MANUAL"
)

// EventKind classifies a connection event.
type EventKind string

const (
	EventConnect        EventKind = "connect"
	EventDisconnect     EventKind = "disconnect"
	EventPeerConnect    EventKind = "peer-connect"
	EventPeerDisconnect EventKind = "peer-disconnect"
	EventICEMessage     EventKind = "ice-message"
	EventGameClosed     EventKind = "game-closed"
)

// ICEStateEvent returns the event kind for an ICE connection state change,
// e.g. "ice-connected" or "ice-failed".
func ICEStateEvent(state string) EventKind {
	return EventKind("ice-" + strings.ToLower(state))
}

// PlaceholderNickname is the nickname given to players known only by UID.
func PlaceholderNickname(uid int64) string {
	return fmt.Sprintf("UNKNOWN_%d", uid)
}
