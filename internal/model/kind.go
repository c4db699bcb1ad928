package model

import "strings"

// CandidateKind classifies how an IP address was discovered.
type CandidateKind string

const (
	KindUnknown         CandidateKind = "unknown"
	KindHostLocal       CandidateKind = "host-local"
	KindServerReflexive CandidateKind = "server-reflexive"
	KindRelayed         CandidateKind = "relayed"
)

// Rank orders kinds by specificity. Server-reflexive and relayed share the top rank.
func (k CandidateKind) Rank() int {
	switch k {
	case KindServerReflexive, KindRelayed:
		return 2
	case KindHostLocal:
		return 1
	default:
		return 0
	}
}

// Valid reports whether k is one of the known kinds.
func (k CandidateKind) Valid() bool {
	switch k {
	case KindUnknown, KindHostLocal, KindServerReflexive, KindRelayed:
		return true
	}
	return false
}

// Refine returns the classification to keep when an address already classified
// as current is observed again as observed. The observation wins only when it is
// at least as specific as what is already known.
func Refine(current, observed CandidateKind) CandidateKind {
	if !current.Valid() {
		current = KindUnknown
	}
	if !observed.Valid() {
		return current
	}
	if observed.Rank() >= current.Rank() {
		return observed
	}
	return current
}

// ParseCandidateType maps an ICE candidate type as logged by the client or ice
// adapter ("SERVER_REFLEXIVE_CANDIDATE", "srflx", "HOSTCANDIDATE", ...) to a kind.
func ParseCandidateType(s string) CandidateKind {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	norm = strings.TrimSuffix(norm, "CANDIDATE")
	switch norm {
	case "HOST":
		return KindHostLocal
	case "SERVERREFLEXIVE", "SRFLX":
		return KindServerReflexive
	case "RELAYED", "RELAY":
		return KindRelayed
	}
	return KindUnknown
}
