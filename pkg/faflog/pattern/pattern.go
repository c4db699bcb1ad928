// Package pattern provides the line pattern library used to extract structured
// captures from FAF game and client log lines.
//
// Rules are defined in a versioned YAML document. Each rule belongs to a log
// category, carries a regular expression with named capture groups and declares
// the type of every group it exposes. A built-in rule set is embedded in the
// package (see [Builtin]); an alternative file can be loaded with [Load].
package pattern

// Categories understood by the library.
const (
	Game   = "game"
	Client = "client"
)

// PatternFile represents the structure of a YAML pattern file.
//
// Example YAML file:
//
//	version: 1
//	timestamps:
//	  - category: client
//	    regex: '^(?P<ts>\S+)\s'
//	    layout: '2006-01-02T15:04:05Z07:00'
//	patterns:
//	  - id: ice_state
//	    category: client
//	    regex: 'ICE connection state for peer (?P<uid>\d+) changed to (?P<state>\w+)'
//	    fields:
//	      uid: {type: int}
//	      state: {type: string}
type PatternFile struct {
	// Version is the pattern file format version. Currently only version 1 is supported.
	Version int `yaml:"version"`

	// Timestamps lists the timestamp rules, tried in order for lines of their category.
	Timestamps []TimestampRule `yaml:"timestamps"`

	// Patterns is the list of extraction rules.
	Patterns []Pattern `yaml:"patterns"`
}

// TimestampRule extracts the leading timestamp of a log line.
// The regex must contain a named group "ts" which is parsed with Layout.
// Timestamps without a zone are interpreted as UTC.
type TimestampRule struct {
	Category string `yaml:"category"`
	Regex    string `yaml:"regex"`
	Layout   string `yaml:"layout"`
}

// Pattern represents a single extraction rule.
type Pattern struct {
	// ID is a unique identifier for this rule (e.g., "connect_to_peer").
	ID string `yaml:"id"`

	// Category is the log category the rule applies to.
	Category string `yaml:"category"`

	// Regex is the regular expression matched against the line.
	Regex string `yaml:"regex"`

	// Fields declares the named groups exposed by the capture and their types.
	Fields map[string]Field `yaml:"fields"`

	// Fragment rules never match whole lines; they are applied with
	// Library.MatchAll to a piece of text extracted by another rule.
	Fragment bool `yaml:"fragment"`
}

// FieldType is the type of a captured field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
)

// Field describes one captured field.
type Field struct {
	Type FieldType `yaml:"type"`
	// Optional fields may be empty without turning the match into a non-match.
	Optional bool `yaml:"optional"`
}
