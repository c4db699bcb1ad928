package pattern

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// MaxPatternFileSize is the maximum allowed size for a pattern file (1MB).
	MaxPatternFileSize = 1 * 1024 * 1024

	// MaxPatternLength is the maximum allowed length of a single regex (512 bytes).
	// Long expressions are rejected before compilation.
	MaxPatternLength = 512

	// MaxPatternCount is the maximum number of patterns allowed in a pattern file.
	MaxPatternCount = 1000

	// SupportedVersion is the currently supported pattern file format version.
	SupportedVersion = 1
)

var knownCategories = map[string]bool{Game: true, Client: true}

// stripPath drops the file path from an *os.PathError so error messages
// shown to operators only carry the operation and cause.
func stripPath(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%s: %w", pathErr.Op, pathErr.Err)
	}
	return err
}

// Load reads, parses and validates a pattern file.
//
// The file is opened before it is stat-ed so the check applies to the
// descriptor that is read. FIFOs, devices and other special files are
// rejected, and the read is bounded by MaxPatternFileSize.
func Load(path string) (*PatternFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern file: %w", stripPath(err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat pattern file: %w", stripPath(err))
	}
	if !info.Mode().IsRegular() {
		return nil, errors.New("pattern file must be a regular file (not FIFO, device, or special file)")
	}
	if info.Size() == 0 {
		return nil, errors.New("pattern file is empty")
	}
	if info.Size() > MaxPatternFileSize {
		return nil, fmt.Errorf("pattern file too large: %d bytes (max %d)", info.Size(), MaxPatternFileSize)
	}

	// One extra byte detects a file that grew after Stat.
	data, err := io.ReadAll(io.LimitReader(f, MaxPatternFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", stripPath(err))
	}

	return LoadBytes(data)
}

// LoadBytes parses and validates a pattern file held in memory.
func LoadBytes(data []byte) (*PatternFile, error) {
	if len(data) == 0 {
		return nil, errors.New("pattern file is empty")
	}
	if len(data) > MaxPatternFileSize {
		return nil, fmt.Errorf("pattern file too large: %d bytes (max %d)", len(data), MaxPatternFileSize)
	}

	var pf PatternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := pf.Validate(); err != nil {
		return nil, err
	}
	return &pf, nil
}

// Validate performs schema-level validation on the pattern file.
// It checks for:
//   - Supported version number
//   - Pattern count bounds
//   - Required fields (id, category, regex) and known categories
//   - Unique pattern IDs
//   - Regex length limits
//   - Known field types
//   - Complete timestamp rules
//
// Regular expressions are not compiled here; Compile does that and checks that
// every declared field names a capture group.
func (pf *PatternFile) Validate() error {
	if pf.Version != SupportedVersion {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (only version %d is supported)", pf.Version, SupportedVersion),
		}
	}
	if len(pf.Patterns) == 0 {
		return &ValidationError{
			Field:   "patterns",
			Message: "at least one pattern is required",
		}
	}
	if len(pf.Patterns) > MaxPatternCount {
		return &ValidationError{
			Field:   "patterns",
			Message: fmt.Sprintf("too many patterns (%d), maximum allowed is %d", len(pf.Patterns), MaxPatternCount),
		}
	}

	for i, ts := range pf.Timestamps {
		field := fmt.Sprintf("timestamps[%d]", i)
		switch {
		case !knownCategories[ts.Category]:
			return &ValidationError{Field: field, Message: fmt.Sprintf("unknown category %q", ts.Category)}
		case ts.Regex == "":
			return &ValidationError{Field: field, Message: "regex is required"}
		case len(ts.Regex) > MaxPatternLength:
			return &ValidationError{Field: field, Message: fmt.Sprintf("pattern too long: %d bytes (max %d)", len(ts.Regex), MaxPatternLength)}
		case ts.Layout == "":
			return &ValidationError{Field: field, Message: "layout is required"}
		}
	}

	seenIDs := make(map[string]int, len(pf.Patterns))
	for i, p := range pf.Patterns {
		if p.ID == "" {
			return &PatternError{Index: i, Field: "id", Message: "id is required"}
		}
		if p.Category == "" {
			return &PatternError{Index: i, ID: p.ID, Field: "category", Message: "category is required"}
		}
		if !knownCategories[p.Category] {
			return &PatternError{Index: i, ID: p.ID, Field: "category", Message: fmt.Sprintf("unknown category %q", p.Category)}
		}
		if p.Regex == "" {
			return &PatternError{Index: i, ID: p.ID, Field: "regex", Message: "regex is required"}
		}

		if prev, exists := seenIDs[p.ID]; exists {
			return &PatternError{
				Index:   i,
				ID:      p.ID,
				Field:   "id",
				Message: fmt.Sprintf("duplicate id (previously defined at pattern[%d])", prev),
			}
		}
		seenIDs[p.ID] = i

		if len(p.Regex) > MaxPatternLength {
			return &PatternError{
				Index:   i,
				ID:      p.ID,
				Field:   "regex",
				Message: fmt.Sprintf("pattern too long: %d bytes (max %d)", len(p.Regex), MaxPatternLength),
			}
		}

		for name, f := range p.Fields {
			switch f.Type {
			case FieldString, FieldInt:
			default:
				return &PatternError{
					Index:   i,
					ID:      p.ID,
					Field:   "fields." + name,
					Message: fmt.Sprintf("unknown type %q (want string or int)", f.Type),
				}
			}
		}
	}

	return nil
}
