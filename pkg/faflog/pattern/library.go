package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Library is a compiled rule set.
//
// Library is safe for concurrent use by multiple goroutines.
type Library struct {
	version int
	rules   map[string][]*rule // line rules per category, in file order
	byID    map[string]*rule
	stamps  map[string][]*stampRule
}

type rule struct {
	id       string
	category string
	re       *regexp.Regexp
	fields   map[string]Field
	index    map[string]int // field name -> submatch index
	fragment bool
}

type stampRule struct {
	re     *regexp.Regexp
	group  int
	layout string
}

// Compile compiles every rule of pf into a Library.
// Returns a *PatternError if a regex does not compile or a declared field
// has no matching named group.
func Compile(pf *PatternFile) (*Library, error) {
	if pf == nil {
		return nil, errors.New("pattern file is nil")
	}

	lib := &Library{
		version: pf.Version,
		rules:   make(map[string][]*rule),
		byID:    make(map[string]*rule, len(pf.Patterns)),
		stamps:  make(map[string][]*stampRule),
	}

	for i, ts := range pf.Timestamps {
		re, err := regexp.Compile(ts.Regex)
		if err != nil {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("timestamps[%d]", i),
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			}
		}
		group := re.SubexpIndex("ts")
		if group < 0 {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("timestamps[%d]", i),
				Message: `regex has no named group "ts"`,
			}
		}
		lib.stamps[ts.Category] = append(lib.stamps[ts.Category], &stampRule{re: re, group: group, layout: ts.Layout})
	}

	for i, p := range pf.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, &PatternError{
				Index:   i,
				ID:      p.ID,
				Field:   "regex",
				Message: fmt.Sprintf("invalid regular expression: %v", err),
				Cause:   err,
			}
		}

		r := &rule{
			id:       p.ID,
			category: p.Category,
			re:       re,
			fields:   p.Fields,
			index:    make(map[string]int, len(p.Fields)),
			fragment: p.Fragment,
		}
		for name := range p.Fields {
			idx := re.SubexpIndex(name)
			if idx < 0 {
				return nil, &PatternError{
					Index:   i,
					ID:      p.ID,
					Field:   "fields." + name,
					Message: "no named capture group with this name",
				}
			}
			r.index[name] = idx
		}

		lib.byID[p.ID] = r
		if !p.Fragment {
			lib.rules[p.Category] = append(lib.rules[p.Category], r)
		}
	}

	return lib, nil
}

// LoadLibrary loads a pattern file and compiles it in one step.
func LoadLibrary(path string) (*Library, error) {
	pf, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Compile(pf)
}

// Version returns the format version of the compiled file.
func (l *Library) Version() int {
	return l.version
}

// Rules returns the IDs of the line rules of a category in match order.
func (l *Library) Rules(category string) []string {
	rules := l.rules[category]
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.id
	}
	return ids
}

// Match applies the rules of category to line and returns the first match.
//
// Returns (capture, nil) on a match, (nil, nil) when no rule matches and
// (nil, *FieldError) when the first matching rule has a malformed int field.
// A rule whose required field is empty is treated as not matching.
func (l *Library) Match(category, line string) (*Capture, error) {
	for _, r := range l.rules[category] {
		m := r.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		c, err := r.capture(m)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
	}
	return nil, nil
}

// MatchRule applies the single rule id to line.
func (l *Library) MatchRule(id, line string) (*Capture, error) {
	r, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown rule %q", id)
	}
	m := r.re.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	return r.capture(m)
}

// MatchAll returns the captures of every non-overlapping match of rule id in
// text. Matches with malformed fields are left out and reported in the
// returned error, joined.
func (l *Library) MatchAll(id, text string) ([]*Capture, error) {
	r, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown rule %q", id)
	}
	var (
		out  []*Capture
		errs []error
	)
	for _, m := range r.re.FindAllStringSubmatch(text, -1) {
		c, err := r.capture(m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if c != nil {
			out = append(out, c)
		}
	}
	return out, errors.Join(errs...)
}

// Timestamp extracts the leading timestamp of line using the timestamp rules
// of category. The result is in UTC. Returns false if no rule applies.
func (l *Library) Timestamp(category, line string) (time.Time, bool) {
	for _, s := range l.stamps[category] {
		m := s.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ts, err := time.ParseInLocation(s.layout, m[s.group], time.UTC)
		if err != nil {
			continue
		}
		return ts.UTC(), true
	}
	return time.Time{}, false
}

func (r *rule) capture(m []string) (*Capture, error) {
	c := &Capture{Rule: r.id, values: make(map[string]any, len(r.fields))}
	for name, f := range r.fields {
		raw := strings.TrimSpace(m[r.index[name]])
		if raw == "" {
			if f.Optional {
				continue
			}
			return nil, nil
		}
		switch f.Type {
		case FieldInt:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, &FieldError{Rule: r.id, Field: name, Value: raw, Err: err}
			}
			c.values[name] = n
		default:
			c.values[name] = raw
		}
	}
	return c, nil
}
