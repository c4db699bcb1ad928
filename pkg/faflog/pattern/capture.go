package pattern

// Capture holds the typed fields extracted by one rule match.
type Capture struct {
	// Rule is the ID of the matching rule.
	Rule string

	values map[string]any
}

// Has reports whether field name was captured. Optional fields that were
// empty in the line are not present.
func (c *Capture) Has(name string) bool {
	_, ok := c.values[name]
	return ok
}

// Int returns the int field name, or 0 if absent or not an int.
func (c *Capture) Int(name string) int64 {
	n, _ := c.values[name].(int64)
	return n
}

// String returns the string field name, or "" if absent or not a string.
func (c *Capture) String(name string) string {
	s, _ := c.values[name].(string)
	return s
}
