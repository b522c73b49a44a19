// Package dn implements distinguished names: compound, hierarchical
// identifiers for directory entries.
//
// A DN linearises to a string like "CN=users,DC=example,DC=com" with the
// leaf-most component first. Special DNs start with '@' (for example
// "@INDEXLIST") and have no component structure. A DN may carry extended
// components of the form "<GUID=...>;" ahead of the regular components.
package dn

import (
	"fmt"
	"strings"
)

// Component is a single relative DN: an attribute name and a value.
type Component struct {
	Name  string
	Value string
}

// Extended is an extended DN component such as <GUID=...>.
type Extended struct {
	Name  string
	Value string
}

// DN is a parsed distinguished name.
type DN struct {
	components []Component
	extended   []Extended

	// special holds the raw string for '@'-prefixed DNs, which have no
	// component structure.
	special string

	linearised string // cached String() result
	folded     string // cached CaseFold() result
}

// Parse parses a linearised DN string.
//
// Supported grammar:
//
//	dn        := { "<" NAME "=" VALUE ">" ";" } rdnlist | "@" SPECIAL
//	rdnlist   := rdn { "," rdn }
//	rdn       := NAME "=" VALUE
//
// Backslash escapes a comma, equals sign, angle bracket or backslash inside
// a value. The empty string parses to the root DN.
func Parse(s string) (*DN, error) {
	if strings.HasPrefix(s, "@") {
		return &DN{special: s}, nil
	}

	d := &DN{}

	// Extended components prefix the regular ones.
	for strings.HasPrefix(s, "<") {
		end := indexUnescaped(s, '>')
		if end < 0 {
			return nil, fmt.Errorf("dn: unterminated extended component in %q", s)
		}
		inner := s[1:end]
		eq := strings.IndexByte(inner, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("dn: malformed extended component %q", inner)
		}
		d.extended = append(d.extended, Extended{
			Name:  strings.ToUpper(inner[:eq]),
			Value: inner[eq+1:],
		})
		s = s[end+1:]
		s = strings.TrimPrefix(s, ";")
	}

	if s == "" {
		return d, nil
	}

	for _, part := range splitUnescaped(s, ',') {
		eq := indexUnescaped(part, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("dn: component %q has no attribute name", part)
		}
		name := strings.TrimSpace(part[:eq])
		value := unescape(strings.TrimSpace(part[eq+1:]))
		if name == "" || value == "" {
			return nil, fmt.Errorf("dn: empty name or value in component %q", part)
		}
		d.components = append(d.components, Component{Name: name, Value: value})
	}

	return d, nil
}

// MustParse parses s and panics on error. For tests and literals.
func MustParse(s string) *DN {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsSpecial reports whether the DN is an '@'-prefixed special DN.
func (d *DN) IsSpecial() bool {
	return d.special != ""
}

// IsRoot reports whether the DN is the empty root DN.
func (d *DN) IsRoot() bool {
	return d.special == "" && len(d.components) == 0
}

// NumComponents returns the number of regular components.
func (d *DN) NumComponents() int {
	return len(d.components)
}

// Component returns the i-th component, leaf first.
func (d *DN) Component(i int) Component {
	return d.components[i]
}

// ExtendedComponent returns the value of the named extended component.
func (d *DN) ExtendedComponent(name string) (string, bool) {
	for _, e := range d.extended {
		if e.Name == strings.ToUpper(name) {
			return e.Value, true
		}
	}
	return "", false
}

// String returns the linearised form without extended components.
func (d *DN) String() string {
	if d.special != "" {
		return d.special
	}
	if d.linearised == "" && len(d.components) > 0 {
		parts := make([]string, len(d.components))
		for i, c := range d.components {
			parts[i] = c.Name + "=" + escape(c.Value)
		}
		d.linearised = strings.Join(parts, ",")
	}
	return d.linearised
}

// ExtendedString returns the linearised form including extended components.
func (d *DN) ExtendedString() string {
	if len(d.extended) == 0 {
		return d.String()
	}
	var b strings.Builder
	for _, e := range d.extended {
		b.WriteByte('<')
		b.WriteString(e.Name)
		b.WriteByte('=')
		b.WriteString(e.Value)
		b.WriteString(">;")
	}
	b.WriteString(d.String())
	return b.String()
}

// CaseFold returns the normalised linearised form used in storage keys:
// attribute names and values upper-cased. Special DNs fold to themselves.
func (d *DN) CaseFold() string {
	if d.special != "" {
		return d.special
	}
	if d.folded == "" && len(d.components) > 0 {
		parts := make([]string, len(d.components))
		for i, c := range d.components {
			parts[i] = strings.ToUpper(c.Name) + "=" + strings.ToUpper(escape(c.Value))
		}
		d.folded = strings.Join(parts, ",")
	}
	return d.folded
}

// Parent returns the DN with the leaf component removed. The parent of a
// one-component DN is the root DN. Special and root DNs have no parent.
func (d *DN) Parent() (*DN, bool) {
	if d.special != "" || len(d.components) == 0 {
		return nil, false
	}
	return &DN{components: d.components[1:]}, true
}

// Equal compares two DNs by their case-folded form.
func (d *DN) Equal(other *DN) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.CaseFold() == other.CaseFold()
}

// IsChildOf reports whether d is an immediate child of parent.
func (d *DN) IsChildOf(parent *DN) bool {
	p, ok := d.Parent()
	if !ok {
		return false
	}
	return p.Equal(parent)
}

// IsDescendantOf reports whether parent is a (non-strict) ancestor of d.
// A DN is a descendant of the root DN and of itself.
func (d *DN) IsDescendantOf(parent *DN) bool {
	if d.special != "" || parent.special != "" {
		return d.Equal(parent)
	}
	n := len(d.components) - len(parent.components)
	if n < 0 {
		return false
	}
	suffix := &DN{components: d.components[n:]}
	return suffix.Equal(parent)
}

// indexUnescaped returns the index of the first unescaped occurrence of c.
func indexUnescaped(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case c:
			return i
		}
	}
	return -1
}

// splitUnescaped splits s on unescaped occurrences of sep.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func escape(v string) string {
	if !strings.ContainsAny(v, ",=<>\\") {
		return v
	}
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case ',', '=', '<', '>', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(v[i])
	}
	return b.String()
}

func unescape(v string) string {
	if !strings.ContainsRune(v, '\\') {
		return v
	}
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		if v[i] == '\\' && i+1 < len(v) {
			i++
		}
		b.WriteByte(v[i])
	}
	return b.String()
}
