// Package message defines directory messages (a DN plus a multi-valued
// attribute map) and their packed on-disk representation.
package message

import (
	"bytes"
	"strings"

	"github.com/Aman-CERP/dirkv/internal/dn"
)

// Value is a single attribute value. Values are opaque bytes; interpretation
// is up to the attribute's schema syntax.
type Value []byte

// Element is a named, multi-valued attribute.
type Element struct {
	Name   string
	Values []Value
}

// Message is a directory entry: a DN and its attributes.
type Message struct {
	DN       *dn.DN
	Elements []Element
}

// New returns an empty message with the given DN.
func New(d *dn.DN) *Message {
	return &Message{DN: d}
}

// Element returns the named element, or nil. Attribute names compare
// case-insensitively.
func (m *Message) Element(name string) *Element {
	for i := range m.Elements {
		if strings.EqualFold(m.Elements[i].Name, name) {
			return &m.Elements[i]
		}
	}
	return nil
}

// Add appends a value to the named element, creating the element if needed.
func (m *Message) Add(name string, value []byte) {
	if el := m.Element(name); el != nil {
		el.Values = append(el.Values, Value(value))
		return
	}
	m.Elements = append(m.Elements, Element{
		Name:   name,
		Values: []Value{Value(value)},
	})
}

// Set replaces all values of the named element.
func (m *Message) Set(name string, values ...[]byte) {
	vals := make([]Value, len(values))
	for i, v := range values {
		vals[i] = Value(v)
	}
	if el := m.Element(name); el != nil {
		el.Values = vals
		return
	}
	m.Elements = append(m.Elements, Element{Name: name, Values: vals})
}

// Remove deletes the named element. Reports whether it was present.
func (m *Message) Remove(name string) bool {
	for i := range m.Elements {
		if strings.EqualFold(m.Elements[i].Name, name) {
			m.Elements = append(m.Elements[:i], m.Elements[i+1:]...)
			return true
		}
	}
	return false
}

// HasValue reports whether the named element contains an exactly equal value.
func (m *Message) HasValue(name string, value []byte) bool {
	el := m.Element(name)
	if el == nil {
		return false
	}
	for _, v := range el.Values {
		if bytes.Equal(v, value) {
			return true
		}
	}
	return false
}
