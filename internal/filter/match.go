package filter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Aman-CERP/dirkv/internal/message"
	"github.com/Aman-CERP/dirkv/internal/schema"
)

// Match evaluates a filter tree against a message using schema syntaxes for
// value comparison. The special attribute "dn" matches against the message
// DN itself.
func Match(reg *schema.Registry, msg *message.Message, n *Node) (bool, error) {
	switch n.Kind {
	case And:
		for _, c := range n.Children {
			ok, err := Match(reg, msg, c)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case Or:
		for _, c := range n.Children {
			ok, err := Match(reg, msg, c)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case Not:
		ok, err := Match(reg, msg, n.Children[0])
		return !ok, err

	case Equality:
		return matchEquality(reg, msg, n), nil

	case Present:
		if strings.EqualFold(n.Attr, "dn") {
			return true, nil
		}
		return msg.Element(n.Attr) != nil, nil

	case Substring:
		return matchSubstring(msg, n), nil

	case Greater, Less:
		return matchOrdering(reg, msg, n), nil

	case Approx:
		// Approximate match degrades to equality under the attribute's syntax.
		eq := &Node{Kind: Equality, Attr: n.Attr, Value: n.Value}
		return matchEquality(reg, msg, eq), nil

	case Extended:
		return false, fmt.Errorf("filter: extended match not supported")
	}
	return false, fmt.Errorf("filter: unknown node kind %d", n.Kind)
}

func matchEquality(reg *schema.Registry, msg *message.Message, n *Node) bool {
	if strings.EqualFold(n.Attr, "dn") {
		attr := reg.AttributeByName(n.Attr)
		return attr.Syntax.Compare([]byte(msg.DN.String()), n.Value) == 0
	}

	el := msg.Element(n.Attr)
	if el == nil {
		return false
	}
	attr := reg.AttributeByName(n.Attr)
	for _, v := range el.Values {
		if attr.Syntax.Compare(v, n.Value) == 0 {
			return true
		}
	}
	return false
}

func matchSubstring(msg *message.Message, n *Node) bool {
	el := msg.Element(n.Attr)
	if el == nil {
		return false
	}
	for _, v := range el.Values {
		if substringMatches(bytes.ToUpper(v), n) {
			return true
		}
	}
	return false
}

// substringMatches checks the chunk sequence against an upper-folded value.
func substringMatches(val []byte, n *Node) bool {
	rest := val
	for i, chunk := range n.Chunks {
		c := bytes.ToUpper(chunk)
		idx := bytes.Index(rest, c)
		if idx < 0 {
			return false
		}
		if i == 0 && n.StartAnchored && idx != 0 {
			return false
		}
		rest = rest[idx+len(c):]
	}
	if n.EndAnchored && len(rest) != 0 {
		return false
	}
	return true
}

func matchOrdering(reg *schema.Registry, msg *message.Message, n *Node) bool {
	el := msg.Element(n.Attr)
	if el == nil {
		return false
	}
	attr := reg.AttributeByName(n.Attr)
	for _, v := range el.Values {
		cmp := attr.Syntax.Compare(v, n.Value)
		if n.Kind == Greater && cmp >= 0 {
			return true
		}
		if n.Kind == Less && cmp <= 0 {
			return true
		}
	}
	return false
}
