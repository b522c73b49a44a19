package index

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	direrrors "github.com/Aman-CERP/dirkv/internal/errors"
	"github.com/Aman-CERP/dirkv/internal/dn"
	"github.com/Aman-CERP/dirkv/internal/filter"
	"github.com/Aman-CERP/dirkv/internal/message"
	"github.com/Aman-CERP/dirkv/internal/store"
)

// Scope selects how far below the base DN a search reaches.
type Scope int

const (
	// ScopeDefault behaves exactly like ScopeSubtree.
	ScopeDefault Scope = iota
	// ScopeBase matches only the base record itself.
	ScopeBase
	// ScopeOneLevel matches the immediate children of the base.
	ScopeOneLevel
	// ScopeSubtree matches the base and everything below it.
	ScopeSubtree
)

// ParseScope maps the textual scope names onto constants. "default" and
// "sub" are the same scope.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(s) {
	case "base":
		return ScopeBase, nil
	case "one", "onelevel":
		return ScopeOneLevel, nil
	case "sub", "subtree":
		return ScopeSubtree, nil
	case "", "default":
		return ScopeDefault, nil
	}
	return 0, direrrors.New(direrrors.ErrCodeInvalidScope,
		fmt.Sprintf("unknown scope %q", s), nil)
}

// ErrFullScan signals that no index can answer a subtree search; the
// caller performs an unindexed full scan instead.
var ErrFullScan = errors.New("index: full scan required")

// Request describes one search.
type Request struct {
	// Base is the search base DN; nil means the root DN.
	Base *dn.DN
	// Scope bounds the search relative to Base.
	Scope Scope
	// Tree is the parsed filter.
	Tree *filter.Node
	// Attrs projects the delivered attributes; empty or "*" delivers all.
	Attrs []string
	// Callback receives each matching entry. Returning an error terminates
	// the search immediately.
	Callback func(*message.Message) error
}

// Search resolves candidates through the indexes, re-filters them against
// the full tree, and streams matches to the callback.
//
// Base scope is answered by the surrounding code; calling Search with it is
// an invariant violation. A subtree search no index can answer returns
// ErrFullScan.
func (e *Engine) Search(req *Request) error {
	base := req.Base
	if base == nil {
		base = dn.MustParse("")
	}
	scope := req.Scope
	if scope == ScopeDefault {
		scope = ScopeSubtree
	}
	if scope == ScopeBase {
		return direrrors.OperationsError("index: base scope reached the index layer", nil)
	}

	var candidates *DNList
	fullMatch := true

	switch {
	case scope == ScopeOneLevel && e.settings.oneLevel:
		children, truncated, err := e.planOneLevel(base)
		if err != nil {
			return err
		}
		if children.Len() == 0 {
			return nil
		}
		candidates = children
		if e.GUIDMode() {
			res, err := e.Plan(req.Tree)
			if err != nil {
				return err
			}
			switch res.Kind {
			case PlanNoMatch:
				return nil
			case PlanList:
				candidates = e.intersect(children, res.List)
			}
			// Unindexed: the children list alone bounds the candidates.
		}
		// An untruncated one-level key is exact, so the scope check is
		// already answered and only the filter needs re-running.
		fullMatch = truncated

	default:
		res, err := e.Plan(req.Tree)
		if err != nil {
			return err
		}
		switch res.Kind {
		case PlanUnindexed:
			return ErrFullScan
		case PlanNoMatch:
			return nil
		}
		candidates = res.List
	}

	var prev []byte
	for _, id := range candidates.IDs {
		// Candidates arrive sorted in GUID mode; truncation and forced
		// duplicates can yield the same id twice in a row.
		if e.GUIDMode() && prev != nil && bytes.Equal(prev, id) {
			continue
		}
		prev = id

		msg, err := e.fetchByID(id)
		if err != nil {
			if err == store.ErrNotFound {
				// Deleted by an earlier delivery's callback.
				continue
			}
			return err
		}

		if fullMatch && !scopeMatch(msg.DN, base, scope) {
			continue
		}
		ok, err := filter.Match(e.schema, msg, req.Tree)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if err := req.Callback(project(msg, req.Attrs)); err != nil {
			return err
		}
	}
	return nil
}

// FullScan evaluates a search by iterating every data record. Used when
// Search returns ErrFullScan.
func (e *Engine) FullScan(req *Request) error {
	base := req.Base
	if base == nil {
		base = dn.MustParse("")
	}
	scope := req.Scope
	if scope == ScopeDefault {
		scope = ScopeSubtree
	}

	return e.kv.Iterate(func(key, value []byte) error {
		if !isDataKey(key) {
			return nil
		}
		msg, err := message.Unpack(value, 0)
		if err != nil {
			return direrrors.CorruptIndex("index: unpack data record during scan", err)
		}
		if !scopeMatch(msg.DN, base, scope) {
			return nil
		}
		ok, err := filter.Match(e.schema, msg, req.Tree)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return req.Callback(project(msg, req.Attrs))
	})
}

// isDataKey reports whether a storage key holds a regular data record.
func isDataKey(key []byte) bool {
	if bytes.HasPrefix(key, []byte(guidKeyPrefix)) {
		return true
	}
	return bytes.HasPrefix(key, []byte(dnKeyPrefix)) &&
		!bytes.HasPrefix(key, []byte(dnKeyPrefix+"@"))
}

func scopeMatch(target, base *dn.DN, scope Scope) bool {
	switch scope {
	case ScopeBase:
		return target.Equal(base)
	case ScopeOneLevel:
		return target.IsChildOf(base)
	default:
		return target.IsDescendantOf(base)
	}
}

// project returns msg restricted to the requested attributes. The DN is
// always delivered.
func project(msg *message.Message, attrs []string) *message.Message {
	if len(attrs) == 0 {
		return msg
	}
	for _, a := range attrs {
		if a == "*" {
			return msg
		}
	}
	out := message.New(msg.DN)
	for _, el := range msg.Elements {
		for _, a := range attrs {
			if strings.EqualFold(el.Name, a) {
				out.Elements = append(out.Elements, el)
				break
			}
		}
	}
	return out
}
