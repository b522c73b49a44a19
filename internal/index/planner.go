package index

import (
	"strings"

	"github.com/google/uuid"

	"github.com/Aman-CERP/dirkv/internal/dn"
	"github.com/Aman-CERP/dirkv/internal/filter"
)

// PlanKind classifies a planner outcome.
type PlanKind int

const (
	// PlanList means the filter was answered with a candidate list. The
	// list may over-report; the search driver re-filters.
	PlanList PlanKind = iota
	// PlanNoMatch means the filter provably selects nothing.
	PlanNoMatch
	// PlanUnindexed means the indexes cannot answer the filter.
	PlanUnindexed
)

// PlanResult is the planner output: a candidate list, a proof of emptiness,
// or a refusal.
type PlanResult struct {
	Kind PlanKind
	List *DNList
}

func planList(l *DNList) PlanResult { return PlanResult{Kind: PlanList, List: l} }

var (
	planNoMatch   = PlanResult{Kind: PlanNoMatch}
	planUnindexed = PlanResult{Kind: PlanUnindexed}
)

// Plan walks a parsed filter tree and produces a candidate list via
// recursive union and intersection of index records, short-circuiting AND
// branches on unique keys.
func (e *Engine) Plan(tree *filter.Node) (PlanResult, error) {
	switch tree.Kind {
	case filter.Equality:
		return e.planEquality(tree)
	case filter.And:
		return e.planAnd(tree)
	case filter.Or:
		return e.planOr(tree)
	default:
		// NOT and the inequality/substring/presence operators have no
		// index representation.
		return planUnindexed, nil
	}
}

func (e *Engine) planEquality(n *filter.Node) (PlanResult, error) {
	attr := n.Attr

	if isDNAttr(attr) {
		if e.opts.DisallowDNFilter {
			return planList(&DNList{}), nil
		}
		base, err := dn.Parse(string(n.Value))
		if err != nil {
			return planNoMatch, nil
		}
		return e.planBaseDN(base)
	}

	if strings.HasPrefix(attr, "@") {
		return planList(&DNList{}), nil
	}

	if e.GUIDMode() && strings.EqualFold(attr, e.settings.guidAttr) {
		id, ok := canonicalGUID(n.Value)
		if !ok {
			return planNoMatch, nil
		}
		return planList(&DNList{IDs: [][]byte{id}}), nil
	}

	if !e.isIndexed(attr) {
		return planUnindexed, nil
	}

	key, _, err := e.indexKey(attr, n.Value)
	if err != nil {
		// Values outside the attribute's canonical domain cannot be looked
		// up; leave them to the re-filter.
		return planUnindexed, nil
	}
	l, err := e.loadList(key)
	if err != nil {
		return PlanResult{}, err
	}
	if l.Len() == 0 {
		return planNoMatch, nil
	}
	return planList(l), nil
}

// planBaseDN resolves the identifier of the record at a given DN. In DN
// mode the identifier is the case-folded DN itself. In GUID mode the GUID
// comes straight from an extended DN component when configured, otherwise
// from the DN->GUID family.
func (e *Engine) planBaseDN(base *dn.DN) (PlanResult, error) {
	if base.IsSpecial() {
		return planList(&DNList{}), nil
	}

	if !e.GUIDMode() {
		return planList(&DNList{IDs: [][]byte{[]byte(base.CaseFold())}}), nil
	}

	if e.settings.guidDNComponent != "" {
		if v, ok := base.ExtendedComponent(e.settings.guidDNComponent); ok {
			id, ok := canonicalGUID([]byte(v))
			if !ok {
				return planNoMatch, nil
			}
			return planList(&DNList{IDs: [][]byte{id}}), nil
		}
	}

	key, _, err := e.dnIndexKey(base.CaseFold())
	if err != nil {
		return PlanResult{}, err
	}
	l, err := e.loadList(key)
	if err != nil {
		return PlanResult{}, err
	}
	if l.Len() == 0 {
		return planNoMatch, nil
	}
	return planList(l), nil
}

// planOneLevel loads the children of a parent DN. The result is strict:
// one-level answers must be exact, so intersections with it may not drop
// or over-report ids. Also reports whether the key was truncated, which
// disables trusting the index for scope checks.
func (e *Engine) planOneLevel(parent *dn.DN) (*DNList, bool, error) {
	key, truncated, err := e.oneLevelKey(parent.CaseFold())
	if err != nil {
		return nil, false, err
	}
	l, err := e.loadList(key)
	if err != nil {
		return nil, false, err
	}
	l.Strict = true
	return l, truncated, nil
}

func (e *Engine) planOr(n *filter.Node) (PlanResult, error) {
	var acc *DNList
	for _, child := range n.Children {
		res, err := e.Plan(child)
		if err != nil {
			return PlanResult{}, err
		}
		switch res.Kind {
		case PlanNoMatch:
			continue
		case PlanUnindexed:
			// One unknown set poisons the union: the result could miss
			// entries, which a union must never do.
			return planUnindexed, nil
		}
		if acc == nil {
			acc = res.List
		} else {
			acc = e.union(acc, res.List)
		}
	}
	if acc == nil || acc.Len() == 0 {
		return planNoMatch, nil
	}
	return planList(acc), nil
}

func (e *Engine) planAnd(n *filter.Node) (PlanResult, error) {
	// Pass 1: a unique-attribute equality child pins the result to at most
	// one record; return its list outright. Over-reporting is fine, the
	// re-filter trims; an empty unique lookup proves no match.
	for _, child := range n.Children {
		if child.Kind != filter.Equality || !e.isUniqueAttr(child.Attr) {
			continue
		}
		res, err := e.Plan(child)
		if err != nil {
			return PlanResult{}, err
		}
		switch res.Kind {
		case PlanList:
			return res, nil
		case PlanNoMatch:
			return planNoMatch, nil
		}
	}

	// Pass 2: intersect whatever the children can answer. Unindexed
	// children drop out; the remaining intersections still only narrow.
	var acc *DNList
	found := false
	for _, child := range n.Children {
		res, err := e.Plan(child)
		if err != nil {
			return PlanResult{}, err
		}
		switch res.Kind {
		case PlanUnindexed:
			continue
		case PlanNoMatch:
			return planNoMatch, nil
		}
		if !found {
			acc = res.List
			found = true
		} else {
			acc = e.intersect(acc, res.List)
		}
		if acc.Len() <= 1 {
			break
		}
	}
	if !found {
		return planUnindexed, nil
	}
	if acc.Len() == 0 {
		return planNoMatch, nil
	}
	return planList(acc), nil
}

// isUniqueAttr reports whether an equality on attr selects at most one
// record: the GUID attribute, the DN, or a unique-indexed attribute.
func (e *Engine) isUniqueAttr(attr string) bool {
	if isDNAttr(attr) {
		return true
	}
	if e.GUIDMode() && strings.EqualFold(attr, e.settings.guidAttr) {
		return true
	}
	return e.isUnique(attr)
}

func isDNAttr(attr string) bool {
	return strings.EqualFold(attr, "dn") || strings.EqualFold(attr, "distinguishedName")
}

// canonicalGUID accepts a raw 16-byte GUID or its textual UUID form.
func canonicalGUID(value []byte) ([]byte, bool) {
	if len(value) == guidSize {
		return append([]byte(nil), value...), true
	}
	u, err := uuid.Parse(string(value))
	if err != nil {
		return nil, false
	}
	return u[:], true
}
