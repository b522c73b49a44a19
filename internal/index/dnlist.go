package index

import (
	"bytes"
	"sort"
)

// DNList is an ordered, duplicate-free collection of entry identifiers.
//
// In GUID mode identifiers are 16-byte GUIDs kept sorted ascending, so
// membership is a binary search. In DN mode identifiers are case-folded
// linearised DNs in insertion order, scanned linearly; union sorts its
// inputs first.
type DNList struct {
	IDs [][]byte

	// Strict forbids optimisations that may over-report: intersections with
	// a strict list always compute the exact result. Required wherever
	// extra identifiers would produce wrong results (one-level lookups).
	Strict bool
}

// Len returns the number of identifiers.
func (l *DNList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.IDs)
}

// intersectShortcutMin and intersectShortcutMax bound the asymmetry at
// which intersect may return the larger side unchanged and leave trimming
// to the search re-filter.
const (
	intersectShortcutMin = 2
	intersectShortcutMax = 10
)

// find returns the position of id in l, or -1. GUID mode binary-searches
// the sorted identifiers; DN mode scans (per-key lists are typically
// small).
func (e *Engine) find(l *DNList, id []byte) int {
	if l.Len() == 0 {
		return -1
	}
	if e.GUIDMode() {
		i := sort.Search(len(l.IDs), func(i int) bool {
			return bytes.Compare(l.IDs[i], id) >= 0
		})
		if i < len(l.IDs) && bytes.Equal(l.IDs[i], id) {
			return i
		}
		return -1
	}
	for i, v := range l.IDs {
		if bytes.Equal(v, id) {
			return i
		}
	}
	return -1
}

// union merges two lists into a new sorted, duplicate-free list. The result
// owns freshly allocated identifier storage; neither input is modified.
// Strict is the OR of both inputs.
func (e *Engine) union(a, b *DNList) *DNList {
	out := &DNList{Strict: a.Strict || b.Strict}
	if a.Len() == 0 && b.Len() == 0 {
		return out
	}

	as := sortedIDs(a)
	bs := sortedIDs(b)

	out.IDs = make([][]byte, 0, len(as)+len(bs))
	i, j := 0, 0
	for i < len(as) && j < len(bs) {
		switch bytes.Compare(as[i], bs[j]) {
		case -1:
			out.IDs = append(out.IDs, as[i])
			i++
		case 1:
			out.IDs = append(out.IDs, bs[j])
			j++
		default:
			// Equal: consume one from each side, emit one.
			out.IDs = append(out.IDs, as[i])
			i++
			j++
		}
	}
	out.IDs = append(out.IDs, as[i:]...)
	out.IDs = append(out.IDs, bs[j:]...)
	return out
}

// intersect computes a ∧ b. When one side is very small, the other large,
// and neither is strict, the larger side is returned unchanged: the search
// driver's re-filter drops the extras, and skipping the probe loop is
// cheaper than computing the exact result.
func (e *Engine) intersect(a, b *DNList) *DNList {
	strict := a.Strict || b.Strict
	if a.Len() == 0 || b.Len() == 0 {
		return &DNList{Strict: strict}
	}

	if !strict {
		if a.Len() < intersectShortcutMin && b.Len() > intersectShortcutMax {
			return &DNList{IDs: b.IDs, Strict: false}
		}
		if b.Len() < intersectShortcutMin && a.Len() > intersectShortcutMax {
			return &DNList{IDs: a.IDs, Strict: false}
		}
	}

	short, long := a, b
	if short.Len() > long.Len() {
		short, long = long, short
	}

	out := &DNList{Strict: strict, IDs: make([][]byte, 0, short.Len())}
	for _, id := range short.IDs {
		if e.find(long, id) >= 0 {
			out.IDs = append(out.IDs, id)
		}
	}
	return out
}

// insert places id into l at its sorted position (GUID mode) or appends it
// (DN mode). Capacity is padded to the next multiple of 8 to amortise
// repeated insertions into the same record.
func (e *Engine) insert(l *DNList, id []byte) {
	pos := len(l.IDs)
	if e.GUIDMode() {
		pos = sort.Search(len(l.IDs), func(i int) bool {
			return bytes.Compare(l.IDs[i], id) >= 0
		})
	}

	if len(l.IDs) == cap(l.IDs) {
		grown := make([][]byte, len(l.IDs), (len(l.IDs)+8)&^7)
		copy(grown, l.IDs)
		l.IDs = grown
	}
	l.IDs = append(l.IDs, nil)
	copy(l.IDs[pos+1:], l.IDs[pos:])
	l.IDs[pos] = id
}

// remove deletes the identifier at position i.
func (l *DNList) remove(i int) {
	l.IDs = append(l.IDs[:i], l.IDs[i+1:]...)
}

// sortedIDs returns the identifiers of l in ascending order. GUID-mode
// lists are already sorted; DN-mode lists are copied and sorted.
func sortedIDs(l *DNList) [][]byte {
	if l.Len() == 0 {
		return nil
	}
	if sort.SliceIsSorted(l.IDs, func(i, j int) bool {
		return bytes.Compare(l.IDs[i], l.IDs[j]) < 0
	}) {
		return l.IDs
	}
	out := make([][]byte, len(l.IDs))
	copy(out, l.IDs)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i], out[j]) < 0
	})
	return out
}
