package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func dnModeEngine(t *testing.T) *Engine {
	e, _ := newTestEngine(t, testSetup{indexedAttrs: []string{"cn"}})
	return e
}

func guidModeEngine(t *testing.T) *Engine {
	e, _ := newTestEngine(t, testSetup{indexedAttrs: []string{"cn"}, guidAttr: "entryGUID"})
	return e
}

func listOf(ids ...[]byte) *DNList {
	return &DNList{IDs: ids}
}

func TestFind_GUIDModeBinarySearch(t *testing.T) {
	e := guidModeEngine(t)
	l := listOf(guid(1), guid(3), guid(5))

	assert.Equal(t, 1, e.find(l, guid(3)))
	assert.Equal(t, -1, e.find(l, guid(2)))
	assert.Equal(t, -1, e.find(&DNList{}, guid(1)))
}

func TestFind_DNModeLinear(t *testing.T) {
	e := dnModeEngine(t)
	// DN-mode lists are insertion ordered, not sorted
	l := listOf([]byte("CN=C"), []byte("CN=A"))

	assert.Equal(t, 1, e.find(l, []byte("CN=A")))
	assert.Equal(t, -1, e.find(l, []byte("CN=B")))
}

func TestUnion_MergesAndDeduplicates(t *testing.T) {
	e := guidModeEngine(t)
	a := listOf(guid(1), guid(3))
	b := listOf(guid(2), guid(3), guid(4))

	got := e.union(a, b)

	// Ties consume one from each side and emit one
	assert.Equal(t, [][]byte{guid(1), guid(2), guid(3), guid(4)}, got.IDs)
}

func TestUnion_SortsDNModeInputs(t *testing.T) {
	e := dnModeEngine(t)
	a := listOf([]byte("CN=C"), []byte("CN=A"))
	b := listOf([]byte("CN=B"))

	got := e.union(a, b)

	assert.Equal(t, [][]byte{[]byte("CN=A"), []byte("CN=B"), []byte("CN=C")}, got.IDs)
	// Inputs are untouched
	assert.Equal(t, [][]byte{[]byte("CN=C"), []byte("CN=A")}, a.IDs)
}

func TestUnion_PropagatesStrict(t *testing.T) {
	e := guidModeEngine(t)
	got := e.union(&DNList{Strict: true}, listOf(guid(1)))
	assert.True(t, got.Strict)
}

func TestUnion_OutputIsDetached(t *testing.T) {
	// Union correctness must not depend on input ownership: mutating an
	// input afterwards must not change the result.
	e := guidModeEngine(t)
	a := listOf(guid(1))
	b := listOf(guid(2))

	got := e.union(a, b)
	a.IDs[0] = guid(9)
	a.IDs = a.IDs[:0]

	assert.Equal(t, [][]byte{guid(1), guid(2)}, got.IDs)
}

func TestIntersect_EmptySideYieldsEmpty(t *testing.T) {
	e := guidModeEngine(t)
	got := e.intersect(&DNList{}, listOf(guid(1)))
	assert.Zero(t, got.Len())
}

func TestIntersect_Proper(t *testing.T) {
	e := guidModeEngine(t)
	a := listOf(guid(1), guid(2), guid(3), guid(4))
	b := listOf(guid(2), guid(4), guid(6))

	got := e.intersect(a, b)
	assert.Equal(t, [][]byte{guid(2), guid(4)}, got.IDs)
}

func TestIntersect_ShortcutReturnsLargerSide(t *testing.T) {
	e := guidModeEngine(t)
	small := listOf(guid(99))
	large := &DNList{}
	for i := byte(1); i <= 12; i++ {
		large.IDs = append(large.IDs, guid(i))
	}

	// One side tiny, the other large, neither strict: the larger side
	// comes back unchanged and the search re-filter trims it.
	got := e.intersect(small, large)
	assert.Equal(t, large.IDs, got.IDs)
}

func TestIntersect_StrictDisablesShortcut(t *testing.T) {
	e := guidModeEngine(t)
	small := listOf(guid(5))
	large := &DNList{Strict: true}
	for i := byte(1); i <= 12; i++ {
		large.IDs = append(large.IDs, guid(i))
	}

	got := e.intersect(small, large)

	// The exact intersection, and strictness propagates
	assert.Equal(t, [][]byte{guid(5)}, got.IDs)
	assert.True(t, got.Strict)
}

func TestInsert_GUIDModeKeepsSorted(t *testing.T) {
	e := guidModeEngine(t)
	l := &DNList{}

	for _, n := range []byte{5, 1, 3, 2, 4} {
		e.insert(l, guid(n))
	}

	assert.Equal(t, [][]byte{guid(1), guid(2), guid(3), guid(4), guid(5)}, l.IDs)
}

func TestInsert_DNModeAppends(t *testing.T) {
	e := dnModeEngine(t)
	l := &DNList{}

	e.insert(l, []byte("CN=B"))
	e.insert(l, []byte("CN=A"))

	assert.Equal(t, [][]byte{[]byte("CN=B"), []byte("CN=A")}, l.IDs)
}
