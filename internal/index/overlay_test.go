package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/dirkv/internal/dn"
)

func TestTransaction_CollapsesToFinalState(t *testing.T) {
	// Scenario: within one transaction, add, modify, and delete entries;
	// the backing store shows at most the final state.
	e, kv := newTestEngine(t, testSetup{indexedAttrs: []string{"cn", "mail"}})

	require.NoError(t, e.Begin())

	msg := newMsg(t, "CN=a,DC=x", map[string][]string{"cn": {"a"}, "mail": {"old@x"}})
	require.NoError(t, e.AddRecord(msg))

	// Modify: replace the mail value
	modified := newMsg(t, "CN=a,DC=x", map[string][]string{"cn": {"a"}, "mail": {"new@x"}})
	require.NoError(t, e.ModifyRecord(modified))

	// Another entry added and deleted entirely within the transaction
	ghost := newMsg(t, "CN=ghost,DC=x", map[string][]string{"cn": {"ghost"}})
	require.NoError(t, e.AddRecord(ghost))
	require.NoError(t, e.DeleteRecord(dn.MustParse("CN=ghost,DC=x")))

	require.NoError(t, e.Commit())

	// Only the final state is visible
	l, err := e.loadList("@INDEX:mail:new@x")
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())

	for _, gone := range []string{"@INDEX:mail:old@x", "@INDEX:cn:ghost"} {
		l, err := e.loadList(gone)
		require.NoError(t, err)
		assert.Zero(t, l.Len(), gone)
	}
	_, err = kv.Get([]byte("DN=CN=GHOST,DC=X"))
	assert.Error(t, err)
}

func TestTransaction_CancelLeavesZeroTraces(t *testing.T) {
	e, kv := newTestEngine(t, testSetup{indexedAttrs: []string{"cn"}})
	before := dumpStore(t, kv)

	require.NoError(t, e.Begin())
	require.NoError(t, e.AddRecord(newMsg(t, "CN=a,DC=x", map[string][]string{"cn": {"a"}})))
	require.NoError(t, e.Cancel())

	assert.Equal(t, before, dumpStore(t, kv))
	assert.False(t, e.InTransaction())
}

func TestTransaction_OverlayVisibleToLoadsBeforeCommit(t *testing.T) {
	e, _ := newTestEngine(t, testSetup{indexedAttrs: []string{"cn"}})

	require.NoError(t, e.Begin())
	require.NoError(t, e.AddRecord(newMsg(t, "CN=a,DC=x", map[string][]string{"cn": {"a"}})))

	// The staged list is returned by reference from the overlay
	l, err := e.loadList("@INDEX:cn:a")
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())

	require.NoError(t, e.Commit())
}

func TestTransaction_CommitMakesWritesVisible(t *testing.T) {
	e, kv := newTestEngine(t, testSetup{indexedAttrs: []string{"cn"}})

	require.NoError(t, e.Begin())
	require.NoError(t, e.AddRecord(newMsg(t, "CN=a,DC=x", map[string][]string{"cn": {"a"}})))
	require.NoError(t, e.Commit())

	// The index record is a real store record now
	_, err := kv.Get([]byte("DN=@INDEX:cn:a"))
	assert.NoError(t, err)
}

func TestTransaction_StateErrors(t *testing.T) {
	e, _ := newTestEngine(t, testSetup{})

	assert.Error(t, e.Commit())
	assert.Error(t, e.Cancel())

	require.NoError(t, e.Begin())
	assert.Error(t, e.Begin())
	require.NoError(t, e.Cancel())
}

func TestTransaction_CommitBumpsSequenceNumber(t *testing.T) {
	e, _ := newTestEngine(t, testSetup{indexedAttrs: []string{"cn"}})

	seq0, err := e.SequenceNumber()
	require.NoError(t, err)

	require.NoError(t, e.AddRecord(newMsg(t, "CN=a,DC=x", map[string][]string{"cn": {"a"}})))

	seq1, err := e.SequenceNumber()
	require.NoError(t, err)
	assert.Equal(t, seq0+1, seq1)
}
