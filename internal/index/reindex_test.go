package index

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/dirkv/internal/dn"
	"github.com/Aman-CERP/dirkv/internal/message"
	"github.com/Aman-CERP/dirkv/internal/schema"
	"github.com/Aman-CERP/dirkv/internal/store"
)

func TestReindex_Idempotent(t *testing.T) {
	// Given: a populated database
	e, kv := newTestEngine(t, testSetup{indexedAttrs: []string{"cn", "ou"}, oneLevel: true})
	seedRecords(t, e)

	require.NoError(t, e.Reindex())
	first := dumpStore(t, kv)

	// When: reindexing again
	require.NoError(t, e.Reindex())

	// Then: the store contents are identical modulo the sequence number
	second := dumpStore(t, kv)
	delete(first, "DN=@BASEINFO")
	delete(second, "DN=@BASEINFO")
	assert.Equal(t, first, second)
}

func TestReindex_RebuildsDroppedIndexes(t *testing.T) {
	// Given: index records removed behind the engine's back
	e, kv := newTestEngine(t, testSetup{indexedAttrs: []string{"cn"}})
	seedRecords(t, e)
	require.NoError(t, kv.Delete([]byte("DN=@INDEX:cn:a")))

	require.NoError(t, e.Reindex())

	got := collectSearch(t, e, "DC=x", "sub", "(cn=a)")
	assert.Equal(t, []string{"CN=a,OU=e,DC=x"}, got)
}

func TestReindex_DropsStaleIndexRecords(t *testing.T) {
	// Given: a bogus index record nothing references
	e, kv := newTestEngine(t, testSetup{indexedAttrs: []string{"cn"}})
	seedRecords(t, e)

	stale := message.New(dn.MustParse("@INDEX:cn:stale"))
	stale.Set(AttrVersion, []byte("2"))
	stale.Set(AttrIndex, []byte("CN=GONE,DC=X"))
	data, err := stale.Pack()
	require.NoError(t, err)
	require.NoError(t, kv.Put([]byte("DN=@INDEX:cn:stale"), data, store.Replace))

	require.NoError(t, e.Reindex())

	_, err = kv.Get([]byte("DN=@INDEX:cn:stale"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReindex_RepairsWrongVersion(t *testing.T) {
	// Scenario: GUID mode, one @IDXVERSION corrupted to 2
	e, kv := newTestEngine(t, testSetup{indexedAttrs: []string{"cn"}, guidAttr: "entryGUID"})
	m := withGUID(newMsg(t, "CN=a,DC=x", map[string][]string{"cn": {"a"}}), "entryGUID", guid(1))
	require.NoError(t, e.AddRecord(m))

	// Corrupt the version field in place
	raw, err := kv.Get([]byte("DN=@INDEX:cn:a"))
	require.NoError(t, err)
	rec, err := message.Unpack(raw, 0)
	require.NoError(t, err)
	rec.Set(AttrVersion, []byte("2"))
	bad, err := rec.Pack()
	require.NoError(t, err)
	require.NoError(t, kv.Put([]byte("DN=@INDEX:cn:a"), bad, store.Replace))

	// Loading now fails with a corrupt-index error...
	_, err = e.loadList("@INDEX:cn:a")
	require.Error(t, err)

	// ...and reindex rewrites it to version 3; search works again
	require.NoError(t, e.Reindex())
	got := collectSearch(t, e, "DC=x", "sub", "(cn=a)")
	assert.Equal(t, []string{"CN=a,DC=x"}, got)
}

func TestReindex_RekeysAfterModeSwitch(t *testing.T) {
	// Given: a database populated in DN mode
	e, kv := newTestEngine(t, testSetup{indexedAttrs: []string{"cn"}})
	m := newMsg(t, "CN=a,DC=x", map[string][]string{"cn": {"a"}})
	m.Add("entryGUID", guid(9))
	require.NoError(t, e.AddRecord(m))
	_, err := kv.Get([]byte("DN=CN=A,DC=X"))
	require.NoError(t, err)

	// When: @INDEXLIST switches the database to GUID mode
	list := message.New(dn.MustParse(IndexListDN))
	list.Set(AttrGUID, []byte("entryGUID"))
	list.Add(AttrIndexedAttrs, []byte("cn"))
	data, err := list.Pack()
	require.NoError(t, err)
	require.NoError(t, kv.Put([]byte("DN="+IndexListDN), data, store.Replace))

	require.NoError(t, e.Reindex())

	// Then: the data record moved to its GUID= key
	_, err = kv.Get([]byte("DN=CN=A,DC=X"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = kv.Get(append([]byte("GUID="), guid(9)...))
	assert.NoError(t, err)

	// And: searches work in the new mode
	got := collectSearch(t, e, "DC=x", "sub", "(cn=a)")
	assert.Equal(t, []string{"CN=a,DC=x"}, got)
}

func TestReindex_RefusesReadOnly(t *testing.T) {
	// Given: a database created then reopened read-only
	path := filepath.Join(t.TempDir(), "test.db")
	kv, err := store.Open(store.Options{Backend: store.BackendBolt, Path: path})
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	ro, err := store.Open(store.Options{Backend: store.BackendBolt, Path: path, ReadOnly: true})
	require.NoError(t, err)
	defer func() { _ = ro.Close() }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	roEngine, err := New(ro, schema.NewRegistry(), logger, Options{})
	require.NoError(t, err)

	assert.Error(t, roEngine.Reindex())
}

func TestReindex_ReportsProgress(t *testing.T) {
	e, _ := newTestEngine(t, testSetup{indexedAttrs: []string{"cn"}})
	seedRecords(t, e)

	var calls []string
	e.SetProgressFunc(func(pass string, count int) {
		calls = append(calls, pass)
	})

	// Three records never cross the reporting interval
	require.NoError(t, e.Reindex())
	assert.Empty(t, calls)
}
