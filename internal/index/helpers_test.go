package index

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/dirkv/internal/dn"
	"github.com/Aman-CERP/dirkv/internal/filter"
	"github.com/Aman-CERP/dirkv/internal/message"
	"github.com/Aman-CERP/dirkv/internal/schema"
	"github.com/Aman-CERP/dirkv/internal/store"
)

// testSetup describes the database an engine test runs against.
type testSetup struct {
	// indexedAttrs populate @IDXATTR on @INDEXLIST.
	indexedAttrs []string
	// guidAttr selects GUID identifier mode when set.
	guidAttr string
	// guidDNComponent enables extended-DN base lookups.
	guidDNComponent string
	// oneLevel maintains the parent->children family.
	oneLevel bool
	// opts are the process-wide engine options.
	opts Options
	// registry overrides the default empty schema registry.
	registry *schema.Registry
}

// newTestEngine opens a bolt store in a temp dir, writes the @INDEXLIST
// control record, and builds an engine over it.
func newTestEngine(t *testing.T, setup testSetup) (*Engine, store.KV) {
	t.Helper()

	kv, err := store.Open(store.Options{
		Backend: store.BackendBolt,
		Path:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	list := message.New(dn.MustParse(IndexListDN))
	for _, attr := range setup.indexedAttrs {
		list.Add(AttrIndexedAttrs, []byte(attr))
	}
	if setup.oneLevel {
		list.Set(AttrOneLevel, []byte("1"))
	}
	if setup.guidAttr != "" {
		list.Set(AttrGUID, []byte(setup.guidAttr))
	}
	if setup.guidDNComponent != "" {
		list.Set(AttrDNGUID, []byte(setup.guidDNComponent))
	}
	data, err := list.Pack()
	require.NoError(t, err)
	require.NoError(t, kv.Put([]byte(dnKeyPrefix+IndexListDN), data, store.Replace))

	reg := setup.registry
	if reg == nil {
		reg = schema.NewRegistry()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := New(kv, reg, logger, setup.opts)
	require.NoError(t, err)
	return e, kv
}

// uniqueRegistry builds a registry flagging the given attributes unique.
func uniqueRegistry(attrs ...string) *schema.Registry {
	reg := schema.NewRegistry()
	syn, _ := schema.BySyntaxName(schema.SyntaxCaseIgnore)
	for _, a := range attrs {
		reg.Register(&schema.Attribute{Name: a, Syntax: syn, Flags: schema.FlagUnique | schema.FlagIndexed})
	}
	return reg
}

// newMsg builds a message from a DN string and attribute values.
func newMsg(t *testing.T, dnStr string, attrs map[string][]string) *message.Message {
	t.Helper()
	msg := message.New(dn.MustParse(dnStr))
	for name, values := range attrs {
		for _, v := range values {
			msg.Add(name, []byte(v))
		}
	}
	return msg
}

// guid returns a deterministic 16-byte GUID for tests; n distinguishes
// entries and sorts in insertion order.
func guid(n byte) []byte {
	g := make([]byte, guidSize)
	g[guidSize-1] = n
	return g
}

// withGUID adds a GUID attribute value to a message.
func withGUID(msg *message.Message, attr string, g []byte) *message.Message {
	msg.Add(attr, g)
	return msg
}

// mustParseFilter parses a filter string.
func mustParseFilter(t *testing.T, s string) *filter.Node {
	t.Helper()
	n, err := filter.Parse(s)
	require.NoError(t, err)
	return n
}

// collectSearch runs a search and returns the delivered DNs.
func collectSearch(t *testing.T, e *Engine, base, scope, filterStr string, attrs ...string) []string {
	t.Helper()
	sc, err := ParseScope(scope)
	require.NoError(t, err)
	var got []string
	err = e.Search(&Request{
		Base:  dn.MustParse(base),
		Scope: sc,
		Tree:  mustParseFilter(t, filterStr),
		Attrs: attrs,
		Callback: func(msg *message.Message) error {
			got = append(got, msg.DN.String())
			return nil
		},
	})
	require.NoError(t, err)
	return got
}

// dumpStore snapshots every key/value pair in the backing store.
func dumpStore(t *testing.T, kv store.KV) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	err := kv.Iterate(func(k, v []byte) error {
		out[string(k)] = append([]byte(nil), v...)
		return nil
	})
	require.NoError(t, err)
	return out
}
