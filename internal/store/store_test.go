package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestKV opens a fresh database for the given backend in a temp dir.
func openTestKV(t *testing.T, backend string) KV {
	t.Helper()
	kv, err := Open(Options{
		Backend: backend,
		Path:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

// backends runs a subtest against every storage backend.
func backends(t *testing.T, fn func(t *testing.T, kv KV)) {
	for _, backend := range []string{BackendBolt, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			fn(t, openTestKV(t, backend))
		})
	}
}

func TestKV_PutGetDelete(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		// Given: a stored pair
		require.NoError(t, kv.Put([]byte("k1"), []byte("v1"), Replace))

		// Then: it reads back
		v, err := kv.Get([]byte("k1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), v)

		// And: deleting removes it
		require.NoError(t, kv.Delete([]byte("k1")))
		_, err = kv.Get([]byte("k1"))
		assert.ErrorIs(t, err, ErrNotFound)

		// And: deleting again reports not found
		assert.ErrorIs(t, kv.Delete([]byte("k1")), ErrNotFound)
	})
}

func TestKV_InsertRefusesExisting(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		require.NoError(t, kv.Put([]byte("k"), []byte("v1"), Insert))
		assert.ErrorIs(t, kv.Put([]byte("k"), []byte("v2"), Insert), ErrExists)

		// Replace overwrites
		require.NoError(t, kv.Put([]byte("k"), []byte("v2"), Replace))
		v, err := kv.Get([]byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), v)
	})
}

func TestKV_IterateInKeyOrder(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		// Given: keys inserted out of order
		for _, k := range []string{"b", "a", "c"} {
			require.NoError(t, kv.Put([]byte(k), []byte("v"), Replace))
		}

		// Then: iteration is byte-lexicographic
		var got []string
		err := kv.Iterate(func(key, _ []byte) error {
			got = append(got, string(key))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, got)
	})
}

func TestKV_IterateStopsCleanly(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, kv.Put([]byte(k), []byte("v"), Replace))
		}

		var seen int
		err := kv.Iterate(func(_, _ []byte) error {
			seen++
			return StopIteration
		})
		require.NoError(t, err)
		assert.Equal(t, 1, seen)
	})
}

func TestKV_UpdateKey(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		require.NoError(t, kv.Put([]byte("old"), []byte("v"), Replace))

		require.NoError(t, kv.UpdateKey([]byte("old"), []byte("new"), []byte("v2")))

		_, err := kv.Get([]byte("old"))
		assert.ErrorIs(t, err, ErrNotFound)
		v, err := kv.Get([]byte("new"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), v)

		// Moving onto an occupied key fails
		require.NoError(t, kv.Put([]byte("other"), []byte("x"), Replace))
		assert.ErrorIs(t, kv.UpdateKey([]byte("new"), []byte("other"), []byte("y")), ErrExists)
	})
}

func TestKV_TransactionCommit(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		require.NoError(t, kv.Begin())
		assert.True(t, kv.InTransaction())
		require.NoError(t, kv.Put([]byte("k"), []byte("v"), Replace))
		require.NoError(t, kv.Commit())

		v, err := kv.Get([]byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), v)
	})
}

func TestKV_TransactionCancelDiscards(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		require.NoError(t, kv.Put([]byte("keep"), []byte("v"), Replace))

		require.NoError(t, kv.Begin())
		require.NoError(t, kv.Put([]byte("gone"), []byte("v"), Replace))
		require.NoError(t, kv.Delete([]byte("keep")))
		require.NoError(t, kv.Cancel())

		// The cancelled writes left no trace
		_, err := kv.Get([]byte("gone"))
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = kv.Get([]byte("keep"))
		assert.NoError(t, err)
	})
}

func TestKV_TransactionStateErrors(t *testing.T) {
	backends(t, func(t *testing.T, kv KV) {
		assert.ErrorIs(t, kv.Commit(), ErrNoTransaction)
		assert.ErrorIs(t, kv.Cancel(), ErrNoTransaction)

		require.NoError(t, kv.Begin())
		assert.ErrorIs(t, kv.Begin(), ErrInTransaction)
		require.NoError(t, kv.Cancel())
	})
}

func TestKV_ReadOnlyRefusesWrites(t *testing.T) {
	// Given: an existing database reopened read-only
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	kv, err := Open(Options{Backend: BackendBolt, Path: path})
	require.NoError(t, err)
	require.NoError(t, kv.Put([]byte("k"), []byte("v"), Replace))
	require.NoError(t, kv.Close())

	ro, err := Open(Options{Backend: BackendBolt, Path: path, ReadOnly: true})
	require.NoError(t, err)
	defer func() { _ = ro.Close() }()

	assert.True(t, ro.ReadOnly())
	assert.ErrorIs(t, ro.Put([]byte("k"), []byte("v2"), Replace), ErrReadOnly)
	assert.ErrorIs(t, ro.Begin(), ErrReadOnly)

	v, err := ro.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestKV_LockRefusesSecondWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	kv, err := Open(Options{Backend: BackendBolt, Path: path})
	require.NoError(t, err)
	defer func() { _ = kv.Close() }()

	_, err = Open(Options{Backend: BackendBolt, Path: path})
	assert.ErrorIs(t, err, ErrLocked)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "leveldb", Path: "x"})
	assert.Error(t, err)
}
