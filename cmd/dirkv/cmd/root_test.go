package cmd

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCmd executes the CLI with args, capturing stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	root := NewRootCmd()
	root.SetArgs(args)
	runErr := root.Execute()

	_ = w.Close()
	os.Stdout = old
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out), runErr
}

func writeDocs(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "docs.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCLI_InitAddSearchDelete(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	db := filepath.Join(dir, "test.db")

	// Given: an initialized database with cn indexed
	_, err := runCmd(t, "init", "--db", db, "--index", "cn")
	require.NoError(t, err)

	// When: adding two entries
	docs := writeDocs(t, dir, `[
		{"dn": "CN=alice,DC=example", "attrs": {"cn": ["alice"], "mail": ["alice@example.com"]}},
		{"dn": "CN=bob,DC=example", "attrs": {"cn": ["bob"]}}
	]`)
	out, err := runCmd(t, "add", "--db", db, docs)
	require.NoError(t, err)
	assert.Contains(t, out, "Added 2 entries")

	// Then: an indexed search finds the right entry
	out, err = runCmd(t, "search", "--db", db, "--base", "DC=example", "(cn=alice)")
	require.NoError(t, err)
	var got doc
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &got))
	assert.Equal(t, "CN=alice,DC=example", got.DN)
	assert.Equal(t, []string{"alice@example.com"}, got.Attrs["mail"])

	// And: an unindexed filter still answers via full scan
	out, err = runCmd(t, "search", "--db", db, "(mail=alice@example.com)")
	require.NoError(t, err)
	assert.Contains(t, out, "CN=alice,DC=example")

	// And: deletion removes the entry from search results
	_, err = runCmd(t, "delete", "--db", db, "CN=bob,DC=example")
	require.NoError(t, err)
	out, err = runCmd(t, "search", "--db", db, "(cn=bob)")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestCLI_GUIDModeAssignsGUIDs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	db := filepath.Join(dir, "test.db")

	_, err := runCmd(t, "init", "--db", db, "--index", "cn", "--guid-attr", "entryGUID")
	require.NoError(t, err)

	docs := writeDocs(t, dir, `{"dn": "CN=a,DC=x", "attrs": {"cn": ["a"]}}`)
	_, err = runCmd(t, "add", "--db", db, docs)
	require.NoError(t, err)

	out, err := runCmd(t, "search", "--db", db, "(cn=a)")
	require.NoError(t, err)

	var got doc
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &got))
	// The add command assigned a 16-byte GUID, delivered base64-encoded
	require.Len(t, got.Attrs["entryGUID"], 1)
	assert.True(t, strings.HasPrefix(got.Attrs["entryGUID"][0], b64Prefix))
}

func TestCLI_Reindex(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	db := filepath.Join(dir, "test.db")

	_, err := runCmd(t, "init", "--db", db, "--index", "cn")
	require.NoError(t, err)
	docs := writeDocs(t, dir, `{"dn": "CN=a,DC=x", "attrs": {"cn": ["a"]}}`)
	_, err = runCmd(t, "add", "--db", db, docs)
	require.NoError(t, err)

	_, err = runCmd(t, "reindex", "--db", db)
	require.NoError(t, err)

	out, err := runCmd(t, "search", "--db", db, "(cn=a)")
	require.NoError(t, err)
	assert.Contains(t, out, "CN=a,DC=x")
}

func TestCLI_Info(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	db := filepath.Join(dir, "test.db")

	_, err := runCmd(t, "init", "--db", db, "--index", "cn")
	require.NoError(t, err)

	out, err := runCmd(t, "info", "--db", db, "--json")
	require.NoError(t, err)

	var info dbInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, db, info.Path)
	assert.False(t, info.GUIDMode)
}

func TestCLI_UnknownScope(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	db := filepath.Join(t.TempDir(), "test.db")
	_, err := runCmd(t, "init", "--db", db)
	require.NoError(t, err)

	_, err = runCmd(t, "search", "--db", db, "--scope", "sideways", "(cn=a)")
	assert.Error(t, err)
}
