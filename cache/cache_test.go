package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/bindgen/bridge"
)

var _ bridge.Cache = (*Cache)(nil)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLookupStore(t *testing.T) {
	c := openTemp(t)

	hit, err := c.Lookup("demo", "capi", "abc")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Store("demo", "capi", "abc"))
	hit, err = c.Lookup("demo", "capi", "abc")
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = c.Lookup("demo", "jni", "abc")
	require.NoError(t, err)
	assert.False(t, hit, "targets are cached separately")

	require.NoError(t, c.Store("demo", "capi", "def"))
	hit, err = c.Lookup("demo", "capi", "abc")
	require.NoError(t, err)
	assert.False(t, hit, "a new hash replaces the old one")

	entries, err := c.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "def", entries[0].Hash)
	assert.False(t, entries[0].GeneratedAt.IsZero())
}

func TestClear(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.Store("a", "capi", "1"))
	require.NoError(t, c.Store("b", "jni", "2"))

	n, err := c.Clear()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	entries, err := c.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Store("demo", "capi", "abc"))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()
	hit, err := c.Lookup("demo", "capi", "abc")
	require.NoError(t, err)
	assert.True(t, hit)
}
