package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFile_SetGetDelete(t *testing.T) {
	t.Parallel()
	f := NewFile(filepath.Join(t.TempDir(), "nested", "kv.json"))

	var got string
	ok, err := f.Get("missing", &got)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, f.Set("a", "one"))
	require.NoError(t, f.Set("b", map[string]int{"n": 2}))

	ok, err = f.Get("a", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "one", got)

	var m map[string]int
	ok, err = f.Get("b", &m)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, m["n"])

	keys, err := f.Keys()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, f.Delete("a"))
	require.NoError(t, f.Delete("a")) // deleting twice is fine
	ok, _ = f.Get("a", &got)
	require.False(t, ok)

	require.NoError(t, f.Clear())
	keys, err = f.Keys()
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestFile_CorruptFileReadsEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "kv.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	f := NewFile(path)
	var got string
	ok, err := f.Get("a", &got)
	require.NoError(t, err)
	require.False(t, ok)

	// writing recovers the file
	require.NoError(t, f.Set("a", "one"))
	ok, err = f.Get("a", &got)
	require.NoError(t, err)
	require.True(t, ok)
}
