package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealed_RoundTrip(t *testing.T) {
	t.Parallel()
	inner := NewFile(filepath.Join(t.TempDir(), "sealed.json"))
	s, err := NewSealed(inner, KeyFromPassphrase("pass"))
	require.NoError(t, err)

	require.NoError(t, s.Set("tok", "secret-value"))

	var got string
	ok, err := s.Get("tok", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "secret-value", got)

	// ciphertext on disk, not the plaintext
	var raw string
	ok, err = inner.Get("tok", &raw)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, raw, "secret-value")
}

func TestSealed_WrongKeyFails(t *testing.T) {
	t.Parallel()
	inner := NewFile(filepath.Join(t.TempDir(), "sealed.json"))
	s, err := NewSealed(inner, KeyFromPassphrase("pass"))
	require.NoError(t, err)
	require.NoError(t, s.Set("tok", "secret-value"))

	other, err := NewSealed(inner, KeyFromPassphrase("different"))
	require.NoError(t, err)
	var got string
	_, err = other.Get("tok", &got)
	require.Error(t, err)
}

func TestNewSealed_BadKeyLength(t *testing.T) {
	t.Parallel()
	_, err := NewSealed(NewFile(filepath.Join(t.TempDir(), "s.json")), []byte("short"))
	require.Error(t, err)
}
