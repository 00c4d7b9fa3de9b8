package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToDailyFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	log, flush, err := New(Options{Level: "debug", Dir: dir})
	require.NoError(t, err)
	log.Info("hello")
	flush()

	path := filepath.Join(dir, fileName(time.Now()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"hello"`)
	require.Contains(t, string(data), `"ts":`)
}

func TestNew_BadLevelFallsBackToDebug(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	log, flush, err := New(Options{Level: "chatty", Dir: dir})
	require.NoError(t, err)
	log.Debug("still visible")
	flush()

	data, err := os.ReadFile(filepath.Join(dir, fileName(time.Now())))
	require.NoError(t, err)
	require.Contains(t, string(data), "still visible")
}

func TestCleanupOldLogs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	old := filepath.Join(dir, "worker-2020-01-01.log")
	fresh := filepath.Join(dir, "worker-today.log")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
	require.NoError(t, os.Chtimes(old, time.Now(), time.Now().AddDate(0, 0, -30)))
	require.NoError(t, os.Chtimes(other, time.Now(), time.Now().AddDate(0, 0, -30)))

	require.NoError(t, CleanupOldLogs(dir, 7))

	_, err := os.Stat(old)
	require.True(t, os.IsNotExist(err), "expired log must be removed")
	_, err = os.Stat(fresh)
	require.NoError(t, err)
	_, err = os.Stat(other)
	require.NoError(t, err, "non-log files are left alone")
}

func TestCleanupOldLogs_MissingDirAndDisabled(t *testing.T) {
	t.Parallel()
	require.NoError(t, CleanupOldLogs(filepath.Join(t.TempDir(), "nope"), 7))
	require.NoError(t, CleanupOldLogs(t.TempDir(), 0))
}

func TestMaskSecret(t *testing.T) {
	t.Parallel()
	require.Equal(t, "***len=6", MaskSecret("482913", false))
	require.Equal(t, "***len=0", MaskSecret("", false))
	require.Equal(t, "482913", MaskSecret("482913", true))
}

func TestMaskToken(t *testing.T) {
	t.Parallel()
	require.Equal(t, "", MaskToken(""))
	require.Equal(t, "***", MaskToken("short.tok"))
	require.Equal(t, "abcdefgh...456789", MaskToken("abcdefghijklmnop.user.123456789"))
}
