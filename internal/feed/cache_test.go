package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *FileCache {
	c, err := NewFileCache(filepath.Join(t.TempDir(), "xml"), filepath.Join(t.TempDir(), "deleted"))
	require.NoError(t, err)
	return c
}

func TestFileCache_WriteRead(t *testing.T) {
	c := newTestCache(t)

	path, err := c.Write("report.xml", []byte("<Report/>"))
	require.NoError(t, err)
	assert.Equal(t, c.Path("report.xml"), path)

	data, err := c.Read("report.xml")
	require.NoError(t, err)
	assert.Equal(t, []byte("<Report/>"), data)
}

func TestFileCache_WriteLeavesNoTempFiles(t *testing.T) {
	c := newTestCache(t)

	_, err := c.Write("report.xml", []byte("<Report/>"))
	require.NoError(t, err)

	entries, err := os.ReadDir(c.liveDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "report.xml", entries[0].Name())
}

func TestFileCache_Quarantine(t *testing.T) {
	c := newTestCache(t)

	_, err := c.Write("report.xml", []byte("<Report/>"))
	require.NoError(t, err)

	require.NoError(t, c.Quarantine("report.xml", time.Now()))

	_, err = c.Read("report.xml")
	assert.Error(t, err, "quarantined file must leave the live dir")

	data, err := os.ReadFile(filepath.Join(c.quarantineDir, "report.xml"))
	require.NoError(t, err)
	assert.Equal(t, []byte("<Report/>"), data, "quarantine keeps the bytes for manual recovery")
}

func TestFileCache_QuarantineMissingFile(t *testing.T) {
	c := newTestCache(t)

	// Retrying the move after the file is gone must not fail.
	assert.NoError(t, c.Quarantine("gone.xml", time.Now()))
}

func TestFileCache_QuarantinedBefore(t *testing.T) {
	c := newTestCache(t)
	now := time.Now()

	for name, age := range map[string]time.Duration{
		"old.xml":   31 * 24 * time.Hour,
		"young.xml": 29 * 24 * time.Hour,
	} {
		_, err := c.Write(name, []byte("x"))
		require.NoError(t, err)
		require.NoError(t, c.Quarantine(name, now))
		mtime := now.Add(-age)
		require.NoError(t, os.Chtimes(filepath.Join(c.quarantineDir, name), mtime, mtime))
	}

	names, err := c.QuarantinedBefore(now.Add(-30 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"old.xml"}, names)

	require.NoError(t, c.RemoveQuarantined("old.xml"))
	names, err = c.QuarantinedBefore(now.Add(-30 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Empty(t, names)
}
