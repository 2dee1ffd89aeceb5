package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simerrors "github.com/chazuruo/simtray/internal/errors"
)

func TestStore_Empty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"))

	assert.False(t, s.HasPendingUpdate())
	id, ok := s.LastInstalledID()
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestStore_PendingRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	s := New(dir)

	require.NoError(t, s.SetPendingUpdate(true))
	assert.True(t, s.HasPendingUpdate())
	assert.FileExists(t, filepath.Join(dir, PendingUpdateFile))

	require.NoError(t, s.SetPendingUpdate(false))
	assert.False(t, s.HasPendingUpdate())

	// Clearing an absent marker is not an error.
	require.NoError(t, s.SetPendingUpdate(false))
}

func TestStore_LastInstalledID(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, s.SetLastInstalledID("101"))
	id, ok := s.LastInstalledID()
	require.True(t, ok)
	assert.Equal(t, "101", id)

	require.NoError(t, s.SetLastInstalledID("202"))
	id, _ = s.LastInstalledID()
	assert.Equal(t, "202", id)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestStore_TrimsWhitespace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LastReleaseFile), []byte("  555\r\n"), 0644))

	id, ok := New(dir).LastInstalledID()
	require.True(t, ok)
	assert.Equal(t, "555", id)
}

func TestStore_BlankFileMeansNoID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LastReleaseFile), []byte("\n"), 0644))

	_, ok := New(dir).LastInstalledID()
	assert.False(t, ok)
}

func TestStore_RejectsEmptyID(t *testing.T) {
	err := New(t.TempDir()).SetLastInstalledID("   ")
	require.Error(t, err)
	assert.True(t, simerrors.IsInvalid(err))
}

func TestStore_WriteFailure(t *testing.T) {
	// A regular file where the directory should be makes MkdirAll fail.
	parent := t.TempDir()
	blocker := filepath.Join(parent, "state")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := New(blocker).SetPendingUpdate(true)
	require.Error(t, err)
	assert.True(t, simerrors.IsIO(err))
}

func TestStore_Snapshot(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.SetLastInstalledID("9"))
	require.NoError(t, s.SetPendingUpdate(true))

	assert.Equal(t, Snapshot{Dir: dir, PendingUpdate: true, LastInstalledID: "9"}, s.Snapshot())
}
