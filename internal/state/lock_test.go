package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simerrors "github.com/chazuruo/simtray/internal/errors"
)

func TestUpdateLock_ExcludesSecondHolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	first := New(dir).UpdateLock()
	second := New(dir).UpdateLock()

	ok, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	assert.FileExists(t, filepath.Join(dir, UpdateLockFile))

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, ok, "lock is held by another descriptor")

	require.NoError(t, first.Unlock())

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock())
}

func TestUpdateLock_UnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "state")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	ok, err := New(blocker).UpdateLock().TryLock()
	require.Error(t, err)
	assert.True(t, simerrors.IsIO(err))
	assert.False(t, ok)
}
