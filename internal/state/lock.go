package state

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"

	simerrors "github.com/chazuruo/simtray/internal/errors"
)

// UpdateLockFile serializes update cycles between simtray processes that
// share a data directory.
const UpdateLockFile = ".update.lock"

// Lock is an advisory file lock on UpdateLockFile. Each Lock holds its own
// descriptor, so two Locks on the same store exclude each other even
// inside one process.
type Lock struct {
	dir string
	fl  *flock.Flock
}

// UpdateLock returns a new, unlocked Lock for the store.
func (s *Store) UpdateLock() *Lock {
	return &Lock{dir: s.dir, fl: flock.New(s.path(UpdateLockFile))}
}

// TryLock takes the lock without waiting. It reports false when another
// holder has it.
func (l *Lock) TryLock() (bool, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return false, fmt.Errorf("%w: create state dir: %v", simerrors.ErrIO, err)
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("%w: lock %s: %v", simerrors.ErrIO, l.fl.Path(), err)
	}
	return ok, nil
}

// Unlock releases the lock. The lock file is left in place.
func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}
