// Package state persists the update bookkeeping that must survive restarts:
// the id of the last installed release and the pending-update marker.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	simerrors "github.com/chazuruo/simtray/internal/errors"
)

const (
	// LastReleaseFile holds the id of the last successfully installed release.
	LastReleaseFile = ".last_release_id"
	// PendingUpdateFile exists while a newer release was found but not installed.
	PendingUpdateFile = ".pending_update"
)

// Store reads and writes the marker files in a single directory.
// It is not safe for concurrent writers; the coordinator is the only one.
type Store struct {
	dir string
}

// Snapshot is a point-in-time view of the store.
type Snapshot struct {
	Dir             string `json:"dir" yaml:"dir"`
	PendingUpdate   bool   `json:"pending_update" yaml:"pending_update"`
	LastInstalledID string `json:"last_installed_id,omitempty" yaml:"last_installed_id,omitempty"`
}

// New returns a Store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory holding the marker files.
func (s *Store) Dir() string { return s.dir }

// HasPendingUpdate reports whether the pending marker exists.
func (s *Store) HasPendingUpdate() bool {
	_, err := os.Stat(s.path(PendingUpdateFile))
	if err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to stat pending marker: %v", err)
	}
	return err == nil
}

// SetPendingUpdate creates or removes the pending marker.
func (s *Store) SetPendingUpdate(pending bool) error {
	if !pending {
		if err := os.Remove(s.path(PendingUpdateFile)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: clearing pending marker: %v", simerrors.ErrIO, err)
		}
		return nil
	}
	return s.write(PendingUpdateFile, "true")
}

// LastInstalledID returns the recorded release id, if any.
func (s *Store) LastInstalledID() (string, bool) {
	data, err := os.ReadFile(s.path(LastReleaseFile))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("failed to read last release id: %v", err)
		}
		return "", false
	}
	id := strings.TrimSpace(string(data))
	return id, id != ""
}

// SetLastInstalledID records id as the installed release.
func (s *Store) SetLastInstalledID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: empty release id", simerrors.ErrInvalid)
	}
	return s.write(LastReleaseFile, id)
}

// Snapshot returns the current marker values.
func (s *Store) Snapshot() Snapshot {
	id, _ := s.LastInstalledID()
	return Snapshot{
		Dir:             s.dir,
		PendingUpdate:   s.HasPendingUpdate(),
		LastInstalledID: id,
	}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// write replaces name atomically: the content goes to a temp file in the same
// directory which is then renamed over the target.
func (s *Store) write(name, content string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("%w: create state dir: %v", simerrors.ErrIO, err)
	}

	tempFile, err := os.CreateTemp(s.dir, ".*"+name)
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", simerrors.ErrIO, err)
	}
	tempFileName := tempFile.Name()
	defer func() {
		if _, statErr := os.Stat(tempFileName); statErr == nil {
			_ = os.Remove(tempFileName)
		}
	}()

	if _, err := tempFile.WriteString(content); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("%w: write %s: %v", simerrors.ErrIO, name, err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", simerrors.ErrIO, tempFileName, err)
	}

	if err := os.Rename(tempFileName, s.path(name)); err != nil {
		return fmt.Errorf("%w: move %s to %s: %v", simerrors.ErrIO, tempFileName, s.path(name), err)
	}
	return nil
}
