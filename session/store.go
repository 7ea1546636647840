package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// dirPerm keeps the browser profile private to the current user: it holds
// authentication cookies.
const dirPerm = 0o700

// Store owns the on-disk location of the persisted browser profile.
//
// The profile itself is written by the browser engine; Store only knows
// whether it exists. Existence does not imply validity: a profile can be
// present but logged out or expired.
//
// Concurrent runs against the same location race on the browser's own
// profile lock. Store does not arbitrate that.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. A leading "~" is expanded.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("session: empty storage location")
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("session: expand %q: %w", dir, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("session: resolve %q: %w", dir, err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the storage location without creating it.
func (s *Store) Dir() string {
	return s.dir
}

// Resolve returns the storage location, creating it on demand.
func (s *Store) Resolve() (string, error) {
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return "", fmt.Errorf("session: create %s: %w", s.dir, err)
	}
	// MkdirAll leaves an existing directory's mode alone.
	if err := os.Chmod(s.dir, dirPerm); err != nil {
		slog.Debug("session: could not tighten permissions", "dir", s.dir, "error", err)
	}
	return s.dir, nil
}

// Exists reports whether a profile has been written to the location.
// An empty directory counts as absent.
func (s *Store) Exists() bool {
	f, err := os.Open(s.dir)
	if err != nil {
		return false
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	return err == nil
}

// Clear deletes the location. It is idempotent.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: clear %s: %w", s.dir, err)
	}
	slog.Info("session cleared", "dir", s.dir)
	return nil
}

// Temp creates a throwaway profile directory for runs that must not reuse or
// persist a session. The returned cleanup removes it.
func Temp() (string, func(), error) {
	dir, err := os.MkdirTemp("", "profilescan-profile-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("session: create temp profile: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("session: failed to remove temp profile", "dir", dir, "error", err)
		}
	}
	return dir, cleanup, nil
}
