// Package storage prepares the on-disk locations used by the session engine
// and recovers the browser profile from an unclean shutdown.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	authDirName    = ".wwebjs_auth"
	profileDirName = "chrome-profile"
	credentialDB   = "session.db"
)

// LockArtifacts are the single-instance files Chrome leaves in a profile
// directory. A surviving artifact makes the next browser start fail.
var LockArtifacts = []string{"SingletonLock", "SingletonCookie", "SingletonSockets", "SingletonIPC", "SS"}

// Layout describes the storage tree rooted at Root.
type Layout struct {
	Root       string
	AuthDir    string
	ProfileDir string
}

func NewLayout(root string) Layout {
	return Layout{
		Root:       root,
		AuthDir:    filepath.Join(root, authDirName),
		ProfileDir: filepath.Join(root, profileDirName),
	}
}

// CredentialDB returns the path of the credential database.
func (l Layout) CredentialDB() string {
	return filepath.Join(l.AuthDir, credentialDB)
}

// Prepare creates the storage root, credential store and profile directories.
// It is safe to call on every start.
func (l Layout) Prepare() error {
	for _, dir := range []string{l.Root, l.AuthDir, l.ProfileDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create storage directory %s: %w", dir, err)
		}
	}
	return nil
}

// Outcome classifies what happened to a single lock artifact.
type Outcome string

const (
	Removed Outcome = "removed"
	Absent  Outcome = "absent"
	Ignored Outcome = "ignored"
)

// LockRemoval is the result of removing one lock artifact.
type LockRemoval struct {
	Name    string
	Path    string
	Outcome Outcome
	Err     error // set only when Outcome is Ignored
}

// CleanLocks removes every lock artifact from the profile directory. It never
// fails: each artifact gets its own outcome and the caller decides what to log.
func (l Layout) CleanLocks() []LockRemoval {
	results := make([]LockRemoval, 0, len(LockArtifacts))
	for _, name := range LockArtifacts {
		path := filepath.Join(l.ProfileDir, name)
		r := LockRemoval{Name: name, Path: path, Outcome: Removed}
		// SingletonLock is usually a dangling symlink; Remove handles it
		// without following the target.
		if err := os.Remove(path); err != nil {
			switch {
			case errors.Is(err, fs.ErrNotExist):
				r.Outcome = Absent
			default:
				r.Outcome = Ignored
				r.Err = err
			}
		}
		results = append(results, r)
	}
	return results
}
