package rollback

import (
	"errors"
	"fmt"
)

// Validation errors returned by the registration calls.
var (
	ErrAlreadyNoted         = errors.New("path is already noted by this session")
	ErrNewItemAlreadyExists = errors.New("path already exists")
	ErrNotAFile             = errors.New("path is not a file")
	ErrNotADir              = errors.New("path is not a directory")
)

// Duplicates that can only be detected while committing, when two different
// spellings of a new path turn out to denote the same entry.
var (
	ErrRepeatedNewDir  = errors.New("path has been registered several times as a new directory")
	ErrRepeatedNewFile = errors.New("path has been registered several times as a new file")
)

// ErrSessionClosed is returned by every call on a session that has already
// been committed or closed.
var ErrSessionClosed = errors.New("session is closed")

// PathError records a registration failure and the path that caused it.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// CommitError is the failure of a single item while committing.
// The commit has been rolled back by the time a CommitError is returned.
type CommitError struct {
	Path string
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("committing %s failed: %v", e.Path, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// RestoreError reports that rollback could not return Path to its
// pre-commit state. When Backup is set, it names the file that still holds
// the pre-commit content.
type RestoreError struct {
	Path   string
	Backup string
	Err    error
}

func (e *RestoreError) Error() string {
	if e.Backup != "" {
		return fmt.Sprintf("restoring %s from %s failed: %v", e.Path, e.Backup, e.Err)
	}
	return fmt.Sprintf("removing %s failed: %v", e.Path, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }
