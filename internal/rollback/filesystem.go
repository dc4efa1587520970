package rollback

import (
	"errors"
	"io/fs"
)

// FilesystemManager provides the raw filesystem primitives a Session needs.
// It abstracts file access so commit failures can be injected in tests.
type FilesystemManager interface {
	// Stat returns file info for path, following symlinks.
	Stat(path string) (fs.FileInfo, error)

	// SameFile reports whether a and b denote the same filesystem entry.
	// It returns false when either path cannot be inspected.
	SameFile(a, b string) bool

	// CopyFile replaces the content of dst with the content of src.
	// dst is created if it does not exist and truncated otherwise;
	// its permission bits are left untouched when it already exists.
	CopyFile(src, dst string) error

	// CreateFile creates an empty file at path. It fails with an error
	// matching fs.ErrExist if anything already exists there.
	CreateFile(path string) error

	// CreateTemp creates a new, empty temporary file in dir and returns its path.
	// An empty dir selects the default temporary directory.
	CreateTemp(dir, pattern string) (string, error)

	// Mkdir creates a single directory. It fails with an error matching
	// fs.ErrExist if anything already exists there.
	Mkdir(path string) error

	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error

	// Remove removes a file or an empty directory.
	Remove(path string) error

	// RemoveAll removes path and everything it contains.
	// A missing path is not an error.
	RemoveAll(path string) error
}

// exists reports whether anything is present at path.
func exists(fsmgr FilesystemManager, path string) bool {
	_, err := fsmgr.Stat(path)
	return err == nil
}

// isRegularFile reports whether path is an existing regular file.
func isRegularFile(fsmgr FilesystemManager, path string) bool {
	info, err := fsmgr.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// removeIfExists removes path, treating an already missing path as success.
func removeIfExists(fsmgr FilesystemManager, path string) error {
	if err := fsmgr.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
