package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"fsrollback/internal/rollback"
)

const (
	dirPerm  fs.FileMode = 0755
	filePerm fs.FileMode = 0666
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Stat returns file info for path, following symlinks.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// SameFile reports whether a and b resolve to the same device and inode.
func (m *OSFilesystemManager) SameFile(a, b string) bool {
	infoA, err := os.Stat(a)
	if err != nil {
		return false
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}

// CopyFile replaces the content of dst with the content of src.
// A new dst gets the permission bits of src; an existing one keeps its own.
func (m *OSFilesystemManager) CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("cannot copy directory as file: %s", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CreateFile creates an empty file, failing if anything exists at path.
func (m *OSFilesystemManager) CreateFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return err
	}
	return f.Close()
}

// CreateTemp creates an empty temporary file in dir and returns its path.
func (m *OSFilesystemManager) CreateTemp(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// Mkdir creates a single directory.
func (m *OSFilesystemManager) Mkdir(path string) error {
	return os.Mkdir(path, dirPerm)
}

// MkdirAll creates path along with any missing parents.
func (m *OSFilesystemManager) MkdirAll(path string) error {
	return os.MkdirAll(path, dirPerm)
}

// Remove removes a file or an empty directory.
func (m *OSFilesystemManager) Remove(path string) error {
	return os.Remove(path)
}

// RemoveAll removes path and any children it contains.
func (m *OSFilesystemManager) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Compile-time check that OSFilesystemManager implements rollback.FilesystemManager interface
var _ rollback.FilesystemManager = (*OSFilesystemManager)(nil)
