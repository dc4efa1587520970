package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"fsrollback/internal/rollback"
)

// tempPattern names every staging and backup file. The leading dot keeps
// backups placed next to user files out of ordinary listings.
const tempPattern = ".fsrb-*"

// Area hands out temporary files and keeps track of the ones still alive.
// Files are created in the area's directory unless the caller asks for a
// specific one, which is how backups end up next to the file they copy.
// This implementation is safe for concurrent use.
type Area struct {
	fsmgr rollback.FilesystemManager
	dir   string

	mu   sync.Mutex
	live map[string]*File
}

var _ rollback.TempAllocator = (*Area)(nil)

// NewArea creates a staging area rooted at dir. An empty dir uses the
// system temporary directory.
func NewArea(fsmgr rollback.FilesystemManager, dir string) (*Area, error) {
	if dir != "" {
		if err := fsmgr.MkdirAll(dir); err != nil {
			return nil, fmt.Errorf("failed to create staging directory: %w", err)
		}
	}
	return &Area{
		fsmgr: fsmgr,
		dir:   dir,
		live:  make(map[string]*File),
	}, nil
}

// Dir returns the directory new files are created in by default.
// An empty string means the system temporary directory.
func (a *Area) Dir() string {
	return a.dir
}

// CreateTemp allocates an empty file in dir, or in the area's directory
// when dir is empty.
func (a *Area) CreateTemp(dir string) (rollback.TempFile, error) {
	if dir == "" {
		dir = a.dir
	}
	path, err := a.fsmgr.CreateTemp(dir, tempPattern)
	if err != nil {
		return nil, err
	}

	f := &File{area: a, path: path}
	a.mu.Lock()
	a.live[path] = f
	a.mu.Unlock()
	return f, nil
}

// Count returns the number of files that have not been removed.
func (a *Area) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Cleanup removes every file that is still alive. It is meant as a last
// resort when the owners of those files did not get to remove them.
func (a *Area) Cleanup() error {
	a.mu.Lock()
	files := make([]*File, 0, len(a.live))
	for _, f := range a.live {
		files = append(files, f)
	}
	a.mu.Unlock()

	var errs []error
	for _, f := range files {
		if err := f.Remove(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Area) forget(path string) {
	a.mu.Lock()
	delete(a.live, path)
	a.mu.Unlock()
}

// File is a temporary file handed out by an Area. It stays on disk until
// Remove is called or the area is cleaned up.
type File struct {
	area *Area
	path string

	mu   sync.Mutex
	done bool
}

var _ rollback.TempFile = (*File)(nil)

// Path returns the location of the file.
func (f *File) Path() string {
	return f.path
}

// Remove deletes the file. Removing it twice is a no-op.
func (f *File) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done {
		return nil
	}
	if err := f.area.fsmgr.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing temporary file %s: %w", f.path, err)
	}
	f.done = true
	f.area.forget(f.path)
	return nil
}
