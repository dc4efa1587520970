package rollback

import (
	"errors"
	"fmt"
)

// backup is a point-in-time copy of a noted file, kept in the same
// directory as the original.
type backup struct {
	fsmgr    FilesystemManager
	temp     TempFile
	original string
}

// newBackup copies original into a temporary file in its parent directory.
func newBackup(fsmgr FilesystemManager, temps TempAllocator, original string) (*backup, error) {
	temp, err := temps.CreateTemp(parentDir(original))
	if err != nil {
		return nil, fmt.Errorf("creating backup file: %w", err)
	}

	if err := fsmgr.CopyFile(original, temp.Path()); err != nil {
		return nil, errors.Join(fmt.Errorf("copying original to backup: %w", err), temp.Remove())
	}

	return &backup{fsmgr: fsmgr, temp: temp, original: original}, nil
}

// restore writes the pre-commit content back through original. The commit
// overwrote the content in place, so restoring it the same way keeps
// symlinks and hard links to the original intact. A failure here means the
// filesystem changed under the session; the backup is kept for recovery.
func (b *backup) restore() error {
	if err := b.fsmgr.CopyFile(b.temp.Path(), b.original); err != nil {
		return &RestoreError{Path: b.original, Backup: b.temp.Path(), Err: err}
	}
	return nil
}

// discard drops the backup once it is no longer needed.
func (b *backup) discard() error {
	return b.temp.Remove()
}
