package rollback

import (
	"errors"
	"fmt"
)

// NoteFile registers an existing regular file for modification and returns
// the staging path holding a copy of its current content. Write the desired
// final content to the staging path; the original is overwritten on Commit.
//
// It fails with ErrNotAFile if original is not an existing regular file and
// with ErrAlreadyNoted if original, or another path denoting the same file,
// is already noted.
func (s *Session) NoteFile(original string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return "", ErrSessionClosed
	}
	if !isRegularFile(s.fsmgr, original) {
		return "", &PathError{Op: "note", Path: original, Err: ErrNotAFile}
	}
	if _, ok := s.lookupNotedLocked(original); ok {
		return "", &PathError{Op: "note", Path: original, Err: ErrAlreadyNoted}
	}

	// Staging copies are applied by copying their content, so they can live
	// in the allocator's default location.
	temp, err := s.temps.CreateTemp("")
	if err != nil {
		return "", fmt.Errorf("creating staging file for %s: %w", original, err)
	}
	if err := s.fsmgr.CopyFile(original, temp.Path()); err != nil {
		return "", errors.Join(fmt.Errorf("copying %s to staging file: %w", original, err), temp.Remove())
	}

	s.adopt(temp)
	s.noted[original] = temp
	s.logger.Debug("file noted", "session", s.id, "path", original, "staging", temp.Path())
	return temp.Path(), nil
}

// NewFile registers path as a file to be created and returns an empty
// staging path for its content. The file itself is created on Commit; if
// its parent directory does not exist yet, register it with NewDir as well.
//
// It fails with ErrNewItemAlreadyExists if path exists, with ErrAlreadyNoted
// if the same spelling is already registered, and with ErrNotAFile if path
// is not shaped like a file (it must have a name and an extension).
func (s *Session) NewFile(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return "", ErrSessionClosed
	}
	if exists(s.fsmgr, path) {
		return "", &PathError{Op: "new file", Path: path, Err: ErrNewItemAlreadyExists}
	}
	if _, ok := s.newFiles[path]; ok {
		return "", &PathError{Op: "new file", Path: path, Err: ErrAlreadyNoted}
	}
	if !looksLikeFile(path) {
		return "", &PathError{Op: "new file", Path: path, Err: ErrNotAFile}
	}

	temp, err := s.temps.CreateTemp("")
	if err != nil {
		return "", fmt.Errorf("creating staging file for %s: %w", path, err)
	}

	s.adopt(temp)
	s.newFiles[path] = temp
	s.logger.Debug("new file registered", "session", s.id, "path", path, "staging", temp.Path())
	return temp.Path(), nil
}

// NewDir registers path as a directory to be created on Commit, together
// with any missing parents.
//
// It fails with ErrNewItemAlreadyExists if path exists, with ErrAlreadyNoted
// if the same spelling is already registered, and with ErrNotADir if path is
// empty or shaped like a file.
func (s *Session) NewDir(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrSessionClosed
	}
	if exists(s.fsmgr, path) {
		return &PathError{Op: "new dir", Path: path, Err: ErrNewItemAlreadyExists}
	}
	if _, ok := s.newDirs[path]; ok {
		return &PathError{Op: "new dir", Path: path, Err: ErrAlreadyNoted}
	}
	if !looksLikeDir(path) {
		return &PathError{Op: "new dir", Path: path, Err: ErrNotADir}
	}

	s.newDirs[path] = struct{}{}
	s.logger.Debug("new dir registered", "session", s.id, "path", path)
	return nil
}

// NotedFile returns the staging path of a noted file. Any spelling that
// denotes the same file as the noted path is accepted.
func (s *Session) NotedFile(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	temp, ok := s.lookupNotedLocked(path)
	if !ok {
		return "", false
	}
	return temp.Path(), true
}

// NewFilePath returns the staging path of a registered new file. Only the
// exact spelling used at registration is recognised.
func (s *Session) NewFilePath(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	temp, ok := s.newFiles[path]
	if !ok {
		return "", false
	}
	return temp.Path(), true
}

// lookupNotedLocked finds the noted entry for path, first by spelling and
// then by filesystem identity. The caller must hold s.mu.
func (s *Session) lookupNotedLocked(path string) (TempFile, bool) {
	if temp, ok := s.noted[path]; ok {
		return temp, true
	}
	for original, temp := range s.noted {
		if s.fsmgr.SameFile(original, path) {
			return temp, true
		}
	}
	return nil, false
}
