package rollback

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// stagedItem pairs a real path with the staging file holding its content.
type stagedItem struct {
	path    string
	staging string
}

// commit carries the bookkeeping of one commit attempt: the backups taken in
// the noted phase and the entries created by the directory and file phases.
type commit struct {
	s *Session

	noted    []stagedItem
	newFiles []stagedItem
	newDirs  []string

	mu           sync.Mutex
	backups      []*backup
	createdDirs  []string
	createdFiles []string
}

// Commit applies every registered change and consumes the session.
//
// Noted files are overwritten first, then new directories are created, then
// new files. Items within a phase run concurrently and a phase always waits
// for all of its items before its result is evaluated. If anything fails,
// every change already made is undone before Commit returns: noted files
// get their pre-commit content back and the new directories and files
// created by this attempt are removed. The staging files are removed in
// every case.
//
// Per-item failures are reported as *CommitError. If rollback itself cannot
// restore a file, the returned error also carries a *RestoreError naming the
// backup that still holds the pre-commit content.
func (s *Session) Commit() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	c := s.newCommitLocked()
	s.mu.Unlock()

	start := s.clock.Now()
	s.logger.Info("commit started", "session", s.id,
		"noted", len(c.noted), "new_dirs", len(c.newDirs), "new_files", len(c.newFiles))

	err := c.run()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateDone
	}
	if relErr := s.releaseLocked(); relErr != nil {
		s.logger.Warn("removing staging files failed", "session", s.id, "error", relErr)
	}

	elapsed := s.clock.Now().Sub(start)
	if err != nil {
		s.logger.Warn("commit failed", "session", s.id, "elapsed", elapsed, "error", err)
		return err
	}
	s.logger.Info("commit finished", "session", s.id, "elapsed", elapsed)
	return nil
}

// newCommitLocked snapshots the registries so the phases can read them
// without holding s.mu. The caller must hold s.mu.
func (s *Session) newCommitLocked() *commit {
	c := &commit{
		s:        s,
		noted:    make([]stagedItem, 0, len(s.noted)),
		newFiles: make([]stagedItem, 0, len(s.newFiles)),
		newDirs:  make([]string, 0, len(s.newDirs)),
		backups:  make([]*backup, 0, len(s.noted)),
	}
	for path, temp := range s.noted {
		c.noted = append(c.noted, stagedItem{path: path, staging: temp.Path()})
	}
	for path, temp := range s.newFiles {
		c.newFiles = append(c.newFiles, stagedItem{path: path, staging: temp.Path()})
	}
	for path := range s.newDirs {
		c.newDirs = append(c.newDirs, path)
	}
	s.state = StateCommittingNoted
	return c
}

// setState moves the session to state.
func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.logger.Debug("session state changed", "session", s.id, "state", state.String())
}

// group returns an errgroup honouring the session's worker bound. The group
// has no context, so a failing item never cancels its siblings.
func (s *Session) group() *errgroup.Group {
	g := new(errgroup.Group)
	if s.maxWorkers > 0 {
		g.SetLimit(s.maxWorkers)
	}
	return g
}

// run drives the three phases and rolls back on the first failing one.
func (c *commit) run() error {
	phases := []struct {
		state State
		run   func() error
	}{
		{StateCommittingNoted, c.commitNoted},
		{StateCommittingDirs, c.commitDirs},
		{StateCommittingFiles, c.commitFiles},
	}

	for _, phase := range phases {
		c.s.setState(phase.state)
		if err := phase.run(); err != nil {
			c.s.logger.Warn("commit phase failed, rolling back",
				"session", c.s.id, "phase", phase.state.String(), "error", err)
			c.s.setState(StateRollingBack)
			if rbErr := c.rollback(); rbErr != nil {
				c.s.logger.Error("rollback incomplete, manual recovery required",
					"session", c.s.id, "error", rbErr)
				return errors.Join(err, rbErr)
			}
			return err
		}
	}

	c.discardBackups()
	return nil
}

// commitNoted backs up and overwrites every noted file.
func (c *commit) commitNoted() error {
	g := c.s.group()
	for _, item := range c.noted {
		g.Go(func() error { return c.commitNotedFile(item) })
	}
	return g.Wait()
}

func (c *commit) commitNotedFile(item stagedItem) error {
	b, err := newBackup(c.s.fsmgr, c.s.temps, item.path)
	if err != nil {
		return &CommitError{Path: item.path, Err: err}
	}

	// The backup is recorded before the original is touched so a failed
	// overwrite is still restored.
	c.mu.Lock()
	c.backups = append(c.backups, b)
	c.mu.Unlock()

	if err := c.s.fsmgr.CopyFile(item.staging, item.path); err != nil {
		return &CommitError{Path: item.path, Err: err}
	}
	return nil
}

// commitDirs creates every new directory, shallowest first.
func (c *commit) commitDirs() error {
	for _, wave := range dirWaves(c.newDirs) {
		g := c.s.group()
		for _, dir := range wave {
			g.Go(func() error { return c.commitDir(dir) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (c *commit) commitDir(dir string) error {
	fsmgr := c.s.fsmgr

	// A registered directory that exists by now was created by another
	// spelling of the same path.
	if exists(fsmgr, dir) {
		return &CommitError{Path: dir, Err: ErrRepeatedNewDir}
	}

	if top := topMissingAncestor(fsmgr, dir); top != "" {
		c.recordDir(top)
	}

	clean := filepath.Clean(dir)
	if parent := filepath.Dir(clean); !exists(fsmgr, parent) {
		if err := fsmgr.MkdirAll(parent); err != nil {
			return &CommitError{Path: dir, Err: err}
		}
	}

	// Mkdir is exclusive, so when two spellings race only one of them wins.
	if err := fsmgr.Mkdir(clean); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &CommitError{Path: dir, Err: ErrRepeatedNewDir}
		}
		return &CommitError{Path: dir, Err: err}
	}
	return nil
}

// recordDir remembers a directory to remove on rollback. Siblings sharing a
// missing parent record it once.
func (c *commit) recordDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.createdDirs {
		if d == dir {
			return
		}
	}
	c.createdDirs = append(c.createdDirs, dir)
}

// commitFiles creates every new file and fills it with its staged content.
func (c *commit) commitFiles() error {
	g := c.s.group()
	for _, item := range c.newFiles {
		g.Go(func() error { return c.commitNewFile(item) })
	}
	return g.Wait()
}

func (c *commit) commitNewFile(item stagedItem) error {
	fsmgr := c.s.fsmgr

	if exists(fsmgr, item.path) {
		return &CommitError{Path: item.path, Err: ErrRepeatedNewFile}
	}

	if err := fsmgr.CreateFile(item.path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &CommitError{Path: item.path, Err: ErrRepeatedNewFile}
		}
		return &CommitError{Path: item.path, Err: err}
	}

	c.mu.Lock()
	c.createdFiles = append(c.createdFiles, item.path)
	c.mu.Unlock()

	if err := fsmgr.CopyFile(item.staging, item.path); err != nil {
		return &CommitError{Path: item.path, Err: err}
	}
	return nil
}

// rollback undoes everything recorded so far. All phases have finished by
// the time it runs, so the bookkeeping is no longer shared.
func (c *commit) rollback() error {
	var errs []error

	for _, b := range c.backups {
		if err := b.restore(); err != nil {
			errs = append(errs, err)
			continue
		}
		c.discard(b)
	}

	errs = append(errs, c.removeAll(c.createdFiles, func(path string) error {
		return removeIfExists(c.s.fsmgr, path)
	})...)
	errs = append(errs, c.removeAll(c.createdDirs, c.s.fsmgr.RemoveAll)...)

	c.s.logger.Info("rollback finished", "session", c.s.id,
		"restored", len(c.backups), "removed_files", len(c.createdFiles), "removed_dirs", len(c.createdDirs))
	return errors.Join(errs...)
}

// removeAll removes paths concurrently and collects every failure.
func (c *commit) removeAll(paths []string, remove func(string) error) []error {
	var (
		mu   sync.Mutex
		errs []error
	)
	g := c.s.group()
	for _, path := range paths {
		g.Go(func() error {
			if err := remove(path); err != nil {
				mu.Lock()
				errs = append(errs, &RestoreError{Path: path, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return errs
}

// discardBackups removes the backups of a successful commit.
func (c *commit) discardBackups() {
	for _, b := range c.backups {
		c.discard(b)
	}
}

// discard removes a backup whose content is no longer needed. A backup
// that cannot be removed is only a stray file, so the failure is logged.
func (c *commit) discard(b *backup) {
	if err := b.discard(); err != nil {
		c.s.logger.Warn("removing backup failed", "session", c.s.id,
			"path", b.original, "backup", b.temp.Path(), "error", err)
	}
}

// dirWaves groups dirs by depth, shallowest group first.
func dirWaves(dirs []string) [][]string {
	byDepth := make(map[int][]string)
	for _, dir := range dirs {
		d := depth(dir)
		byDepth[d] = append(byDepth[d], dir)
	}

	depths := make([]int, 0, len(byDepth))
	for d := range byDepth {
		depths = append(depths, d)
	}
	sort.Ints(depths)

	waves := make([][]string, 0, len(depths))
	for _, d := range depths {
		waves = append(waves, byDepth[d])
	}
	return waves
}
