package rollback

import (
	"errors"
	"sync"
)

// Session groups filesystem changes so they are applied all at once or not
// at all.
//
// Three kinds of change are supported: modifying an existing file, creating
// a new file and creating a new directory. Existing and new files are edited
// through staging copies returned by NotedFile and NewFilePath; nothing
// touches the real paths until Commit. If any part of the commit fails,
// every change already applied is rolled back before Commit returns.
// Closing a session without committing discards the staging copies and
// leaves the filesystem untouched.
//
// Noted files are deduplicated by filesystem identity, so "a/b.txt" and
// "./a/b.txt" cannot both be noted. New files and directories do not exist
// yet and can only be compared by spelling; two spellings of the same new
// path are accepted at registration and make the commit fail with
// ErrRepeatedNewFile or ErrRepeatedNewDir.
type Session struct {
	id         string
	fsmgr      FilesystemManager
	temps      TempAllocator
	logger     Logger
	clock      Clock
	idgen      IDGenerator
	maxWorkers int

	notedCap, newFilesCap, newDirsCap int

	mu    sync.Mutex
	state State
	// staged owns every staging file; they live exactly as long as the session.
	staged   []TempFile
	noted    map[string]TempFile
	newFiles map[string]TempFile
	newDirs  map[string]struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithCapacity preallocates room for the given number of noted files, new
// files and new directories.
func WithCapacity(noted, newFiles, newDirs int) Option {
	return func(s *Session) {
		s.notedCap = noted
		s.newFilesCap = newFiles
		s.newDirsCap = newDirs
	}
}

// WithLogger sets the logger used for registration and commit events.
func WithLogger(logger Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithClock sets the clock used to time commits.
func WithClock(clock Clock) Option {
	return func(s *Session) { s.clock = clock }
}

// WithIDGenerator sets the generator for the session ID.
func WithIDGenerator(idgen IDGenerator) Option {
	return func(s *Session) { s.idgen = idgen }
}

// WithMaxWorkers bounds how many items of a commit phase run at once.
// Zero or a negative value means no bound.
func WithMaxWorkers(n int) Option {
	return func(s *Session) { s.maxWorkers = n }
}

// New creates an empty session.
func New(fsmgr FilesystemManager, temps TempAllocator, opts ...Option) *Session {
	s := &Session{
		fsmgr:  fsmgr,
		temps:  temps,
		logger: NewNopLogger(),
		clock:  RealClock{},
		idgen:  UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.id = s.idgen.New()
	s.staged = make([]TempFile, 0, s.notedCap+s.newFilesCap)
	s.noted = make(map[string]TempFile, s.notedCap)
	s.newFiles = make(map[string]TempFile, s.newFilesCap)
	s.newDirs = make(map[string]struct{}, s.newDirsCap)
	return s
}

// ID returns the identifier used to correlate the session's log lines.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Len returns the number of noted files, new files and new directories.
func (s *Session) Len() (noted, newFiles, newDirs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.noted), len(s.newFiles), len(s.newDirs)
}

// Close discards the session without committing. Every staging file is
// removed and the real filesystem is left as it was. Closing a committed
// or already closed session is a no-op; closing during Commit returns
// ErrSessionClosed and leaves the commit running.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.terminal() {
		return nil
	}
	// A running commit owns the staging files until it finishes.
	if s.state != StateIdle {
		return ErrSessionClosed
	}
	s.state = StateDiscarded
	s.logger.Debug("session discarded", "session", s.id)
	return s.releaseLocked()
}

// releaseLocked removes every staging file and empties the registries.
// The caller must hold s.mu.
func (s *Session) releaseLocked() error {
	var errs []error
	for _, temp := range s.staged {
		if err := temp.Remove(); err != nil {
			errs = append(errs, err)
		}
	}
	s.staged = nil
	s.noted = nil
	s.newFiles = nil
	s.newDirs = nil
	return errors.Join(errs...)
}

// adopt records temp as owned by the session. The caller must hold s.mu.
func (s *Session) adopt(temp TempFile) {
	s.staged = append(s.staged, temp)
}
