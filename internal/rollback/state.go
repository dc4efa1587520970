package rollback

// State is the position of a Session in its commit lifecycle.
type State int

const (
	// StateIdle accepts registrations.
	StateIdle State = iota
	StateCommittingNoted
	StateCommittingDirs
	StateCommittingFiles
	// StateRollingBack is entered from any committing state after a failure.
	StateRollingBack
	StateDone
	StateFailed
	// StateDiscarded means the session was closed without committing.
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCommittingNoted:
		return "committing-noted"
	case StateCommittingDirs:
		return "committing-dirs"
	case StateCommittingFiles:
		return "committing-files"
	case StateRollingBack:
		return "rolling-back"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// terminal reports whether no further transition can happen from s.
func (s State) terminal() bool {
	return s == StateDone || s == StateFailed || s == StateDiscarded
}
