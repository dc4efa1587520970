package model

import "time"

// Commit statuses recorded in the history.
const (
	StatusRunning   = "running"
	StatusCommitted = "committed"
	StatusFailed    = "failed"
	StatusDiscarded = "discarded"
)

// Commit is the history record of one transaction applied by fsrb.
type Commit struct {
	ID         int64      // Auto-increment ID
	SessionID  string     // ID of the rollback session that ran the commit
	PlanPath   string     // Absolute path of the change plan
	Status     string     // One of the Status* constants
	Noted      int        // Number of modified files
	NewFiles   int        // Number of created files
	NewDirs    int        // Number of created directories
	Error      string     // Failure message, empty on success
	StartedAt  time.Time  // When the commit started
	FinishedAt *time.Time // When the commit finished, nil while running
}
