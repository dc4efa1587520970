package app

// Result summarizes one applied or checked plan.
type Result struct {
	CommitID  int64  // history record ID
	SessionID string // rollback session that staged the plan
	PlanPath  string // absolute path of the plan
	Status    string // one of the model.Status* constants
	Noted     int
	NewFiles  int
	NewDirs   int
}

// Changes returns the total number of changes in the plan.
func (r *Result) Changes() int {
	return r.Noted + r.NewFiles + r.NewDirs
}
