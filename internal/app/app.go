package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fsrollback/internal/config"
	"fsrollback/internal/database"
	"fsrollback/internal/fs"
	"fsrollback/internal/model"
	"fsrollback/internal/plan"
	"fsrollback/internal/rollback"
	"fsrollback/internal/staging"
)

// App is the application layer between the CLI and the rollback engine.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw plan paths, and records every transaction in the history
// database. The caller must call Close when done.
type App struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	fsmgr   *fs.OSFilesystemManager
	staging *staging.Area
	logger  *slog.Logger
	logFile *os.File
}

// NewApp creates a fully wired App from the given config.
func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fsmgr := fs.NewOSFilesystemManager()

	area, err := staging.NewAreaFromConfig(cfg.Staging, fsmgr)
	if err != nil {
		return nil, fmt.Errorf("creating staging area: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &App{
		cfg:     cfg,
		db:      db,
		fsmgr:   fsmgr,
		staging: area,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// Apply loads the plan at planPath and applies it as one transaction.
// The outcome is recorded in the history whether or not the commit succeeds.
// A plan that cannot be loaded or staged is not recorded.
func (a *App) Apply(planPath string) (*Result, error) {
	sess, res, err := a.stage(planPath)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	rec, err := a.db.CreateCommit(res.SessionID, res.PlanPath, res.Noted, res.NewFiles, res.NewDirs)
	if err != nil {
		return nil, fmt.Errorf("recording commit: %w", err)
	}
	res.CommitID = rec.ID

	commitErr := sess.Commit()
	res.Status = model.StatusCommitted
	errMsg := ""
	if commitErr != nil {
		res.Status = model.StatusFailed
		errMsg = commitErr.Error()
	}

	if err := a.db.FinishCommit(rec.ID, res.Status, errMsg); err != nil {
		return res, errors.Join(commitErr, fmt.Errorf("finishing commit record: %w", err))
	}
	if commitErr != nil {
		return res, fmt.Errorf("applying %s: %w", planPath, commitErr)
	}
	return res, nil
}

// Check loads and stages the plan at planPath without committing it.
// Every registration check runs against the current filesystem, then the
// session is discarded. The dry run is recorded with status discarded.
func (a *App) Check(planPath string) (*Result, error) {
	sess, res, err := a.stage(planPath)
	if err != nil {
		return nil, err
	}

	rec, err := a.db.CreateCommit(res.SessionID, res.PlanPath, res.Noted, res.NewFiles, res.NewDirs)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("recording check: %w", err)
	}
	res.CommitID = rec.ID
	res.Status = model.StatusDiscarded

	if err := sess.Close(); err != nil {
		a.logger.Warn("discarding staging files failed", "session", res.SessionID, "error", err)
	}
	if err := a.db.FinishCommit(rec.ID, res.Status, ""); err != nil {
		return res, fmt.Errorf("finishing check record: %w", err)
	}
	return res, nil
}

// stage loads a plan and registers it with a new session. On error the
// session is already closed.
func (a *App) stage(planPath string) (*rollback.Session, *Result, error) {
	abs, err := filepath.Abs(planPath)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving plan path: %w", err)
	}

	p, err := plan.LoadFile(abs)
	if err != nil {
		return nil, nil, err
	}

	modify, dirs, files := p.Len()
	sess := rollback.New(a.fsmgr, a.staging,
		rollback.WithCapacity(modify, files, dirs),
		rollback.WithLogger(a.logger),
		rollback.WithMaxWorkers(a.cfg.Commit.MaxWorkers),
	)

	if err := p.Stage(sess); err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("staging %s: %w", planPath, err)
	}

	noted, newFiles, newDirs := sess.Len()
	return sess, &Result{
		SessionID: sess.ID(),
		PlanPath:  abs,
		Noted:     noted,
		NewFiles:  newFiles,
		NewDirs:   newDirs,
	}, nil
}

// History returns the most recent commits, newest first.
func (a *App) History(limit int) ([]*model.Commit, error) {
	return a.db.ListCommits(limit)
}

// Close closes the database and the log file.
// Temporary files still alive at this point are backups that a failed
// rollback could not restore; they are reported, never removed.
func (a *App) Close() error {
	var firstErr error

	if n := a.staging.Count(); n > 0 {
		a.logger.Warn("temporary files left for manual recovery", "count", n)
	}

	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
