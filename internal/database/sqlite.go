package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fsrollback/internal/database/migrations"
	"fsrollback/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase stores the commit history in SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteDatabaseFromDB(db, path), nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:   db,
		path: path,
		now:  time.Now,
	}
}

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Every pooled connection would get its own in-memory database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// CreateCommit records the start of a commit and returns the new record.
func (s *SQLiteDatabase) CreateCommit(sessionID, planPath string, noted, newFiles, newDirs int) (*model.Commit, error) {
	startedAt := s.now().UTC()
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO commits (session_id, plan_path, status, noted, new_files, new_dirs, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, planPath, model.StatusRunning, noted, newFiles, newDirs, startedAt)
	if err != nil {
		return nil, fmt.Errorf("creating commit record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading commit id: %w", err)
	}

	return &model.Commit{
		ID:        id,
		SessionID: sessionID,
		PlanPath:  planPath,
		Status:    model.StatusRunning,
		Noted:     noted,
		NewFiles:  newFiles,
		NewDirs:   newDirs,
		StartedAt: startedAt,
	}, nil
}

// FinishCommit stores the outcome of a commit.
func (s *SQLiteDatabase) FinishCommit(id int64, status string, errMsg string) error {
	res, err := s.db.ExecContext(context.Background(),
		`UPDATE commits SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, errMsg, s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing commit record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing commit record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("commit record %d not found", id)
	}
	return nil
}

// FindCommit returns the record with the given ID, or nil if there is none.
func (s *SQLiteDatabase) FindCommit(id int64) (*model.Commit, error) {
	row := s.db.QueryRowContext(context.Background(),
		`SELECT id, session_id, plan_path, status, noted, new_files, new_dirs, error, started_at, finished_at
		 FROM commits WHERE id = ?`, id)

	c, err := scanCommit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding commit record: %w", err)
	}
	return c, nil
}

// ListCommits returns the most recent commits, newest first.
func (s *SQLiteDatabase) ListCommits(limit int) ([]*model.Commit, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, session_id, plan_path, status, noted, new_files, new_dirs, error, started_at, finished_at
		 FROM commits ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing commit records: %w", err)
	}
	defer rows.Close()

	var result []*model.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("reading commit record: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing commit records: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCommit(row scanner) (*model.Commit, error) {
	var (
		c        model.Commit
		finished sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.SessionID, &c.PlanPath, &c.Status, &c.Noted, &c.NewFiles,
		&c.NewDirs, &c.Error, &c.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		c.FinishedAt = &t
	}
	return &c, nil
}

// Path returns the database file path.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate brings the schema up to date.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.Up(s.db)
}

// CheckMigrations reports an error if the schema is not at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.Check(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
