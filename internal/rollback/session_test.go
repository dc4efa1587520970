package rollback_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	fsimpl "fsrollback/internal/fs"
	"fsrollback/internal/rollback"
	"fsrollback/internal/staging"
	"fsrollback/internal/testutil"
)

// newSession returns a session backed by the real filesystem and a staging
// area outside of any test tree.
func newSession(t *testing.T, fsmgr rollback.FilesystemManager, opts ...rollback.Option) (*rollback.Session, *staging.Area) {
	t.Helper()
	if fsmgr == nil {
		fsmgr = fsimpl.NewOSFilesystemManager()
	}
	area, err := staging.NewArea(fsmgr, t.TempDir())
	if err != nil {
		t.Fatalf("NewArea() error = %v", err)
	}
	sess := rollback.New(fsmgr, area, opts...)
	t.Cleanup(func() { sess.Close() })
	return sess, area
}

func writeStaging(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write staging file %s: %v", path, err)
	}
}

func TestNew(t *testing.T) {
	sess, _ := newSession(t, nil,
		rollback.WithCapacity(4, 4, 4),
		rollback.WithIDGenerator(testutil.NewStubIDGenerator()),
		rollback.WithClock(testutil.FixedClock()),
	)

	if sess.ID() != "session-1" {
		t.Errorf("ID() = %q, want %q", sess.ID(), "session-1")
	}
	if sess.State() != rollback.StateIdle {
		t.Errorf("State() = %v, want idle", sess.State())
	}
	noted, files, dirs := sess.Len()
	if noted != 0 || files != 0 || dirs != 0 {
		t.Errorf("Len() = %d, %d, %d, want all zero", noted, files, dirs)
	}
}

func TestSession_NoteFile(t *testing.T) {
	t.Run("copies current content to staging", func(t *testing.T) {
		root := t.TempDir()
		orig := testutil.WriteFile(t, root, "a.txt", "Hello world")
		sess, area := newSession(t, nil)

		stagingPath, err := sess.NoteFile(orig)
		if err != nil {
			t.Fatalf("NoteFile() error = %v", err)
		}
		if got := testutil.ReadFile(t, stagingPath); got != "Hello world" {
			t.Errorf("staging content = %q, want %q", got, "Hello world")
		}
		if filepath.Dir(stagingPath) != area.Dir() {
			t.Errorf("staging file in %q, want %q", filepath.Dir(stagingPath), area.Dir())
		}
		if got, ok := sess.NotedFile(orig); !ok || got != stagingPath {
			t.Errorf("NotedFile() = %q, %v, want %q, true", got, ok, stagingPath)
		}
	})

	t.Run("missing path is not a file", func(t *testing.T) {
		root := t.TempDir()
		sess, area := newSession(t, nil)

		_, err := sess.NoteFile(filepath.Join(root, "missing", "path"))
		if !errors.Is(err, rollback.ErrNotAFile) {
			t.Fatalf("NoteFile() error = %v, want ErrNotAFile", err)
		}
		var pathErr *rollback.PathError
		if !errors.As(err, &pathErr) || pathErr.Op != "note" {
			t.Errorf("NoteFile() error = %#v, want *PathError with op note", err)
		}
		if noted, _, _ := sess.Len(); noted != 0 {
			t.Errorf("noted = %d after failed NoteFile, want 0", noted)
		}
		if area.Count() != 0 {
			t.Errorf("%d staging files leaked", area.Count())
		}
	})

	t.Run("directory is not a file", func(t *testing.T) {
		sess, _ := newSession(t, nil)
		if _, err := sess.NoteFile(t.TempDir()); !errors.Is(err, rollback.ErrNotAFile) {
			t.Errorf("NoteFile() error = %v, want ErrNotAFile", err)
		}
	})

	t.Run("same spelling twice", func(t *testing.T) {
		orig := testutil.WriteFile(t, t.TempDir(), "a.txt", "x")
		sess, _ := newSession(t, nil)

		if _, err := sess.NoteFile(orig); err != nil {
			t.Fatalf("NoteFile() error = %v", err)
		}
		if _, err := sess.NoteFile(orig); !errors.Is(err, rollback.ErrAlreadyNoted) {
			t.Errorf("second NoteFile() error = %v, want ErrAlreadyNoted", err)
		}
	})

	t.Run("failed staging allocation leaks nothing", func(t *testing.T) {
		orig := testutil.WriteFile(t, t.TempDir(), "a.txt", "x")
		fsmgr := testutil.NewFaultyFilesystemManager()
		sess, area := newSession(t, fsmgr)
		fsmgr.FailOn(testutil.OpCreateTemp, area.Dir())

		if _, err := sess.NoteFile(orig); !errors.Is(err, testutil.ErrInjected) {
			t.Fatalf("NoteFile() error = %v, want injected failure", err)
		}
		if noted, _, _ := sess.Len(); noted != 0 {
			t.Errorf("noted = %d after failed NoteFile, want 0", noted)
		}
		if area.Count() != 0 {
			t.Errorf("%d staging files leaked", area.Count())
		}
	})

	t.Run("failed copy reports a failed cleanup", func(t *testing.T) {
		orig := testutil.WriteFile(t, t.TempDir(), "a.txt", "x")
		fsmgr := testutil.NewFaultyFilesystemManager()
		sess, area := newSession(t, fsmgr)
		errCopy := errors.New("copy failed")
		errRemove := errors.New("remove failed")
		fsmgr.FailInDir(testutil.OpCopyFile, area.Dir(), errCopy)
		fsmgr.FailInDir(testutil.OpRemove, area.Dir(), errRemove)

		_, err := sess.NoteFile(orig)
		if !errors.Is(err, errCopy) {
			t.Errorf("NoteFile() error = %v, want the copy failure", err)
		}
		if !errors.Is(err, errRemove) {
			t.Errorf("NoteFile() error = %v, want the cleanup failure too", err)
		}
		if noted, _, _ := sess.Len(); noted != 0 {
			t.Errorf("noted = %d after failed NoteFile, want 0", noted)
		}
	})
}

// Relative spellings need a fixed working directory, so these subtests do
// not run in parallel.
func TestSession_NoteFile_Alias(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, filepath.Join("a", "b.txt"), "Hello world")
	t.Chdir(root)

	sess, _ := newSession(t, nil)
	stagingPath, err := sess.NoteFile("a/b.txt")
	if err != nil {
		t.Fatalf("NoteFile() error = %v", err)
	}

	if _, err := sess.NoteFile("./a/b.txt"); !errors.Is(err, rollback.ErrAlreadyNoted) {
		t.Errorf("NoteFile(./a/b.txt) error = %v, want ErrAlreadyNoted", err)
	}
	if _, err := sess.NoteFile(filepath.Join(root, "a", "b.txt")); !errors.Is(err, rollback.ErrAlreadyNoted) {
		t.Errorf("NoteFile(absolute) error = %v, want ErrAlreadyNoted", err)
	}

	t.Run("lookup accepts any spelling", func(t *testing.T) {
		for _, p := range []string{"a/b.txt", "./a/b.txt", "a/../a/b.txt"} {
			got, ok := sess.NotedFile(p)
			if !ok || got != stagingPath {
				t.Errorf("NotedFile(%q) = %q, %v, want %q, true", p, got, ok, stagingPath)
			}
		}
	})

	t.Run("symlink counts as the same file", func(t *testing.T) {
		if err := os.Symlink(filepath.Join(root, "a", "b.txt"), "link.txt"); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		if _, err := sess.NoteFile("link.txt"); !errors.Is(err, rollback.ErrAlreadyNoted) {
			t.Errorf("NoteFile(link.txt) error = %v, want ErrAlreadyNoted", err)
		}
	})

	if noted, _, _ := sess.Len(); noted != 1 {
		t.Errorf("noted = %d, want 1", noted)
	}
}

func TestSession_NewFile(t *testing.T) {
	root := t.TempDir()
	existing := testutil.WriteFile(t, root, "exists.txt", "x")

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"existing file", existing, rollback.ErrNewItemAlreadyExists},
		{"existing dir", root, rollback.ErrNewItemAlreadyExists},
		{"no extension", filepath.Join(root, "i"), rollback.ErrNotAFile},
		{"dot file", filepath.Join(root, ".profile"), rollback.ErrNotAFile},
		{"empty", "", rollback.ErrNotAFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, area := newSession(t, nil)
			if _, err := sess.NewFile(tt.path); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewFile(%q) error = %v, want %v", tt.path, err, tt.wantErr)
			}
			if _, files, _ := sess.Len(); files != 0 {
				t.Errorf("new files = %d after failed NewFile, want 0", files)
			}
			if area.Count() != 0 {
				t.Errorf("%d staging files leaked", area.Count())
			}
		})
	}

	t.Run("registers an empty staging file", func(t *testing.T) {
		sess, _ := newSession(t, nil)
		path := filepath.Join(root, "i.txt")

		stagingPath, err := sess.NewFile(path)
		if err != nil {
			t.Fatalf("NewFile() error = %v", err)
		}
		if got := testutil.ReadFile(t, stagingPath); got != "" {
			t.Errorf("staging content = %q, want empty", got)
		}
		if testutil.Exists(path) {
			t.Errorf("NewFile() created the target before commit")
		}
		if got, ok := sess.NewFilePath(path); !ok || got != stagingPath {
			t.Errorf("NewFilePath() = %q, %v, want %q, true", got, ok, stagingPath)
		}

		if _, err := sess.NewFile(path); !errors.Is(err, rollback.ErrAlreadyNoted) {
			t.Errorf("second NewFile() error = %v, want ErrAlreadyNoted", err)
		}
	})

	t.Run("lookup is by exact spelling", func(t *testing.T) {
		sess, _ := newSession(t, nil)
		path := filepath.Join(root, "j.txt")
		if _, err := sess.NewFile(path); err != nil {
			t.Fatalf("NewFile() error = %v", err)
		}
		if _, ok := sess.NewFilePath(root + "/./j.txt"); ok {
			t.Errorf("NewFilePath() matched a different spelling")
		}
	})

	t.Run("different spellings are both accepted", func(t *testing.T) {
		sess, _ := newSession(t, nil)
		if _, err := sess.NewFile(filepath.Join(root, "k.txt")); err != nil {
			t.Fatalf("NewFile() error = %v", err)
		}
		if _, err := sess.NewFile(root + "/./k.txt"); err != nil {
			t.Errorf("NewFile() of an alias error = %v, want nil", err)
		}
	})
}

func TestSession_NewDir(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "exists.txt", "x")

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"existing dir", root, rollback.ErrNewItemAlreadyExists},
		{"existing file", filepath.Join(root, "exists.txt"), rollback.ErrNewItemAlreadyExists},
		{"file shaped", filepath.Join(root, "i.txt"), rollback.ErrNotADir},
		{"empty", "", rollback.ErrNotADir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, _ := newSession(t, nil)
			if err := sess.NewDir(tt.path); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewDir(%q) error = %v, want %v", tt.path, err, tt.wantErr)
			}
			if _, _, dirs := sess.Len(); dirs != 0 {
				t.Errorf("new dirs = %d after failed NewDir, want 0", dirs)
			}
		})
	}

	t.Run("registers without touching the filesystem", func(t *testing.T) {
		sess, area := newSession(t, nil)
		path := filepath.Join(root, "i")

		if err := sess.NewDir(path); err != nil {
			t.Fatalf("NewDir() error = %v", err)
		}
		if testutil.Exists(path) {
			t.Errorf("NewDir() created the directory before commit")
		}
		if area.Count() != 0 {
			t.Errorf("NewDir() allocated %d staging files", area.Count())
		}
		if err := sess.NewDir(path); !errors.Is(err, rollback.ErrAlreadyNoted) {
			t.Errorf("second NewDir() error = %v, want ErrAlreadyNoted", err)
		}
	})
}

func TestSession_Close(t *testing.T) {
	t.Run("discards staging files and leaves the filesystem alone", func(t *testing.T) {
		root := t.TempDir()
		orig := testutil.WriteFile(t, root, "a.txt", "Hello world")
		before := testutil.Snapshot(t, root)

		sess, area := newSession(t, nil)
		notedStaging, err := sess.NoteFile(orig)
		if err != nil {
			t.Fatalf("NoteFile() error = %v", err)
		}
		writeStaging(t, notedStaging, "changed")
		newPath := filepath.Join(root, "i.txt")
		newStaging, err := sess.NewFile(newPath)
		if err != nil {
			t.Fatalf("NewFile() error = %v", err)
		}
		writeStaging(t, newStaging, "new content")
		if err := sess.NewDir(filepath.Join(root, "i")); err != nil {
			t.Fatalf("NewDir() error = %v", err)
		}

		if err := sess.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		testutil.AssertSnapshot(t, root, before)
		for _, p := range []string{notedStaging, newStaging} {
			if testutil.Exists(p) {
				t.Errorf("staging file %s still exists", p)
			}
		}
		if area.Count() != 0 {
			t.Errorf("Count() = %d after Close, want 0", area.Count())
		}
		if sess.State() != rollback.StateDiscarded {
			t.Errorf("State() = %v, want discarded", sess.State())
		}
	})

	t.Run("closed session rejects every call", func(t *testing.T) {
		root := t.TempDir()
		orig := testutil.WriteFile(t, root, "a.txt", "x")
		sess, _ := newSession(t, nil)
		if err := sess.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		if _, err := sess.NoteFile(orig); !errors.Is(err, rollback.ErrSessionClosed) {
			t.Errorf("NoteFile() error = %v, want ErrSessionClosed", err)
		}
		if _, err := sess.NewFile(filepath.Join(root, "i.txt")); !errors.Is(err, rollback.ErrSessionClosed) {
			t.Errorf("NewFile() error = %v, want ErrSessionClosed", err)
		}
		if err := sess.NewDir(filepath.Join(root, "i")); !errors.Is(err, rollback.ErrSessionClosed) {
			t.Errorf("NewDir() error = %v, want ErrSessionClosed", err)
		}
		if err := sess.Commit(); !errors.Is(err, rollback.ErrSessionClosed) {
			t.Errorf("Commit() error = %v, want ErrSessionClosed", err)
		}
		if _, ok := sess.NotedFile(orig); ok {
			t.Errorf("NotedFile() found an entry in a closed session")
		}
		if err := sess.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})
}
