package fs_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	fsimpl "fsrollback/internal/fs"
	"fsrollback/internal/testutil"
)

func TestOSFilesystemManager_CopyFile(t *testing.T) {
	m := fsimpl.NewOSFilesystemManager()

	t.Run("creates dst with the mode of src", func(t *testing.T) {
		root := t.TempDir()
		src := testutil.WriteFile(t, root, "src.sh", "#!/bin/sh\n")
		if err := os.Chmod(src, 0750); err != nil {
			t.Fatal(err)
		}
		dst := filepath.Join(root, "dst.sh")

		if err := m.CopyFile(src, dst); err != nil {
			t.Fatalf("CopyFile() error = %v", err)
		}
		if got := testutil.ReadFile(t, dst); got != "#!/bin/sh\n" {
			t.Errorf("dst content = %q", got)
		}
		info, err := os.Stat(dst)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0750 {
			t.Errorf("dst mode = %v, want 0750", info.Mode().Perm())
		}
	})

	t.Run("truncates an existing dst", func(t *testing.T) {
		root := t.TempDir()
		src := testutil.WriteFile(t, root, "src.txt", "short")
		dst := testutil.WriteFile(t, root, "dst.txt", "a much longer previous content")

		if err := m.CopyFile(src, dst); err != nil {
			t.Fatalf("CopyFile() error = %v", err)
		}
		if got := testutil.ReadFile(t, dst); got != "short" {
			t.Errorf("dst content = %q, want %q", got, "short")
		}
	})

	t.Run("rejects a directory source", func(t *testing.T) {
		root := t.TempDir()
		if err := m.CopyFile(root, filepath.Join(root, "out.txt")); err == nil {
			t.Errorf("CopyFile() of a directory succeeded")
		}
	})

	t.Run("missing source", func(t *testing.T) {
		root := t.TempDir()
		err := m.CopyFile(filepath.Join(root, "missing.txt"), filepath.Join(root, "out.txt"))
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("CopyFile() error = %v, want ErrNotExist", err)
		}
	})
}

func TestOSFilesystemManager_CreateFile(t *testing.T) {
	m := fsimpl.NewOSFilesystemManager()
	path := filepath.Join(t.TempDir(), "new.txt")

	if err := m.CreateFile(path); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	if got := testutil.ReadFile(t, path); got != "" {
		t.Errorf("new file content = %q, want empty", got)
	}

	t.Run("is exclusive", func(t *testing.T) {
		if err := m.CreateFile(path); !errors.Is(err, fs.ErrExist) {
			t.Errorf("second CreateFile() error = %v, want ErrExist", err)
		}
	})
}

func TestOSFilesystemManager_Mkdir(t *testing.T) {
	m := fsimpl.NewOSFilesystemManager()
	root := t.TempDir()
	dir := filepath.Join(root, "d")

	if err := m.Mkdir(dir); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	if err := m.Mkdir(dir); !errors.Is(err, fs.ErrExist) {
		t.Errorf("second Mkdir() error = %v, want ErrExist", err)
	}
	if err := m.MkdirAll(filepath.Join(root, "a", "b", "c")); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if !testutil.Exists(filepath.Join(root, "a", "b", "c")) {
		t.Errorf("MkdirAll() did not create the tree")
	}
}

func TestOSFilesystemManager_SameFile(t *testing.T) {
	m := fsimpl.NewOSFilesystemManager()
	root := t.TempDir()
	a := testutil.WriteFile(t, root, "a.txt", "x")
	b := testutil.WriteFile(t, root, "b.txt", "x")
	if err := os.Mkdir(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		x, y  string
		equal bool
	}{
		{"same spelling", a, a, true},
		{"dot segment", a, filepath.Join(root, ".", "a.txt"), true},
		// Spelled by hand because Join would clean the parent segment away.
		{"parent segment", a, root + "/sub/../a.txt", true},
		{"parent segment through a missing dir", a, root + "/missing/../a.txt", false},
		{"different files", a, b, false},
		{"missing file", a, filepath.Join(root, "missing.txt"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.SameFile(tt.x, tt.y); got != tt.equal {
				t.Errorf("SameFile(%q, %q) = %v, want %v", tt.x, tt.y, got, tt.equal)
			}
		})
	}

	t.Run("symlink", func(t *testing.T) {
		link := filepath.Join(root, "link.txt")
		if err := os.Symlink(a, link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		if !m.SameFile(a, link) {
			t.Errorf("SameFile() of a file and its symlink = false")
		}
	})
}

func TestOSFilesystemManager_CreateTemp(t *testing.T) {
	m := fsimpl.NewOSFilesystemManager()
	root := t.TempDir()

	path, err := m.CreateTemp(root, ".tmp-*")
	if err != nil {
		t.Fatalf("CreateTemp() error = %v", err)
	}
	if filepath.Dir(path) != root {
		t.Errorf("temp created in %q, want %q", filepath.Dir(path), root)
	}
	if !testutil.Exists(path) {
		t.Errorf("temp file does not exist")
	}
}
