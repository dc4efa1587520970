package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// WriteFile creates path under root with content, creating parents as
// needed, and returns the absolute path.
func WriteFile(t *testing.T, root, path, content string) string {
	t.Helper()

	full := filepath.Join(root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("failed to create parent of %s: %v", full, err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", full, err)
	}
	return full
}

// ReadFile returns the content of path, failing the test if it cannot be read.
func ReadFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// Exists reports whether anything exists at path.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Snapshot returns every entry under root keyed by slash-separated relative
// path. Files map to their content and directories to "/".
func Snapshot(t *testing.T, root string) map[string]string {
	t.Helper()

	snap := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			snap[rel] = "/"
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		snap[rel] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to snapshot %s: %v", root, err)
	}
	return snap
}

// AssertSnapshot fails the test if root no longer matches want.
func AssertSnapshot(t *testing.T, root string, want map[string]string) {
	t.Helper()

	got := Snapshot(t, root)
	var diffs []string
	for path, content := range want {
		if g, ok := got[path]; !ok {
			diffs = append(diffs, "missing "+path)
		} else if g != content {
			diffs = append(diffs, "changed "+path)
		}
	}
	for path := range got {
		if _, ok := want[path]; !ok {
			diffs = append(diffs, "unexpected "+path)
		}
	}
	if len(diffs) > 0 {
		sort.Strings(diffs)
		t.Errorf("tree under %s differs:\n%s", root, strings.Join(diffs, "\n"))
	}
}
