package rollback

import (
	"path/filepath"
	"strings"
)

// hasExtension reports whether the final element of path carries an extension.
// A leading dot does not start an extension, so ".profile" has none while
// "notes.txt" and "archive." do.
func hasExtension(path string) bool {
	name := filepath.Base(path)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return false
	}
	return strings.LastIndexByte(name, '.') > 0
}

// looksLikeFile reports whether path is shaped like a file path.
func looksLikeFile(path string) bool {
	return path != "" && hasExtension(path)
}

// looksLikeDir reports whether path is shaped like a directory path.
func looksLikeDir(path string) bool {
	return path != "" && !hasExtension(path)
}

// parentDir returns the directory containing path. A bare file name
// resolves to the current directory.
func parentDir(path string) string {
	return filepath.Dir(path)
}

// depth returns the number of elements in the absolute, cleaned form of path.
// Directories are created shallowest first, so a registered parent always
// exists before its registered children are attempted.
func depth(path string) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	abs = filepath.ToSlash(abs)
	return len(strings.FieldsFunc(abs, func(r rune) bool { return r == '/' }))
}

// topMissingAncestor returns the highest element of path (path itself or one
// of its parents) that does not exist yet, or "" if path already exists.
// Removing it undoes everything a MkdirAll(path) call would create.
func topMissingAncestor(fsmgr FilesystemManager, path string) string {
	top := ""
	for cur := filepath.Clean(path); ; {
		if exists(fsmgr, cur) {
			return top
		}
		top = cur
		next := filepath.Dir(cur)
		if next == cur {
			return top
		}
		cur = next
	}
}
