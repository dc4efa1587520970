package plan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Plan describes one transaction: files to modify, directories to create
// and files to create. It is applied as a single rollback session.
//
// Example:
//
//	[[modify]]
//	path = "conf/app.ini"
//	content = "debug = false\n"
//
//	[[dir]]
//	path = "out/reports"
//
//	[[file]]
//	path = "out/reports/summary.txt"
//	source = "templates/summary.txt"
type Plan struct {
	Modify []FileChange `toml:"modify"`
	Dirs   []DirChange  `toml:"dir"`
	Files  []FileChange `toml:"file"`

	// baseDir anchors relative paths. It is the directory of the plan file.
	baseDir string
}

// FileChange gives the final content of a modified or new file, either
// inline or as the path of a file to copy it from.
type FileChange struct {
	Path    string  `toml:"path"`
	Content *string `toml:"content"`
	Source  string  `toml:"source"`
}

// DirChange names a directory to create.
type DirChange struct {
	Path string `toml:"path"`
}

// Load decodes a plan from r. Relative paths are resolved against baseDir.
func Load(r io.Reader, baseDir string) (*Plan, error) {
	var p Plan
	md, err := toml.NewDecoder(r).Decode(&p)
	if err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown plan keys: %v", undecoded)
	}

	p.baseDir = baseDir
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadFile reads a plan from path. Relative paths inside the plan are
// resolved against the directory containing it.
func LoadFile(path string) (*Plan, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving plan path: %w", err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan file: %w", err)
	}
	defer f.Close()

	p, err := Load(f, filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("reading plan from %s: %w", path, err)
	}
	return p, nil
}

// Validate checks that every entry names a path and that every file entry
// has exactly one content source.
func (p *Plan) Validate() error {
	var errs []error
	for i, c := range p.Modify {
		if err := c.validate(); err != nil {
			errs = append(errs, fmt.Errorf("modify[%d]: %w", i, err))
		}
	}
	for i, d := range p.Dirs {
		if d.Path == "" {
			errs = append(errs, fmt.Errorf("dir[%d]: path is required", i))
		}
	}
	for i, c := range p.Files {
		if err := c.validate(); err != nil {
			errs = append(errs, fmt.Errorf("file[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (c FileChange) validate() error {
	if c.Path == "" {
		return errors.New("path is required")
	}
	if (c.Content == nil) == (c.Source == "") {
		return errors.New("exactly one of content or source is required")
	}
	return nil
}

// Len returns the number of modified files, new directories and new files.
func (p *Plan) Len() (modify, dirs, files int) {
	return len(p.Modify), len(p.Dirs), len(p.Files)
}

// resolve anchors path at the plan's base directory.
func (p *Plan) resolve(path string) string {
	if filepath.IsAbs(path) || p.baseDir == "" {
		return path
	}
	return filepath.Join(p.baseDir, path)
}
