package plan

import (
	"fmt"
	"io"
	"os"
)

// Session is the part of a rollback session a plan needs to register its
// changes.
type Session interface {
	NoteFile(original string) (string, error)
	NewFile(path string) (string, error)
	NewDir(path string) error
}

// Stage registers every change of the plan with sess and writes the final
// contents into the staging files. On error the session holds a partial
// registration and should be closed by the caller.
func (p *Plan) Stage(sess Session) error {
	for _, d := range p.Dirs {
		if err := sess.NewDir(p.resolve(d.Path)); err != nil {
			return fmt.Errorf("registering directory: %w", err)
		}
	}

	for _, c := range p.Files {
		staging, err := sess.NewFile(p.resolve(c.Path))
		if err != nil {
			return fmt.Errorf("registering new file: %w", err)
		}
		if err := p.writeContent(c, staging); err != nil {
			return fmt.Errorf("staging %s: %w", c.Path, err)
		}
	}

	for _, c := range p.Modify {
		staging, err := sess.NoteFile(p.resolve(c.Path))
		if err != nil {
			return fmt.Errorf("registering modified file: %w", err)
		}
		if err := p.writeContent(c, staging); err != nil {
			return fmt.Errorf("staging %s: %w", c.Path, err)
		}
	}

	return nil
}

// writeContent replaces the content of the staging file with the change's
// inline content or with a copy of its source file.
func (p *Plan) writeContent(c FileChange, staging string) error {
	out, err := os.OpenFile(staging, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("opening staging file: %w", err)
	}

	if c.Content != nil {
		_, err = io.WriteString(out, *c.Content)
	} else {
		err = copyFrom(out, p.resolve(c.Source))
	}
	if err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyFrom(w io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("copying source: %w", err)
	}
	return nil
}
