// Package envfile guards transient rewrites of a component's local
// configuration file. The release process may overwrite such a file for
// the duration of a build and must never leave that mutation behind,
// including when the build fails.
package envfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// snapshot captures the state of a file before a transient mutation:
// either its content and mode, or the fact that it did not exist.
type snapshot struct {
	path    string
	content []byte
	mode    os.FileMode
	exists  bool
}

func take(path string) (*snapshot, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &snapshot{path: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	return &snapshot{
		path:    path,
		content: content,
		mode:    info.Mode().Perm(),
		exists:  true,
	}, nil
}

func (s *snapshot) restore() error {
	if !s.exists {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %q: %w", s.path, err)
		}
		return nil
	}
	if err := os.WriteFile(s.path, s.content, s.mode); err != nil {
		return fmt.Errorf("restore %q: %w", s.path, err)
	}
	return nil
}

// WithSnapshot captures the state of the file at path, runs body, and
// restores the captured state on every exit path, including a panic
// inside body. Restore failures are joined with the body's error.
func WithSnapshot(path string, body func() error) (err error) {
	snap, takeErr := take(path)
	if takeErr != nil {
		return takeErr
	}

	defer func() {
		if restoreErr := snap.restore(); restoreErr != nil {
			err = errors.Join(err, restoreErr)
		}
	}()

	return body()
}
