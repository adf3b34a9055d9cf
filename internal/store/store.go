package store

import (
	"os"
	"path/filepath"
	"strings"
)

// Store is the local state directory: persisted view state plus the command journal.
type Store struct {
	Dir string
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) path(name string) string {
	return filepath.Join(filepath.Clean(s.Dir), name)
}

func (s Store) enabled() bool {
	return strings.TrimSpace(s.Dir) != ""
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}
