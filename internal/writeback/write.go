package writeback

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
)

// WriteAtomic replaces name with content. The bytes go to a temp file in
// the same directory first and are renamed into place, so readers never
// observe a half-written file.
func WriteAtomic(fs billy.Filesystem, name string, content []byte) error {
	dir, base := path.Split(filepath.ToSlash(name))
	if dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmpName := fs.Join(dir, fmt.Sprintf(".%s.%d.tmp", base, os.Getpid()))
	tmp, err := fs.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := fs.Rename(tmpName, name); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("rename %s to %s: %w", tmpName, name, err)
	}
	return nil
}

// Remove deletes name, treating a missing file as already removed.
func Remove(fs billy.Filesystem, name string) error {
	if err := fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
