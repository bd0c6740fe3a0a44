// Package discover expands a glob pattern under a resolved directory.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// GlobError reports a pattern that cannot be compiled or expanded.
type GlobError struct {
	Pattern string
	Err     error
}

func (e *GlobError) Error() string {
	return fmt.Sprintf("failed to resolve glob pattern `%s`: %v", e.Pattern, e.Err)
}

func (e *GlobError) Unwrap() error { return e.Err }

// Files returns the absolute paths of the regular files under root that
// match pattern. `**` matches any number of directories. Entries that
// cannot be read or stat'ed are skipped. Symlinks are followed.
//
// The order is the order in which the glob engine walks the tree.
func Files(root, pattern string) ([]string, error) {
	return FilesFS(os.DirFS(root), root, pattern)
}

// FilesFS is Files over an arbitrary fs.FS whose root corresponds to root.
func FilesFS(fsys fs.FS, root, pattern string) ([]string, error) {
	if path.IsAbs(pattern) || filepath.IsAbs(pattern) {
		return nil, &GlobError{Pattern: pattern, Err: fmt.Errorf("pattern must be relative to dir")}
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, &GlobError{Pattern: pattern, Err: doublestar.ErrBadPattern}
	}

	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, &GlobError{Pattern: pattern, Err: err}
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := fs.Stat(fsys, m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(root, filepath.FromSlash(m)))
	}
	return files, nil
}
