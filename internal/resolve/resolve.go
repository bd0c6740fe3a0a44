// Package resolve turns the configured base directory into an absolute,
// existing directory, expanding `$NAME` path segments from an environment.
package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// MapEnv returns a LookupFunc backed by a fixed map.
func MapEnv(env map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

// Overlay returns a LookupFunc that consults vars first and falls back to
// base.
func Overlay(base LookupFunc, vars map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		if v, ok := vars[name]; ok {
			return v, true
		}
		if base == nil {
			return "", false
		}
		return base(name)
	}
}

// EnvResolutionError reports a `$NAME` segment that could not be expanded.
type EnvResolutionError struct {
	Name string
	// Cycle is set when the variable refers back to itself.
	Cycle bool
}

func (e *EnvResolutionError) Error() string {
	if e.Cycle {
		return fmt.Sprintf("failed to resolve env var `%s`: cyclic reference", e.Name)
	}
	return fmt.Sprintf("failed to resolve env var `%s`: environment variable not found", e.Name)
}

// DirectoryKind says which directory check failed.
type DirectoryKind int

const (
	NotFound DirectoryKind = iota
	NotADirectory
	NotAbsolute
)

func (k DirectoryKind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case NotADirectory:
		return "NotADirectory"
	default:
		return "NotAbsolute"
	}
}

// DirectoryError reports a resolved path that is not a usable base
// directory.
type DirectoryError struct {
	Kind DirectoryKind
	Path string
}

func (e *DirectoryError) Error() string {
	switch e.Kind {
	case NotFound:
		return fmt.Sprintf("`%s` does not exist", e.Path)
	case NotADirectory:
		return fmt.Sprintf("`%s` is not a directory", e.Path)
	default:
		return fmt.Sprintf("`%s` is not an absolute path", e.Path)
	}
}

// Expand substitutes every path segment starting with `$` by the value of
// the named variable. Values are expanded again, so a variable may hold
// further `$` segments.
func Expand(raw string, lookup LookupFunc) (string, error) {
	out, err := expand(raw, lookup, nil)
	if err != nil {
		return "", err
	}
	return filepath.FromSlash(out), nil
}

func expand(raw string, lookup LookupFunc, visiting []string) (string, error) {
	segments := strings.Split(filepath.ToSlash(raw), "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, "$") {
			continue
		}
		name := seg[1:]
		if slices.Contains(visiting, name) {
			return "", &EnvResolutionError{Name: name, Cycle: true}
		}
		value, ok := lookup(name)
		if !ok {
			return "", &EnvResolutionError{Name: name}
		}
		resolved, err := expand(value, lookup, append(visiting, name))
		if err != nil {
			return "", err
		}
		segments[i] = resolved
	}
	return strings.Join(segments, "/"), nil
}

// Resolve expands raw and validates that the result exists, is a directory
// and is absolute, in that order.
func Resolve(raw string, lookup LookupFunc) (string, error) {
	expanded, err := Expand(raw, lookup)
	if err != nil {
		return "", err
	}
	dir := filepath.Clean(expanded)

	info, err := os.Stat(dir)
	if err != nil {
		return "", &DirectoryError{Kind: NotFound, Path: dir}
	}
	if !info.IsDir() {
		return "", &DirectoryError{Kind: NotADirectory, Path: dir}
	}
	if !filepath.IsAbs(dir) {
		return "", &DirectoryError{Kind: NotAbsolute, Path: dir}
	}
	return dir, nil
}
