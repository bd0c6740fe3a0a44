// Package plan computes which tests a dirtest declaration expands to.
// It holds no knowledge of how tests are written out; see internal/emit.
package plan

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/agentic-research/dirtest/api"
	"github.com/agentic-research/dirtest/internal/discover"
	"github.com/agentic-research/dirtest/internal/naming"
	"github.com/agentic-research/dirtest/internal/resolve"
	"github.com/samber/lo"
)

// Options carries the environment and naming policy for a planning pass.
type Options struct {
	Lookup resolve.LookupFunc
	Policy naming.Policy
}

// Plan is the outcome of planning one declaration.
type Plan struct {
	// Func is the shared test body every test calls.
	Func   string
	Config *api.Config
	// Dir is the resolved base directory.
	Dir string
	// Tests are ordered by relative path.
	Tests []api.TestCase
}

// CollisionError reports two fixtures that map to the same test name.
type CollisionError struct {
	Name  string
	First string
	Other string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("fixtures %s and %s both produce test name `%s`", e.First, e.Other, e.Name)
}

// Build resolves cfg.Dir, discovers the fixtures matching cfg.Glob and
// names one test per fixture.
func Build(cfg *api.Config, fn string, opts Options) (*Plan, error) {
	dir, err := resolve.Resolve(cfg.Dir, opts.Lookup)
	if err != nil {
		return nil, err
	}

	files, err := discover.Files(dir, cfg.Glob)
	if err != nil {
		return nil, err
	}

	tests := make([]api.TestCase, 0, len(files))
	for _, f := range files {
		name, err := opts.Policy.Name(dir, f, cfg.Postfix, fn)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(dir, f)
		if err != nil {
			return nil, err
		}
		tests = append(tests, api.TestCase{
			Name:    name,
			Path:    f,
			RelPath: filepath.ToSlash(rel),
		})
	}

	slices.SortFunc(tests, func(a, b api.TestCase) int {
		return strings.Compare(a.RelPath, b.RelPath)
	})

	byName := lo.GroupBy(tests, func(tc api.TestCase) string { return tc.Name })
	for _, tc := range tests {
		if group := byName[tc.Name]; len(group) > 1 {
			return nil, &CollisionError{Name: tc.Name, First: group[0].RelPath, Other: group[1].RelPath}
		}
	}

	return &Plan{Func: fn, Config: cfg, Dir: dir, Tests: tests}, nil
}
