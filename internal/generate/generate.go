// Package generate runs the dirtest pipeline for one source file: scan the
// directives, plan every declaration, render, check and write the
// generated test file.
package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-research/dirtest/api"
	"github.com/agentic-research/dirtest/internal/directive"
	"github.com/agentic-research/dirtest/internal/emit"
	"github.com/agentic-research/dirtest/internal/linter"
	"github.com/agentic-research/dirtest/internal/naming"
	"github.com/agentic-research/dirtest/internal/plan"
	"github.com/agentic-research/dirtest/internal/resolve"
	"github.com/agentic-research/dirtest/internal/writeback"
	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/samber/lo"
)

// PkgDirVar names the variable that expands to the directory of the source
// file being processed.
const PkgDirVar = "DIRTEST_PKGDIR"

// ErrStale is returned in check mode when the generated file on disk does
// not match what would be generated.
var ErrStale = errors.New("generated file is out of date")

// Generator holds the settings shared by every file it processes.
type Generator struct {
	// FS is used for reading sources and fixtures and for writing output.
	// Paths handed to it are absolute.
	FS billy.Filesystem
	// Env is the process environment; PkgDirVar is layered on top.
	Env    resolve.LookupFunc
	Logger *log.Logger
	// Subtests emits one test per declaration with a t.Run per fixture.
	Subtests bool
	// Check compares against the existing output instead of writing it.
	Check bool
}

// Result is the outcome of planning one declaration.
type Result struct {
	Declaration directive.Declaration
	Config      *api.Config
	Plan        *plan.Plan
	Err         error
}

// Diagnostic is a declaration that could not be generated. It becomes a
// failing placeholder test in the output.
type Diagnostic struct {
	Filename string
	Line     int
	Func     string
	Err      error
}

func (d Diagnostic) Error() string {
	if d.Func == "" {
		return fmt.Sprintf("%s:%d: %v", d.Filename, d.Line, d.Err)
	}
	return fmt.Sprintf("%s:%d: %s: %v", d.Filename, d.Line, d.Func, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

// LintError fails a whole file: the generated code would not compile.
type LintError struct {
	Output      string
	Diagnostics []linter.Diagnostic
}

func (e *LintError) Error() string {
	msgs := lo.Map(e.Diagnostics, func(d linter.Diagnostic, _ int) string { return d.String() })
	return fmt.Sprintf("%s: %s", e.Output, strings.Join(msgs, "; "))
}

// Report describes what Generate did for one source file.
type Report struct {
	Source string `json:"source"`
	Output string `json:"output"`
	// Tests are all planned tests, in output order.
	Tests       []api.TestCase `json:"tests"`
	Diagnostics []Diagnostic   `json:"-"`
	// Errors mirrors Diagnostics as text.
	Errors  []string `json:"errors,omitempty"`
	Written bool     `json:"written"`
	Removed bool     `json:"removed"`
}

// OutputPath is the default generated file for source: x_test.go gives
// x_dirtest_test.go.
func OutputPath(source string) string {
	stem := strings.TrimSuffix(source, ".go")
	stem = strings.TrimSuffix(stem, "_test")
	return stem + "_dirtest_test.go"
}

func (g *Generator) logger() *log.Logger {
	if g.Logger == nil {
		return log.New(io.Discard)
	}
	return g.Logger
}

func (g *Generator) lookup(source string) resolve.LookupFunc {
	env := g.Env
	if env == nil {
		env = os.LookupEnv
	}
	return resolve.Overlay(env, map[string]string{PkgDirVar: filepath.Dir(source)})
}

func (g *Generator) policy() naming.Policy {
	if g.Subtests {
		return naming.Subtest
	}
	return naming.GoTest
}

// Plan scans source and plans each of its declarations independently.
// A failing declaration is reported in its Result, not as an error.
func (g *Generator) Plan(ctx context.Context, source string) (*directive.File, []Result, error) {
	source, err := filepath.Abs(source)
	if err != nil {
		return nil, nil, err
	}
	src, err := util.ReadFile(g.FS, source)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", source, err)
	}
	file, err := directive.Scan(ctx, src, source)
	if err != nil {
		return nil, nil, err
	}

	opts := plan.Options{Lookup: g.lookup(source), Policy: g.policy()}
	results := make([]Result, 0, len(file.Declarations))
	for _, d := range file.Declarations {
		r := Result{Declaration: d, Err: d.Err}
		if r.Err == nil {
			r.Config, r.Plan, r.Err = planDeclaration(d, source, opts)
		}
		if r.Err != nil {
			g.logger().Debug("declaration failed", "file", source, "line", d.Line, "error", r.Err)
		} else {
			g.logger().Debug("planned", "func", d.Func, "dir", r.Plan.Dir, "tests", len(r.Plan.Tests))
		}
		results = append(results, r)
	}
	return file, results, nil
}

func planDeclaration(d directive.Declaration, source string, opts plan.Options) (*api.Config, *plan.Plan, error) {
	cfg, err := directive.Parse(d.Args, source, d.ArgsLine)
	if err != nil {
		return nil, nil, err
	}
	cfg.Attributes = d.Attributes
	p, err := plan.Build(cfg, d.Func, opts)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, p, nil
}

// PlanArgs plans a declaration given as directive arguments, without a
// source file. pkgDir is what PkgDirVar expands to.
func (g *Generator) PlanArgs(args, fn, pkgDir string) (*plan.Plan, error) {
	cfg, err := directive.Parse(args, "<args>", 1)
	if err != nil {
		return nil, err
	}
	opts := plan.Options{
		Lookup: g.lookup(filepath.Join(pkgDir, "x.go")),
		Policy: g.policy(),
	}
	return plan.Build(cfg, fn, opts)
}

// Generate processes one source file. output may be empty to use
// OutputPath. Declaration failures are reported in the Report and do not
// make Generate fail; lint, validation and write failures do.
func (g *Generator) Generate(ctx context.Context, source, output string) (*Report, error) {
	source, err := filepath.Abs(source)
	if err != nil {
		return nil, err
	}
	if output == "" {
		output = OutputPath(source)
	} else if output, err = filepath.Abs(output); err != nil {
		return nil, err
	}
	report := &Report{Source: source, Output: output}

	file, results, err := g.Plan(ctx, source)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return report, g.removeStale(report)
	}

	out := &emit.File{Package: file.Package, Imports: file.Imports, Subtests: g.Subtests}
	for _, r := range results {
		d := r.Declaration
		if r.Err == nil {
			var decl emit.Declaration
			decl, r.Err = g.declaration(r)
			if r.Err == nil {
				out.Declarations = append(out.Declarations, decl)
				report.Tests = append(report.Tests, r.Plan.Tests...)
				continue
			}
		}
		diag := Diagnostic{Filename: source, Line: d.Line, Func: d.Func, Err: r.Err}
		report.Diagnostics = append(report.Diagnostics, diag)
		report.Errors = append(report.Errors, diag.Error())
		out.Declarations = append(out.Declarations, emit.Declaration{Func: d.Func, Line: d.Line, Err: r.Err})
	}

	content, err := g.render(out, source, output)
	if err != nil {
		return report, err
	}

	existing, err := util.ReadFile(g.FS, output)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return report, fmt.Errorf("read %s: %w", output, err)
	}
	if err == nil && bytes.Equal(existing, content) {
		g.logger().Debug("up to date", "output", output)
		return report, nil
	}
	if g.Check {
		return report, fmt.Errorf("%s: %w", output, ErrStale)
	}

	if err := writeback.WriteAtomic(g.FS, output, content); err != nil {
		return report, err
	}
	report.Written = true
	g.logger().Info("generated", "output", output, "tests", len(report.Tests), "failed", len(report.Diagnostics))
	return report, nil
}

func (g *Generator) removeStale(report *Report) error {
	if _, err := g.FS.Stat(report.Output); err != nil {
		return nil
	}
	if g.Check {
		return fmt.Errorf("%s: %w", report.Output, ErrStale)
	}
	if err := writeback.Remove(g.FS, report.Output); err != nil {
		return err
	}
	report.Removed = true
	g.logger().Info("removed", "output", report.Output)
	return nil
}

// declaration turns a successful plan into renderable tests, reading the
// fixture contents when no loader is configured.
func (g *Generator) declaration(r Result) (emit.Declaration, error) {
	d := emit.Declaration{
		Func:         r.Declaration.Func,
		Line:         r.Declaration.Line,
		Loader:       r.Config.Loader,
		Attributes:   r.Config.Attributes,
		ReturnsError: r.Declaration.ReturnsError,
	}
	for _, tc := range r.Plan.Tests {
		t := emit.Test{Name: tc.Name, Path: tc.Path}
		if d.Loader == "" {
			content, err := util.ReadFile(g.FS, tc.Path)
			if err != nil {
				return d, fmt.Errorf("read fixture %s: %w", tc.Path, err)
			}
			t.Content = content
		}
		d.Tests = append(d.Tests, t)
	}
	return d, nil
}

// render produces the final file: rendered, syntax checked, linted
// against the rest of the package and formatted.
func (g *Generator) render(f *emit.File, source, output string) ([]byte, error) {
	content, err := emit.Render(f)
	if err != nil {
		return nil, err
	}
	if err := writeback.Validate(content, output); err != nil {
		return nil, err
	}

	declared, err := g.packageDecls(filepath.Dir(source), f.Package, output)
	if err != nil {
		return nil, err
	}
	diags, err := linter.Lint(content, declared)
	if err != nil {
		return nil, err
	}
	if len(diags) > 0 {
		return nil, &LintError{Output: output, Diagnostics: diags}
	}

	return writeback.Format(content, output)
}

// packageDecls collects the top-level names of every other Go file of pkg
// in dir.
func (g *Generator) packageDecls(dir, pkg, output string) ([]string, error) {
	entries, err := g.FS.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() || filepath.Ext(e.Name()) != ".go" || path == output {
			continue
		}
		src, err := util.ReadFile(g.FS, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if p, err := linter.Package(src); err != nil || p != pkg {
			continue
		}
		declared, err := linter.Declared(src)
		if err != nil {
			return nil, err
		}
		names = append(names, declared...)
	}
	return names, nil
}
