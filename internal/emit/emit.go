// Package emit renders planned dirtest declarations into a Go test file.
package emit

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/template"

	"github.com/agentic-research/dirtest/internal/directive"
	"github.com/agentic-research/dirtest/internal/linter"
	"github.com/agentic-research/dirtest/internal/naming"
)

// APIImportPath is the import path of the fixture package.
const APIImportPath = "github.com/agentic-research/dirtest/api"

// fixtureAlias names the fixture package in generated code when the source
// file does not import it.
const fixtureAlias = "dirtestapi"

// Header is the first line of every generated file.
const Header = "// Code generated by dirtest. DO NOT EDIT."

// File is everything needed to render one generated file.
type File struct {
	Package string
	// Imports of the source file. Only those referenced by loaders or
	// attributes end up in the output.
	Imports      []directive.Import
	Declarations []Declaration
	// Subtests renders one test function per declaration with a t.Run
	// per fixture.
	Subtests bool
}

// Declaration is one planned declaration, or a failed one when Err is set.
type Declaration struct {
	// Func is the shared test body. Empty for a detached directive block.
	Func string
	// Line is the source line of the directive, used to name the
	// placeholder of a detached block.
	Line         int
	Loader       string
	Attributes   []string
	ReturnsError bool
	Tests        []Test
	Err          error
}

// Test is one fixture of a declaration.
type Test struct {
	// Name is the test function name, or the t.Run name in subtest mode.
	Name string
	Path string
	// Content is embedded in the generated file when no loader is set.
	Content []byte
}

type testView struct {
	Name string
	Stmt []string
}

type declView struct {
	Name  string
	Stmt  []string
	Tests []testView
}

type fileView struct {
	Header   string
	Package  string
	Imports  []string
	Subtests bool
	Decls    []declView
}

var fileTmpl = template.Must(template.New("file").Funcs(template.FuncMap{
	"quote": strconv.Quote,
}).Parse(`{{.Header}}

package {{.Package}}
{{if .Imports}}
import (
{{- range .Imports}}
	{{.}}
{{- end}}
)
{{end}}
{{- range .Decls}}
{{- if .Tests}}
{{- if $.Subtests}}
func {{.Name}}(t *testing.T) {
{{- range .Tests}}
	t.Run({{quote .Name}}, func(t *testing.T) {
{{- range .Stmt}}
		{{.}}
{{- end}}
	})
{{- end}}
}
{{else}}
{{- range .Tests}}
func {{.Name}}(t *testing.T) {
{{- range .Stmt}}
	{{.}}
{{- end}}
}
{{end}}
{{- end}}
{{- else}}
func {{.Name}}(t *testing.T) {
{{- range .Stmt}}
	{{.}}
{{- end}}
}
{{end}}
{{- end}}`))

// Render produces the source of the generated file. The output is valid
// Go but not formatted.
func Render(f *File) ([]byte, error) {
	view := fileView{
		Header:   Header,
		Package:  f.Package,
		Subtests: f.Subtests,
		Decls:    make([]declView, 0, len(f.Declarations)),
	}
	qual := fixtureQualifier(f.Imports)
	for _, d := range f.Declarations {
		if d.Err == nil && len(d.Tests) == 0 {
			continue
		}
		view.Decls = append(view.Decls, declare(d, qual))
	}

	body, err := execute(view)
	if err != nil {
		return nil, err
	}
	refs, err := linter.PackageRefs(body)
	if err != nil {
		return nil, fmt.Errorf("collect package references: %w", err)
	}
	view.Imports = imports(refs, f.Imports, qual)
	return execute(view)
}

func execute(view fileView) ([]byte, error) {
	var buf bytes.Buffer
	if err := fileTmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render %s: %w", view.Package, err)
	}
	return buf.Bytes(), nil
}

func declare(d Declaration, qual string) declView {
	if d.Err != nil {
		name := "TestDirtestError_L" + strconv.Itoa(d.Line)
		if d.Func != "" {
			name = naming.TestFunc(d.Func) + "_dirtestError"
		}
		return declView{
			Name: name,
			Stmt: []string{"t.Fatal(" + strconv.Quote("dirtest: "+d.Err.Error()) + ")"},
		}
	}

	v := declView{Name: naming.TestFunc(d.Func)}
	for _, tc := range d.Tests {
		stmts := slices.Clone(d.Attributes)
		stmts = append(stmts, call(d, tc, qual)...)
		v.Tests = append(v.Tests, testView{Name: tc.Name, Stmt: stmts})
	}
	return v
}

// call is the invocation of the test body for one fixture. qual is the
// name the fixture package is imported under.
func call(d Declaration, tc Test, qual string) []string {
	content := strconv.Quote(string(tc.Content))
	if d.Loader != "" {
		content = d.Loader + "(" + strconv.Quote(tc.Path) + ")"
	}
	expr := fmt.Sprintf("%s(t, %s.NewFixture(%s, %s))", d.Func, qual, content, strconv.Quote(tc.Path))
	if !d.ReturnsError {
		return []string{expr}
	}
	return []string{
		"if err := " + expr + "; err != nil {",
		"\tt.Fatal(err)",
		"}",
	}
}

// fixtureQualifier is the name the source file imports the fixture package
// under, or fixtureAlias when it does not import it. Matching on the path
// keeps an unrelated package that happens to be named api out of the way.
func fixtureQualifier(source []directive.Import) string {
	for _, imp := range source {
		if imp.Path == APIImportPath && imp.Name != "_" && imp.Name != "." {
			return imp.Name
		}
	}
	return fixtureAlias
}

// imports selects the import specs for the package names the rendered
// body refers to.
func imports(refs []string, source []directive.Import, qual string) []string {
	if qual == fixtureAlias {
		source = append(slices.Clone(source), directive.Import{Name: fixtureAlias, Alias: fixtureAlias, Path: APIImportPath})
	}

	var std, other []string
	for _, ref := range refs {
		if ref == "testing" {
			std = append(std, strconv.Quote("testing"))
			continue
		}
		i := slices.IndexFunc(source, func(imp directive.Import) bool { return imp.Name == ref })
		if i < 0 {
			continue
		}
		imp := source[i]
		spec := strconv.Quote(imp.Path)
		if imp.Alias != "" {
			spec = imp.Alias + " " + spec
		}
		if strings.Contains(imp.Path, ".") {
			other = append(other, spec)
		} else {
			std = append(std, spec)
		}
	}
	if len(std) > 0 && len(other) > 0 {
		std = append(std, "")
	}
	return append(std, other...)
}
