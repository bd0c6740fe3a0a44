package directive

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

const (
	directivePrefix = "//dirtest:"
	genVerb         = "gen"
	attrVerb        = "attr"
)

// Import is one import spec of a scanned file.
type Import struct {
	// Name is the identifier the package is referred to by in the file.
	Name string
	// Alias is the explicit import name, empty when none was written.
	Alias string
	Path  string
}

// Declaration is one function annotated with `//dirtest:gen`.
type Declaration struct {
	// Func is the name of the shared test body. Empty for a directive
	// block that is not attached to any function.
	Func string
	// Line is the 1-based line of the first directive line.
	Line int
	// Args holds the arguments of every `//dirtest:gen` line, one source
	// line per line with columns preserved, ready for Parse.
	Args string
	// ArgsLine is the source line that line 1 of Args corresponds to.
	ArgsLine int
	// Attributes are the forwarded `//dirtest:attr` statements in order.
	Attributes []string
	// ReturnsError is set when the body returns an error.
	ReturnsError bool
	// Err is set when the directive block or the function is unusable.
	// Other declarations of the same file are unaffected.
	Err error
}

// File is the result of scanning one Go source file.
type File struct {
	Filename     string
	Package      string
	Imports      []Import
	Funcs        []string
	Declarations []Declaration
}

// Scan parses Go source with tree-sitter and collects the package clause,
// imports, top-level function names and dirtest declarations.
func Scan(ctx context.Context, src []byte, filename string) (*File, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned nil root for %s", filename)
	}

	s := &scanner{src: src, file: &File{Filename: filename}}

	var block []*sitter.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() == "comment" {
			if len(block) > 0 && n.StartPoint().Row != block[len(block)-1].EndPoint().Row+1 {
				s.detached(block)
				block = nil
			}
			block = append(block, n)
			continue
		}

		attached := len(block) > 0 && n.StartPoint().Row == block[len(block)-1].EndPoint().Row+1
		switch n.Type() {
		case "package_clause":
			if id := n.NamedChild(0); id != nil {
				s.file.Package = id.Content(src)
			}
		case "import_declaration":
			s.imports(n)
		case "function_declaration":
			name := n.ChildByFieldName("name")
			if name != nil {
				s.file.Funcs = append(s.file.Funcs, name.Content(src))
			}
			if attached {
				s.declare(block, n)
				block = nil
			}
		}
		s.detached(block)
		block = nil
	}
	s.detached(block)

	if s.file.Package == "" {
		return nil, fmt.Errorf("%s: missing package clause", filename)
	}
	return s.file, nil
}

type scanner struct {
	src  []byte
	file *File
}

type directiveLine struct {
	verb string
	args string
	line int // 1-based
	col  int // 0-based column of the comment start
}

// directives extracts the `//dirtest:` lines of a comment block.
func (s *scanner) directives(block []*sitter.Node) []directiveLine {
	var out []directiveLine
	for _, c := range block {
		text := c.Content(s.src)
		if !strings.HasPrefix(text, directivePrefix) {
			continue
		}
		rest := text[len(directivePrefix):]
		verb, args, _ := strings.Cut(rest, " ")
		out = append(out, directiveLine{
			verb: verb,
			args: args,
			line: int(c.StartPoint().Row) + 1,
			col:  int(c.StartPoint().Column),
		})
	}
	return out
}

// detached records an error for dirtest lines that precede something other
// than a function declaration.
func (s *scanner) detached(block []*sitter.Node) {
	lines := s.directives(block)
	if len(lines) == 0 {
		return
	}
	s.file.Declarations = append(s.file.Declarations, Declaration{
		Line: lines[0].line,
		Err: &ArgumentError{
			Kind:    Malformed,
			Message: "dirtest directive is not attached to a function declaration",
			Subject: s.lineRange(lines[0]),
		},
	})
}

func (s *scanner) declare(block []*sitter.Node, fn *sitter.Node) {
	lines := s.directives(block)
	if len(lines) == 0 {
		return
	}

	decl := Declaration{Line: lines[0].line}
	if name := fn.ChildByFieldName("name"); name != nil {
		decl.Func = name.Content(s.src)
	}

	var args []string
	for _, l := range lines {
		switch l.verb {
		case genVerb:
			if decl.ArgsLine == 0 {
				decl.ArgsLine = l.line
			}
			// Lines between two gen lines stay blank so that Parse
			// reports positions on the right source line.
			for decl.ArgsLine+len(args) < l.line {
				args = append(args, "")
			}
			pad := strings.Repeat(" ", l.col+len(directivePrefix)+len(genVerb)+1)
			args = append(args, pad+l.args)
		case attrVerb:
			if decl.ArgsLine == 0 {
				decl.Err = &ArgumentError{
					Kind:    Malformed,
					Message: "`//dirtest:attr` must follow `//dirtest:gen`",
					Subject: s.lineRange(l),
				}
			}
			attr := strings.TrimSpace(l.args)
			if attr == "" && decl.Err == nil {
				decl.Err = &ArgumentError{
					Kind:    Malformed,
					Message: "`//dirtest:attr` needs a statement",
					Subject: s.lineRange(l),
				}
			}
			decl.Attributes = append(decl.Attributes, attr)
		default:
			if decl.Err == nil {
				decl.Err = &ArgumentError{
					Kind:    Malformed,
					Message: fmt.Sprintf("unknown directive `//dirtest:%s`", l.verb),
					Subject: s.lineRange(l),
				}
			}
		}
	}
	decl.Args = strings.Join(args, "\n")

	if decl.Err == nil {
		decl.ReturnsError, decl.Err = s.signature(fn, decl.Func)
	}
	s.file.Declarations = append(s.file.Declarations, decl)
}

// signature checks that fn can be called as fn(t, fixture).
func (s *scanner) signature(fn *sitter.Node, name string) (returnsError bool, err error) {
	fail := func(msg string) (bool, error) {
		return false, &SignatureError{
			Filename: s.file.Filename,
			Line:     int(fn.StartPoint().Row) + 1,
			Func:     name,
			Message:  msg,
		}
	}

	if fn.ChildByFieldName("type_parameters") != nil {
		return fail("generic test bodies are not supported")
	}
	if params := fn.ChildByFieldName("parameters"); params == nil || countParams(params) != 2 {
		return fail("test body must take exactly two parameters (t, fixture)")
	}

	result := fn.ChildByFieldName("result")
	if result == nil {
		return false, nil
	}
	switch strings.Join(strings.Fields(result.Content(s.src)), "") {
	case "error", "(error)":
		return true, nil
	default:
		return fail("test body may only return error")
	}
}

func countParams(list *sitter.Node) int {
	count := 0
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		switch p.Type() {
		case "parameter_declaration":
			names := 0
			for j := 0; j < int(p.ChildCount()); j++ {
				if p.FieldNameForChild(j) == "name" {
					names++
				}
			}
			count += max(names, 1)
		case "variadic_parameter_declaration":
			count++
		}
	}
	return count
}

func (s *scanner) imports(decl *sitter.Node) {
	var specs []*sitter.Node
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		c := decl.NamedChild(i)
		switch c.Type() {
		case "import_spec":
			specs = append(specs, c)
		case "import_spec_list":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if spec := c.NamedChild(j); spec.Type() == "import_spec" {
					specs = append(specs, spec)
				}
			}
		}
	}

	for _, spec := range specs {
		pathNode := spec.ChildByFieldName("path")
		if pathNode == nil {
			continue
		}
		importPath, err := strconv.Unquote(pathNode.Content(s.src))
		if err != nil {
			continue
		}
		imp := Import{Path: importPath, Name: DefaultImportName(importPath)}
		if alias := spec.ChildByFieldName("name"); alias != nil {
			imp.Alias = alias.Content(s.src)
			imp.Name = imp.Alias
		}
		s.file.Imports = append(s.file.Imports, imp)
	}
}

func (s *scanner) lineRange(l directiveLine) hcl.Range {
	start := hcl.Pos{Line: l.line, Column: l.col + 1}
	return hcl.Range{Filename: s.file.Filename, Start: start, End: start}
}

// DefaultImportName guesses the package name of an import path the way
// most Go code names packages: the last element, without a major version
// suffix or a go- prefix.
func DefaultImportName(importPath string) string {
	name := path.Base(importPath)
	if isMajorVersion(name) {
		name = path.Base(path.Dir(importPath))
	}
	if i := strings.Index(name, ".v"); i > 0 && isMajorVersion(name[i+1:]) {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "go-")
	name = strings.TrimSuffix(name, "-go")
	return strings.ReplaceAll(name, "-", "")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}
