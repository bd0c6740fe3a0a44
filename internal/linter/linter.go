// Package linter runs tree-sitter queries over generated test files.
package linter

import (
	"context"
	"fmt"
	"slices"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

type Diagnostic struct {
	Message string
	Line    uint32
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s", d.Line+1, d.Message)
}

const (
	selectorQuery = `
		(selector_expression operand: (identifier) @pkg)
		(qualified_type package: (package_identifier) @pkg)
	`
	declQuery = `
		(source_file (function_declaration name: (identifier) @name))
		(source_file (var_declaration (var_spec name: (identifier) @name)))
		(source_file (const_declaration (const_spec name: (identifier) @name)))
		(source_file (type_declaration (type_spec name: (type_identifier) @name)))
	`
)

// PackageRefs returns the distinct identifiers used as the operand of a
// selector or as the package of a qualified type, sorted. For generated
// code these are exactly the package names the file needs imported, plus
// local variables such as `t`.
func PackageRefs(content []byte) ([]string, error) {
	var refs []string
	err := each(content, selectorQuery, func(n *sitter.Node) {
		refs = append(refs, n.Content(content))
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(refs)
	return slices.Compact(refs), nil
}

// Declared returns the top-level names a Go file declares, in source order.
// Methods are not included.
func Declared(content []byte) ([]string, error) {
	var names []string
	err := each(content, declQuery, func(n *sitter.Node) {
		names = append(names, n.Content(content))
	})
	return names, err
}

// Package returns the package name of a Go file, empty when there is no
// package clause.
func Package(content []byte) (string, error) {
	var name string
	err := each(content, `(package_clause (package_identifier) @name)`, func(n *sitter.Node) {
		if name == "" {
			name = n.Content(content)
		}
	})
	return name, err
}

// Lint checks generated content for top-level names declared twice, either
// within the file or against existing, the names the rest of the package
// already declares.
func Lint(content []byte, existing []string) ([]Diagnostic, error) {
	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		if name != "_" && name != "init" {
			taken[name] = true
		}
	}
	seen := make(map[string]bool)

	var diags []Diagnostic
	err := each(content, declQuery, func(n *sitter.Node) {
		name := n.Content(content)
		switch {
		case name == "_" || name == "init":
		case seen[name]:
			diags = append(diags, Diagnostic{
				Message: fmt.Sprintf("%s redeclared in this file", name),
				Line:    n.StartPoint().Row,
			})
		case taken[name]:
			diags = append(diags, Diagnostic{
				Message: fmt.Sprintf("%s already declared in package", name),
				Line:    n.StartPoint().Row,
			})
		}
		seen[name] = true
	})
	if err != nil {
		return nil, err
	}
	return diags, nil
}

func each(content []byte, query string, fn func(*sitter.Node)) error {
	lang := golang.GetLanguage()
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return err
	}

	q, err := sitter.NewQuery([]byte(query), lang)
	if err != nil {
		return fmt.Errorf("compile query: %w", err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			fn(c.Node)
		}
	}
	return nil
}
