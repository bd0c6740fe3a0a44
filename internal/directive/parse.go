package directive

import (
	"fmt"

	"github.com/agentic-research/dirtest/api"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Parse turns the arguments of a declaration's `//dirtest:gen` lines into a
// Config. src is a sequence of `key: value` entries separated by commas or
// newlines; line 1 of src is line firstLine of filename. Attributes are not
// part of src and are left empty.
//
// Arguments are read as the body of an HCL object constructor, so
// positions, quoting and escapes follow HCL's native syntax.
func Parse(src, filename string, firstLine int) (*api.Config, error) {
	// The opening brace takes a line of its own so that src keeps its
	// original line and column numbers.
	wrapped := []byte("{\n" + src + "\n}")
	expr, diags := hclsyntax.ParseExpression(wrapped, filename, hcl.Pos{Line: firstLine - 1, Column: 1})
	if diags.HasErrors() {
		return nil, diagnosticError(diags, filename, firstLine)
	}

	obj, ok := expr.(*hclsyntax.ObjectConsExpr)
	if !ok {
		return nil, &ArgumentError{
			Kind:    Malformed,
			Message: "expected comma separated `key: value` arguments",
			Subject: expr.Range(),
		}
	}

	cfg := &api.Config{Glob: api.DefaultGlob}
	seen := make(map[string]bool, len(obj.Items))

	for _, item := range obj.Items {
		key := hcl.ExprAsKeyword(item.KeyExpr)
		if key == "" {
			return nil, &ArgumentError{
				Kind:    Malformed,
				Message: "argument names must be bare identifiers",
				Subject: item.KeyExpr.Range(),
			}
		}
		if seen[key] {
			return nil, &ArgumentError{
				Kind:    DuplicateKey,
				Key:     key,
				Message: fmt.Sprintf("duplicated arg `%s`", key),
				Subject: item.KeyExpr.Range(),
			}
		}

		var err error
		switch key {
		case "dir":
			cfg.Dir, err = stringLiteral(key, item.ValueExpr)
		case "glob":
			cfg.Glob, err = stringLiteral(key, item.ValueExpr)
		case "postfix":
			cfg.Postfix, err = stringLiteral(key, item.ValueExpr)
		case "loader":
			cfg.Loader, err = functionRef(key, item.ValueExpr)
		default:
			return nil, &ArgumentError{
				Kind:    UnknownKey,
				Key:     key,
				Message: fmt.Sprintf("unknown arg `%s`", key),
				Subject: item.KeyExpr.Range(),
			}
		}
		if err != nil {
			return nil, err
		}
		seen[key] = true
	}

	if !seen["dir"] {
		return nil, &ArgumentError{
			Kind:    MissingKey,
			Key:     "dir",
			Message: "`dir` is required",
			Subject: hcl.Range{
				Filename: filename,
				Start:    hcl.Pos{Line: firstLine, Column: 1},
				End:      hcl.Pos{Line: firstLine, Column: 1},
			},
		}
	}
	return cfg, nil
}

func stringLiteral(key string, expr hcl.Expression) (string, error) {
	v, diags := expr.Value(nil)
	if diags.HasErrors() || v.IsNull() || !v.IsKnown() || !v.Type().Equals(cty.String) {
		return "", &ArgumentError{
			Kind:    Malformed,
			Key:     key,
			Message: fmt.Sprintf("`%s` must be a string literal", key),
			Subject: expr.Range(),
		}
	}
	return v.AsString(), nil
}

// functionRef accepts `name` or `pkg.Name` and returns it rendered as Go.
func functionRef(key string, expr hcl.Expression) (string, error) {
	bad := &ArgumentError{
		Kind:    Malformed,
		Key:     key,
		Message: fmt.Sprintf("`%s` must be a function name or a package-qualified function", key),
		Subject: expr.Range(),
	}

	traversal, diags := hcl.AbsTraversalForExpr(expr)
	if diags.HasErrors() || len(traversal) > 2 {
		return "", bad
	}
	for _, step := range traversal[1:] {
		if _, ok := step.(hcl.TraverseAttr); !ok {
			return "", bad
		}
	}
	return string(hclwrite.TokensForTraversal(traversal).Bytes()), nil
}

func diagnosticError(diags hcl.Diagnostics, filename string, firstLine int) error {
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		subject := hcl.Range{Filename: filename, Start: hcl.Pos{Line: firstLine, Column: 1}}
		if d.Subject != nil {
			subject = *d.Subject
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += ": " + d.Detail
		}
		return &ArgumentError{Kind: Malformed, Message: msg, Subject: subject}
	}
	return diags
}
