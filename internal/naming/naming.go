// Package naming derives test names from fixture paths.
//
// A name is built from the fixture path relative to the base directory:
// every directory segment and the file stem are sanitized and joined with
// underscores, an optional postfix is appended, and a Policy combines the
// result with the name of the shared test body.
package naming

import (
	"fmt"
	"go/token"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Policy decides how a sanitized path becomes a final name.
type Policy struct {
	// Combine joins the test body name with the sanitized path.
	Combine func(base, path string) string
	// Reserved reports words that cannot be used as is.
	Reserved func(name string) bool
	// Escape rewrites a reserved word into a usable one.
	Escape func(name string) string
	// Valid reports whether a final name is acceptable. Nil accepts all.
	Valid func(name string) bool
}

// GoTest names top-level test functions: Test + the body name without a
// leading "test", capitalized, then the path. testParse and sub/bar.txt
// give TestParse_sub_bar.
var GoTest = Policy{
	Combine:  combineGoTest,
	Reserved: token.IsKeyword,
	Escape:   appendUnderscore,
	Valid:    token.IsIdentifier,
}

// Subtest uses the sanitized path alone. It names t.Run subtests.
var Subtest = Policy{
	Combine:  func(_, path string) string { return path },
	Reserved: token.IsKeyword,
	Escape:   appendUnderscore,
}

// NameError reports a synthesized name rejected by the policy, which can
// only happen through the verbatim postfix.
type NameError struct {
	Name string
	Path string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("test name `%s` for %s is not a valid test name", e.Name, e.Path)
}

// Name synthesizes the test name for file, located under dir.
func (p Policy) Name(dir, file, postfix, base string) (string, error) {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return "", fmt.Errorf("fixture %s is not under %s: %w", file, dir, err)
	}
	if rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", fmt.Errorf("fixture %s is not under %s", file, dir)
	}

	name := p.Combine(base, Sanitize(rel, postfix))
	if p.Reserved != nil && p.Reserved(name) {
		name = p.Escape(name)
	}
	if p.Valid != nil && !p.Valid(name) {
		return "", &NameError{Name: name, Path: file}
	}
	return name, nil
}

// Sanitize maps a relative path to the path part of a test name.
// Directory segments are kept whole, the last segment loses its
// extension, and the postfix is appended verbatim.
func Sanitize(rel, postfix string) string {
	segments := strings.Split(filepath.ToSlash(rel), "/")

	var b strings.Builder
	for _, seg := range segments[:len(segments)-1] {
		b.WriteString(sanitizeSegment(seg))
		b.WriteByte('_')
	}
	b.WriteString(sanitizeSegment(fileStem(segments[len(segments)-1])))

	if postfix != "" {
		b.WriteByte('_')
		b.WriteString(postfix)
	}
	return b.String()
}

// fileStem drops the last extension. A leading dot does not start an
// extension, so ".env" keeps its name.
func fileStem(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name
	}
	return name[:i]
}

// sanitizeSegment replaces ASCII punctuation with underscores. Other runes
// that cannot appear in an identifier (spaces, symbols) are replaced as
// well.
func sanitizeSegment(seg string) string {
	return strings.Map(func(r rune) rune {
		if isASCIIPunct(r) {
			return '_'
		}
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, seg)
}

func isASCIIPunct(r rune) bool {
	return r >= '!' && r <= '/' ||
		r >= ':' && r <= '@' ||
		r >= '[' && r <= '`' ||
		r >= '{' && r <= '~'
}

func combineGoTest(base, path string) string {
	return TestFunc(base) + "_" + path
}

// TestFunc is the name of the Go test function for the body base, without
// any path: testParse gives TestParse. Subtest mode uses it for the single
// function of a declaration.
func TestFunc(base string) string {
	trimmed := base
	if len(base) >= 4 && strings.EqualFold(base[:4], "test") {
		// "tester" is a word of its own, "testParse" is not.
		if r, _ := utf8.DecodeRuneInString(base[4:]); !unicode.IsLower(r) {
			trimmed = base[4:]
		}
	}
	return "Test" + capitalize(trimmed)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func appendUnderscore(name string) string {
	return name + "_"
}
