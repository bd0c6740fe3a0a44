package api

import (
	"fmt"
	"os"
	"testing"

	"github.com/ohler55/ojg/oj"
)

// Fixture holds the content of one fixture file and its absolute path.
// The content type is whatever the configured loader produces; with the
// default loader it is string.
type Fixture[T any] struct {
	content T
	path    string
}

// NewFixture is called by generated code.
func NewFixture[T any](content T, path string) Fixture[T] {
	return Fixture[T]{content: content, path: path}
}

// Content returns the loaded content of the fixture.
func (f Fixture[T]) Content() T {
	return f.content
}

// Path returns the absolute path of the fixture file.
func (f Fixture[T]) Path() string {
	return f.path
}

// Result carries a loaded value or the error that prevented loading.
// Loaders returning Result defer failure handling to the test body.
type Result[T any] struct {
	Value T
	Err   error
}

// Unwrap returns the value, failing the test when loading failed.
func (r Result[T]) Unwrap(t testing.TB) T {
	t.Helper()
	if r.Err != nil {
		t.Fatalf("load fixture: %v", r.Err)
	}
	return r.Value
}

// ReadFile is a loader reading the raw bytes of path at test time.
func ReadFile(path string) Result[[]byte] {
	data, err := os.ReadFile(path)
	return Result[[]byte]{Value: data, Err: err}
}

// ReadString is a loader reading the text of path at test time.
func ReadString(path string) Result[string] {
	data, err := os.ReadFile(path)
	return Result[string]{Value: string(data), Err: err}
}

// ReadJSON is a loader decoding the JSON document at path at test time into
// generic values: objects become map[string]any, arrays []any, integers
// int64 and other numbers float64.
func ReadJSON(path string) Result[any] {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result[any]{Err: err}
	}
	v, err := oj.Parse(data)
	if err != nil {
		return Result[any]{Err: fmt.Errorf("parse %s: %w", path, err)}
	}
	return Result[any]{Value: v}
}
