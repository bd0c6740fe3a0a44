package writeback

import (
	"fmt"

	"mvdan.cc/gofumpt/format"
)

// Format formats generated Go source in-memory using gofumpt.
// Unlike hand-written code, generated code that fails to format is a bug in
// the generator, so the error is returned instead of swallowed.
func Format(content []byte, filePath string) ([]byte, error) {
	formatted, err := format.Source(content, format.Options{})
	if err != nil {
		return nil, fmt.Errorf("gofumpt %s: %w", filePath, err)
	}
	return formatted, nil
}
