package directive

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// ArgumentKind classifies an ArgumentError.
type ArgumentKind int

const (
	// UnknownKey is a key outside dir, glob, postfix, loader.
	UnknownKey ArgumentKind = iota
	// DuplicateKey is a key given more than once, whatever the values.
	DuplicateKey
	// MissingKey is a required key (dir) that never appeared.
	MissingKey
	// Malformed covers syntax errors, wrongly typed values and misplaced
	// directive lines.
	Malformed
)

func (k ArgumentKind) String() string {
	switch k {
	case UnknownKey:
		return "unknown key"
	case DuplicateKey:
		return "duplicate key"
	case MissingKey:
		return "missing key"
	default:
		return "malformed"
	}
}

// ArgumentError reports a bad `//dirtest:` directive. Subject points at the
// offending token in the source file.
type ArgumentError struct {
	Kind    ArgumentKind
	Key     string
	Message string
	Subject hcl.Range
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Subject.Filename, e.Subject.Start.Line, e.Subject.Start.Column, e.Message)
}

// SignatureError reports an annotated function whose shape cannot be
// called from a generated test.
type SignatureError struct {
	Filename string
	Line     int
	Func     string
	Message  string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("%s:%d: func %s: %s", e.Filename, e.Line, e.Func, e.Message)
}
