package api

// DefaultGlob is the pattern used when a directive does not set one.
const DefaultGlob = "*"

// Config is the parsed form of a `//dirtest:gen` directive.
// It describes which fixture files a test body is expanded over.
type Config struct {
	// Dir is the raw base directory. It may embed `$NAME` path segments.
	Dir string `json:"dir"`
	// Glob is matched relative to the resolved Dir. Supports `**`.
	Glob string `json:"glob"`
	// Postfix is appended to every generated name. Empty means none.
	Postfix string `json:"postfix,omitempty"`
	// Loader is a Go function reference (`name` or `pkg.Name`) invoked at
	// test time with the absolute fixture path. Empty selects the default
	// loader, which embeds the file text at generation time.
	Loader string `json:"loader,omitempty"`
	// Attributes are Go statements emitted verbatim, in order, at the top
	// of every generated test.
	Attributes []string `json:"attributes,omitempty"`
}

// TestCase describes one generated test.
type TestCase struct {
	// Name is the generated identifier (or subtest name).
	Name string `json:"name"`
	// Path is the absolute path of the fixture file.
	Path string `json:"path"`
	// RelPath is Path relative to the resolved directory, slash separated.
	RelPath string `json:"rel_path"`
}
