package tests

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentic-research/dirtest/internal/generate"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundtripSource imports the fixture package under an alias next to an
// unrelated package that is also named api. IMPORT_DIR is replaced with
// the import path of the package directory.
const roundtripSource = `package roundtrip

import (
	"errors"
	"path/filepath"
	"testing"

	dt "github.com/agentic-research/dirtest/api"
	"IMPORT_DIR/api"
)

var _ = api.Upper

//dirtest:gen dir: "$DIRTEST_PKGDIR/testdata"
func testEmbedded(t *testing.T, fixture dt.Fixture[string]) {
	if !filepath.IsAbs(fixture.Path()) || filepath.Base(fixture.Path()) != "a.txt" {
		t.Fatalf("unexpected path %q", fixture.Path())
	}
	if got := fixture.Content(); got != "original\n" {
		t.Fatalf("content = %q", got)
	}
}

//dirtest:gen dir: "$DIRTEST_PKGDIR/testdata", loader: dt.ReadString
func testLoaded(t *testing.T, fixture dt.Fixture[dt.Result[string]]) {
	if got := fixture.Content().Unwrap(t); got != "changed\n" {
		t.Fatalf("content = %q", got)
	}
}

//dirtest:gen dir: "$DIRTEST_PKGDIR/testdata", loader: api.Upper
func testOther(t *testing.T, fixture dt.Fixture[string]) {
	if got := fixture.Content(); got != "CHANGED\n" {
		t.Fatalf("content = %q", got)
	}
}

//dirtest:gen dir: "$DIRTEST_PKGDIR/testdata"
func testFailing(t *testing.T, fixture dt.Fixture[string]) error {
	return errors.New("boom from " + filepath.Base(fixture.Path()))
}
`

const otherAPISource = `package api

import (
	"os"
	"strings"
)

func Upper(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	return strings.ToUpper(string(b))
}
`

// setupRoundtrip writes a throwaway package inside this module so the go
// command can build it against the working tree.
func setupRoundtrip(t *testing.T) (pkgDir string) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	pkgDir, err = os.MkdirTemp(wd, "roundtrip")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(pkgDir) })

	importDir := "github.com/agentic-research/dirtest/tests/" + filepath.Base(pkgDir)
	files := map[string]string{
		"roundtrip_test.go": strings.ReplaceAll(roundtripSource, "IMPORT_DIR", importDir),
		"api/api.go":        otherAPISource,
		"testdata/a.txt":    "original\n",
	}
	for name, content := range files {
		p := filepath.Join(pkgDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return pkgDir
}

func goTest(t *testing.T, dir, run string) (string, error) {
	t.Helper()
	cmd := exec.Command("go", "test", "-count=1", "-v", "-run", run, ".")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestIntegration_GeneratedCodeCompilesAndRuns(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the go command")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}

	pkgDir := setupRoundtrip(t)
	g := &generate.Generator{FS: osfs.New("/"), Env: func(string) (string, bool) { return "", false }}
	report, err := g.Generate(context.Background(), filepath.Join(pkgDir, "roundtrip_test.go"), "")
	require.NoError(t, err)
	require.Empty(t, report.Diagnostics)
	require.Len(t, report.Tests, 4)

	// Embedded content is fixed at generation time, loaders read at test time.
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "testdata", "a.txt"), []byte("changed\n"), 0o644))

	out, err := goTest(t, pkgDir, "^Test(Embedded|Loaded|Other)_a$")
	require.NoError(t, err, out)
	assert.Contains(t, out, "--- PASS: TestEmbedded_a")
	assert.Contains(t, out, "--- PASS: TestLoaded_a")
	assert.Contains(t, out, "--- PASS: TestOther_a")

	out, err = goTest(t, pkgDir, "^TestFailing_a$")
	assert.Error(t, err)
	assert.Contains(t, out, "--- FAIL: TestFailing_a")
	assert.Contains(t, out, "boom from a.txt")
}
