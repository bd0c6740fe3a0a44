package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentic-research/dirtest/api"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const parserSource = `package parser

import (
	"testing"

	"github.com/agentic-research/dirtest/api"
)

//dirtest:gen dir: "$DIRTEST_PKGDIR/testdata", glob: "**/*.txt"
func testParse(t *testing.T, fixture api.Fixture[string]) {
	_ = fixture.Content()
}
`

func setupPackage(t *testing.T, source string) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"parser_test.go":       source,
		"testdata/foo.txt":     "foo\n",
		"testdata/sub/bar.txt": "bar\n",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

// run executes the root command with fresh flag values.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	outputPath, subtests, checkOnly, listJSON, verbose = "", false, false, false, false
	t.Setenv("GOFILE", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerateCommand(t *testing.T) {
	root := setupPackage(t, parserSource)

	_, err := run(t, "generate", filepath.Join(root, "parser_test.go"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "parser_dirtest_test.go"))

	_, err = run(t, "generate", "--check", filepath.Join(root, "parser_test.go"))
	assert.NoError(t, err)
}

func TestGenerateCommand_GOFILE(t *testing.T) {
	root := setupPackage(t, parserSource)
	t.Chdir(root)

	outputPath, subtests, checkOnly = "", false, false
	t.Setenv("GOFILE", "parser_test.go")
	rootCmd.SetArgs([]string{"generate"})
	require.NoError(t, rootCmd.Execute())
	assert.FileExists(t, filepath.Join(root, "parser_dirtest_test.go"))
}

func TestGenerateCommand_WorkingDirectory(t *testing.T) {
	root := setupPackage(t, parserSource)
	t.Chdir(root)

	_, err := run(t, "generate")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "parser_dirtest_test.go"))

	// The generated file is not picked up as a source on the next run.
	_, err = run(t, "generate", "--check")
	assert.NoError(t, err)
}

func TestGenerateCommand_CheckStale(t *testing.T) {
	root := setupPackage(t, parserSource)

	_, err := run(t, "generate", "--check", filepath.Join(root, "parser_test.go"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(root, "parser_dirtest_test.go"))
}

func TestGenerateCommand_OutputNeedsOneFile(t *testing.T) {
	root := setupPackage(t, parserSource)
	src := filepath.Join(root, "parser_test.go")

	_, err := run(t, "generate", "-o", filepath.Join(root, "out_test.go"), src, src)
	assert.ErrorContains(t, err, "--output")
}

func TestGenerateCommand_FailedDeclaration(t *testing.T) {
	root := setupPackage(t, parserSource+`
//dirtest:gen dir: "$DIRTEST_PKGDIR/missing"
func testMissing(t *testing.T, fixture api.Fixture[string]) {}
`)

	_, err := run(t, "generate", filepath.Join(root, "parser_test.go"))
	assert.ErrorContains(t, err, "1 failure(s)")
	// The rest of the file is still generated.
	assert.FileExists(t, filepath.Join(root, "parser_dirtest_test.go"))
}

func TestListCommand(t *testing.T) {
	root := setupPackage(t, parserSource)

	out, err := run(t, "list", filepath.Join(root, "parser_test.go"))
	require.NoError(t, err)
	assert.Equal(t,
		"TestParse_foo\t"+filepath.Join(root, "testdata", "foo.txt")+"\n"+
			"TestParse_sub_bar\t"+filepath.Join(root, "testdata", "sub", "bar.txt")+"\n",
		out)
	assert.NoFileExists(t, filepath.Join(root, "parser_dirtest_test.go"))
}

func TestListCommand_JSON(t *testing.T) {
	root := setupPackage(t, parserSource)

	out, err := run(t, "list", "--json", filepath.Join(root, "parser_test.go"))
	require.NoError(t, err)

	var entries []listEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "testParse", entries[0].Func)
	assert.Equal(t, "**/*.txt", entries[0].Config.Glob)
	assert.Equal(t, filepath.Join(root, "testdata"), entries[0].Dir)
	assert.Equal(t, []string{"foo.txt", "sub/bar.txt"},
		[]string{entries[0].Tests[0].RelPath, entries[0].Tests[1].RelPath})
}

func callTool(t *testing.T, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	g := newGenerator()
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"plan_fixture_tests":     planTool(g),
		"generate_fixture_tests": generateTool(g),
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := handlers[name](context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestMCP_PlanFixtureTests(t *testing.T) {
	root := setupPackage(t, parserSource)

	res := callTool(t, "plan_fixture_tests", map[string]any{
		"args":    `dir: "$DIRTEST_PKGDIR/testdata", glob: "**/*.txt"`,
		"func":    "testParse",
		"pkg_dir": root,
	})
	require.False(t, res.IsError, resultText(t, res))

	var tests []api.TestCase
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &tests))
	require.Len(t, tests, 2)
	assert.Equal(t, "TestParse_sub_bar", tests[1].Name)
}

func TestMCP_PlanFixtureTests_BadArgs(t *testing.T) {
	res := callTool(t, "plan_fixture_tests", map[string]any{
		"args": `dri: "x"`,
		"func": "testParse",
	})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "unknown arg `dri`")

	res = callTool(t, "plan_fixture_tests", map[string]any{"args": `dir: "x"`})
	assert.True(t, res.IsError)
}

func TestMCP_GenerateFixtureTests(t *testing.T) {
	root := setupPackage(t, parserSource)
	source := filepath.Join(root, "parser_test.go")

	res := callTool(t, "generate_fixture_tests", map[string]any{"source": source, "check": true})
	assert.True(t, res.IsError)

	res = callTool(t, "generate_fixture_tests", map[string]any{"source": source})
	require.False(t, res.IsError, resultText(t, res))

	var report struct {
		Output  string         `json:"output"`
		Tests   []api.TestCase `json:"tests"`
		Written bool           `json:"written"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &report))
	assert.True(t, report.Written)
	assert.Len(t, report.Tests, 2)
	assert.FileExists(t, report.Output)
}

func TestMCPServer_Builds(t *testing.T) {
	assert.NotNil(t, newMCPServer(newGenerator()))
}
