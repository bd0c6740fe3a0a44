package cmd

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/agentic-research/dirtest/internal/generate"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve dirtest planning and generation as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.ServeStdio(newMCPServer(newGenerator()))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func newMCPServer(g *generate.Generator) *server.MCPServer {
	s := server.NewMCPServer("dirtest", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("plan_fixture_tests",
		mcp.WithDescription("List the tests a //dirtest:gen directive would generate, without writing files."),
		mcp.WithString("args", mcp.Required(),
			mcp.Description(`Directive arguments, e.g. dir: "$DIRTEST_PKGDIR/testdata", glob: "**/*.json"`)),
		mcp.WithString("func", mcp.Required(),
			mcp.Description("Name of the shared test body, e.g. testParse")),
		mcp.WithString("pkg_dir",
			mcp.Description("Directory $DIRTEST_PKGDIR expands to; defaults to the working directory")),
		mcp.WithBoolean("subtests",
			mcp.Description("Name tests as t.Run subtests")),
	), planTool(g))

	s.AddTool(mcp.NewTool("generate_fixture_tests",
		mcp.WithDescription("Generate the dirtest test file for a Go source file and report the planned tests."),
		mcp.WithString("source", mcp.Required(),
			mcp.Description("Path of the Go file carrying //dirtest:gen directives")),
		mcp.WithBoolean("check",
			mcp.Description("Only report whether the generated file is up to date")),
		mcp.WithBoolean("subtests",
			mcp.Description("One test per declaration with a subtest per fixture")),
	), generateTool(g))

	return s
}

func planTool(g *generate.Generator) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := req.RequireString("args")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		fn, err := req.RequireString("func")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		pkgDir, err := filepath.Abs(req.GetString("pkg_dir", "."))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		local := *g
		local.Subtests = req.GetBool("subtests", false)
		p, err := local.PlanArgs(args, fn, pkgDir)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(p.Tests)
	}
}

func generateTool(g *generate.Generator) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		source, err := req.RequireString("source")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		local := *g
		local.Check = req.GetBool("check", false)
		local.Subtests = req.GetBool("subtests", false)
		report, err := local.Generate(ctx, source, "")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(report)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
