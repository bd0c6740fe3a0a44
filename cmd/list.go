package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/agentic-research/dirtest/api"
	"github.com/spf13/cobra"
)

var listJSON bool

// listEntry is one declaration in `dirtest list --json` output.
type listEntry struct {
	Source string         `json:"source"`
	Line   int            `json:"line"`
	Func   string         `json:"func,omitempty"`
	Config *api.Config    `json:"config,omitempty"`
	Dir    string         `json:"dir,omitempty"`
	Tests  []api.TestCase `json:"tests"`
	Error  string         `json:"error,omitempty"`
}

var listCmd = &cobra.Command{
	Use:   "list [files...]",
	Short: "Print the tests each declaration expands to without writing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := sources(args)
		if err != nil {
			return err
		}

		g := newGenerator()
		g.Subtests = subtests

		entries := make([]listEntry, 0)
		var failed int
		for _, f := range files {
			_, results, err := g.Plan(cmd.Context(), f)
			if err != nil {
				return err
			}
			for _, r := range results {
				e := listEntry{
					Source: f,
					Line:   r.Declaration.Line,
					Func:   r.Declaration.Func,
					Config: r.Config,
					Tests:  make([]api.TestCase, 0),
				}
				if r.Err != nil {
					e.Error = r.Err.Error()
					failed++
				} else {
					e.Dir = r.Plan.Dir
					e.Tests = r.Plan.Tests
				}
				entries = append(entries, e)
			}
		}

		out := cmd.OutOrStdout()
		if listJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(entries); err != nil {
				return err
			}
		} else {
			for _, e := range entries {
				if e.Error != "" {
					_, _ = fmt.Fprintf(out, "%s:%d: error: %s\n", e.Source, e.Line, e.Error)
					continue
				}
				for _, tc := range e.Tests {
					_, _ = fmt.Fprintf(out, "%s\t%s\n", tc.Name, tc.Path)
				}
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d declaration(s) failed", failed)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(listCmd)
}
