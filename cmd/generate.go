package cmd

import (
	"errors"
	"fmt"

	"github.com/agentic-research/dirtest/internal/generate"
	"github.com/spf13/cobra"
)

var (
	outputPath string
	subtests   bool
	checkOnly  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [files...]",
	Short: "Write the generated test file next to each source file",
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := sources(args)
		if err != nil {
			return err
		}
		if outputPath != "" && len(files) != 1 {
			return fmt.Errorf("--output needs exactly one source file, got %d", len(files))
		}

		g := newGenerator()
		g.Subtests = subtests
		g.Check = checkOnly

		var failed int
		for _, f := range files {
			report, err := g.Generate(cmd.Context(), f, outputPath)
			if err != nil {
				if errors.Is(err, generate.ErrStale) {
					logger.Error("stale", "output", report.Output)
				} else {
					logger.Error("generation failed", "source", f, "error", err)
				}
				failed++
				continue
			}
			for _, d := range report.Diagnostics {
				logger.Error(d.Error())
			}
			failed += len(report.Diagnostics)
		}

		if failed > 0 {
			return fmt.Errorf("%d failure(s)", failed)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Generated file path (single source file only)")
	generateCmd.Flags().BoolVar(&subtests, "subtests", false, "One test per declaration with a subtest per fixture")
	generateCmd.Flags().BoolVar(&checkOnly, "check", false, "Fail if the generated file is missing or out of date instead of writing it")
	rootCmd.AddCommand(generateCmd)
}
