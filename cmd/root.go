package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-research/dirtest/internal/generate"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags.
var version = "dev"

var verbose bool

var logger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: "dirtest",
})

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every planned declaration")
}

var rootCmd = &cobra.Command{
	Use:   "dirtest",
	Short: "dirtest: one Go test per fixture file",
	Long: `dirtest expands a //dirtest:gen directive on a test body into one test
function per file matching a directory and glob. Run it through go generate:

	//go:generate go run github.com/agentic-research/dirtest generate`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLevel(log.DebugLevel)
		} else {
			logger.SetLevel(log.InfoLevel)
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func newGenerator() *generate.Generator {
	return &generate.Generator{
		FS:     osfs.New("/"),
		Env:    os.LookupEnv,
		Logger: logger,
	}
}

// sources picks the files to process: the arguments, else $GOFILE as set by
// go generate, else every test file of the working directory.
func sources(args []string) ([]string, error) {
	files := args
	if len(files) == 0 {
		if gofile := os.Getenv("GOFILE"); gofile != "" {
			files = []string{gofile}
		}
	}
	if len(files) == 0 {
		matches, err := doublestar.FilepathGlob("*_test.go")
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !strings.HasSuffix(m, "_dirtest_test.go") {
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no source files: pass files or run through go generate")
	}

	abs := make([]string, 0, len(files))
	for _, f := range files {
		p, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		}
		abs = append(abs, p)
	}
	return abs, nil
}
