// File: cmd/forkprofile.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/setrace/setrace/coverage"
	"github.com/setrace/setrace/symbols"
	"github.com/setrace/setrace/trace"
)

// forkprofileCmd generates a fork profile from an execution trace
var forkprofileCmd = &cobra.Command{
	Use:   "forkprofile",
	Short: "Generate a fork profile from an execution trace",
	Long: `Walk the execution tree of the last engine run and count how many
times execution forked at each program counter, per module. The
locations are resolved to source lines when debug information is
available and printed in descending fork-count order.`,
	RunE: runForkProfile,
}

func init() {
	rootCmd.AddCommand(forkprofileCmd)
}

func runForkProfile(cmd *cobra.Command, args []string) error {
	project, err := loadProject(projectFlag)
	if err != nil {
		return err
	}

	tree, err := trace.ParseDir(project.ResultsDir, nil)
	if err != nil {
		return err
	}
	if len(tree) == 0 {
		return fmt.Errorf("%w in %s", trace.ErrEmptyTrace, project.ResultsDir)
	}

	profiler := coverage.NewForkProfiler(tree, symbols.NewManager(project.searchPaths()...))
	profiler.Collect()
	profiler.Dump(os.Stdout)
	return nil
}
