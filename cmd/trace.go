// File: cmd/trace.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/setrace/setrace/trace"
)

var (
	tracePathIDs []uint
	traceOutput  string
)

// traceCmd dumps the execution tree of the last run
var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Dump an execution trace as a structured document",
	Long: `Parse the binary execution trace file(s) of the last engine run into
an execution tree and dump it in JSON or YAML form. Fork entries carry
their child traces inline, so the document mirrors the branching
structure of the run.

By default every execution path is included. One or more --path-id
flags restrict the dump to the paths terminating in those state ids:
  setrace trace --project /path/to/project -p 0 -p 34`,
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().UintSliceVarP(&tracePathIDs, "path-id", "p", nil,
		"Path to include in the trace (may be repeated)")
	traceCmd.Flags().StringVarP(&traceOutput, "output", "o", "",
		"Write the dump to a file instead of stdout")
}

func runTrace(cmd *cobra.Command, args []string) error {
	if err := validateFormat(formatFlag); err != nil {
		return err
	}

	project, err := loadProject(projectFlag)
	if err != nil {
		return err
	}

	pathIDs := make([]uint32, 0, len(tracePathIDs))
	for _, id := range tracePathIDs {
		pathIDs = append(pathIDs, uint32(id))
	}

	tree, err := trace.ParseDir(project.ResultsDir, pathIDs)
	if err != nil {
		return err
	}
	if len(tree) == 0 {
		return fmt.Errorf("%w in %s", trace.ErrEmptyTrace, project.ResultsDir)
	}

	return writeOutput(trace.TreeToJSON(tree), traceOutput)
}
