// File: cmd/coverage.go
//
// Description:
// The `coverage` command group. `coverage lcov` maps executed translation
// blocks to source lines through the target's debug info and writes an
// lcov-format report (optionally rendered to HTML via genhtml).
// `coverage basic-block` intersects the executed blocks with a
// disassembler-produced .bblist file and writes a JSON summary.

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/setrace/setrace/coverage"
	"github.com/setrace/setrace/symbols"
)

var (
	lcovHTML        bool
	lcovCoveredOnly bool
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Generate coverage reports from translation block records",
}

var lcovCmd = &cobra.Command{
	Use:   "lcov",
	Short: "Generate a line coverage report in lcov format",
	Long: `Generate a line coverage report from the translation block records of
the last engine run. The report is written in the lcov format, so it
can be turned into an HTML report with genhtml (pass --html to do so
directly). Requires that the target binary carries debug information
and that the source code is available.`,
	RunE: runLcov,
}

var basicBlockCmd = &cobra.Command{
	Use:   "basic-block",
	Short: "Generate a basic block coverage report",
	Long: `Generate a basic block coverage report for each module of the project.
The static basic block list is read from a <module>.bblist file in the
project directory, a JSON dump produced by an external disassembler.`,
	RunE: runBasicBlock,
}

func init() {
	rootCmd.AddCommand(coverageCmd)
	coverageCmd.AddCommand(lcovCmd)
	coverageCmd.AddCommand(basicBlockCmd)
	lcovCmd.Flags().BoolVar(&lcovHTML, "html", false, "Render an HTML report with genhtml")
	lcovCmd.Flags().BoolVar(&lcovCoveredOnly, "covered-files-only", false,
		"Only report source files that were actually executed")
}

func runLcov(cmd *cobra.Command, args []string) error {
	project, err := loadProject(projectFlag)
	if err != nil {
		return err
	}
	if err := project.requireTarget(); err != nil {
		return err
	}

	files, err := coverage.FindTBFiles(project.ResultsDir)
	if err != nil {
		return err
	}
	addrCounts, err := coverage.AddressCounts(files, project.Target)
	if err != nil {
		return err
	}
	if len(addrCounts) == 0 {
		return fmt.Errorf("no translation block information found for %s", project.Target)
	}

	syms := symbols.NewManager(project.searchPaths()...)
	cov, err := syms.Coverage(project.TargetPath, addrCounts, lcovCoveredOnly)
	if err != nil {
		return err
	}

	lcovPath := filepath.Join(project.ResultsDir, "coverage.info")
	if err := coverage.SaveLCOV(lcovPath, cov); err != nil {
		return err
	}

	if lcovHTML {
		htmlDir := filepath.Join(project.ResultsDir, project.Target+"_lcov")
		out, err := cmdExecutor.Execute("genhtml", lcovPath, "--output-directory", htmlDir)
		if err != nil {
			return fmt.Errorf("genhtml failed: %w (%s)", err, out)
		}
		fmt.Printf("Line coverage saved to %s. An HTML report is available in %s\n",
			lcovPath, htmlDir)
		return nil
	}

	fmt.Printf("Line coverage saved to %s\n", lcovPath)
	return nil
}

func runBasicBlock(cmd *cobra.Command, args []string) error {
	project, err := loadProject(projectFlag)
	if err != nil {
		return err
	}

	for _, module := range project.Modules {
		blocks, err := coverage.LoadBasicBlocks(filepath.Join(projectFlag, module+".bblist"))
		if err != nil {
			return err
		}

		files, err := coverage.FindTBFiles(project.ResultsDir)
		if err != nil {
			return err
		}
		cov, err := coverage.ComputeBlockCoverage(blocks, files, module)
		if err != nil {
			return err
		}

		reportPath := filepath.Join(project.ResultsDir, module+"_coverage.json")
		if err := cov.Save(reportPath); err != nil {
			return err
		}

		percent := float64(cov.Stats.CoveredBasicBlocks) / float64(cov.Stats.TotalBasicBlocks) * 100
		fmt.Printf("Basic block coverage for %s saved to %s\n", module, reportPath)
		fmt.Printf("Covered %d/%d basic blocks (%.1f%%)\n",
			cov.Stats.CoveredBasicBlocks, cov.Stats.TotalBasicBlocks, percent)
	}
	return nil
}
