// File: coverage/lcov.go
//
// Description:
// lcov-format line coverage writer. The output follows the geninfo(1)
// record format so genhtml can turn it into an HTML report: one SF block
// per source file with DA lines, the LH/LF line totals and an
// end_of_record terminator. Source files that cannot be found on disk are
// skipped with a warning, since genhtml aborts on missing files.

package coverage

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/setrace/setrace/symbols"
)

// WriteLCOV renders per-file line coverage as lcov records. Files and
// lines are emitted in sorted order so the output is deterministic.
func WriteLCOV(w io.Writer, cov symbols.FileLineCoverage) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "TN:\n")

	files := make([]string, 0, len(cov))
	for f := range cov {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			absPath = file
		}
		if fi, err := os.Stat(absPath); err != nil || fi.IsDir() {
			log.Printf("coverage: cannot find source file %s, skipping", absPath)
			continue
		}

		lineCounts := cov[file]
		lines := make([]int, 0, len(lineCounts))
		for line := range lineCounts {
			lines = append(lines, line)
		}
		sort.Ints(lines)

		hit := 0
		fmt.Fprintf(bw, "SF:%s\n", absPath)
		for _, line := range lines {
			count := lineCounts[line]
			fmt.Fprintf(bw, "DA:%d,%d\n", line, count)
			if count != 0 {
				hit++
			}
		}
		fmt.Fprintf(bw, "LH:%d\n", hit)
		fmt.Fprintf(bw, "LF:%d\n", len(lines))
		fmt.Fprintf(bw, "end_of_record\n")
	}
	return bw.Flush()
}

// SaveLCOV writes the coverage records to a file, conventionally named
// coverage.info.
func SaveLCOV(path string, cov symbols.FileLineCoverage) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteLCOV(f, cov)
}
