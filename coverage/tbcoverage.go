// File: coverage/tbcoverage.go
// Package: coverage
//
// Description:
// Readers for the tbcoverage-*.json files the symbolic engine's
// TranslationBlockCoverage plugin writes, one per execution state. Each
// file maps a target name to the [start, end, size] address ranges of the
// translation blocks that state executed. Expanding the ranges to
// per-address execution counts over-approximates the executed
// instructions, which is harmless downstream: addresses with no line
// information are simply ignored.

// Package coverage aggregates execution traces and translation-block
// records into line coverage, basic-block coverage and fork profiles.
package coverage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// TBRange is one executed translation block, covering [Start, End).
type TBRange struct {
	Start uint64
	End   uint64
	Size  uint32
}

func (r *TBRange) UnmarshalJSON(data []byte) error {
	var fields [3]uint64
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.Start, r.End, r.Size = fields[0], fields[1], uint32(fields[2])
	return nil
}

// FindTBFiles locates the coverage files under a results directory,
// accepting both the directory itself and per-node subdirectories.
func FindTBFiles(resultsDir string) ([]string, error) {
	patterns := []string{
		filepath.Join(resultsDir, "tbcoverage-*.json"),
		filepath.Join(resultsDir, "*", "tbcoverage-*.json"),
	}
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no translation block coverage files in %s", resultsDir)
	}
	sort.Strings(files)
	return files, nil
}

var tbStateRe = regexp.MustCompile(`tbcoverage-(\d+)\.json$`)

// TBFileState extracts the execution state id encoded in a coverage file
// name.
func TBFileState(path string) (uint32, error) {
	m := tbStateRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, fmt.Errorf("no state id in coverage file name %s", path)
	}
	state, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(state), nil
}

// ParseTBFile returns the ranges recorded for one target in one coverage
// file. A file that does not mention the target yields nil, which callers
// skip.
func ParseTBFile(path, targetName string) ([]TBRange, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var perTarget map[string][]TBRange
	if err := json.Unmarshal(raw, &perTarget); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	ranges, ok := perTarget[targetName]
	if !ok {
		log.Printf("coverage: %s has no records for %s", path, targetName)
		return nil, nil
	}
	return ranges, nil
}

// AddressCounts expands translation block ranges from all coverage files
// into per-address execution counts for the target.
func AddressCounts(files []string, targetName string) (map[uint64]uint64, error) {
	counts := make(map[uint64]uint64)
	for _, f := range files {
		ranges, err := ParseTBFile(f, targetName)
		if err != nil {
			return nil, err
		}
		for _, r := range ranges {
			for addr := r.Start; addr < r.End; addr++ {
				counts[addr]++
			}
		}
	}
	return counts, nil
}
