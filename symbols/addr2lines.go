// File: symbols/addr2lines.go
//
// Description:
// Debug info strategy backed by the external addr2lines tool, the fastest
// option for very large binaries such as kernel images. The tool is run
// once against the target to dump its full line table; coverage queries
// for covered-only reports go through the tool's -coverage mode, which
// takes (address, length) ranges as JSON on stdin. The runner is a
// package-level seam so tests can substitute a mock subprocess.

package symbols

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
)

const addr2LinesTool = "addr2lines"

// Runner executes an external tool with data on stdin.
type Runner interface {
	Run(stdin []byte, name string, args ...string) ([]byte, error)
}

// ExecRunner executes actual system commands
type ExecRunner struct{}

func (r ExecRunner) Run(stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	return cmd.Output()
}

// Default runner instance
var toolRunner Runner = ExecRunner{}

// SetRunner allows changing the runner for tests
func SetRunner(r Runner) {
	toolRunner = r
}

// addr2LinesInfo holds line information dumped by the external tool.
type addr2LinesInfo struct {
	debugIndex
	searchPaths []string

	// sourceCache deduplicates path guessing across line entries, which
	// all repeat the same handful of file names.
	sourceCache map[string]string
}

// toolOutput is the tool's stdout format. Every value in a line pair is
// either the list of addresses attributed to that line or, in -coverage
// mode, the line's execution count.
type toolOutput map[string]struct {
	Lines [][2]json.RawMessage `json:"lines"`
}

func newAddr2LinesInfo(path string, searchPaths []string) (*addr2LinesInfo, error) {
	out, err := toolRunner.Run(nil, addr2LinesTool, path)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", addr2LinesTool, err)
	}

	info := &addr2LinesInfo{
		debugIndex:  debugIndex{path: path},
		searchPaths: searchPaths,
		sourceCache: make(map[string]string),
	}
	if err := info.loadDump(out); err != nil {
		return nil, err
	}
	if info.lines.Len() == 0 {
		return nil, fmt.Errorf("%s produced no line information for %s", addr2LinesTool, path)
	}
	info.lines.Sort()
	return info, nil
}

// loadDump ingests a full line-table dump into the index.
func (a *addr2LinesInfo) loadDump(data []byte) error {
	var dump toolOutput
	if err := json.Unmarshal(data, &dump); err != nil {
		return fmt.Errorf("decoding %s output: %w", addr2LinesTool, err)
	}
	for file, entry := range dump {
		file = a.guessSource(file)
		for _, pair := range entry.Lines {
			line, addrs, _, err := decodeLinePair(pair)
			if err != nil {
				return err
			}
			for _, addr := range addrs {
				a.lines.AddBatch(file, line, addr)
			}
		}
	}
	return nil
}

// Coverage implements covered-only reports through the tool's -coverage
// mode; full reports project the already-loaded index.
func (a *addr2LinesInfo) Coverage(addrCounts map[uint64]uint64, coveredOnly bool) (FileLineCoverage, error) {
	if !coveredOnly {
		return a.coverageFromIndex(addrCounts), nil
	}

	ranges := make([][2]uint64, 0, len(addrCounts))
	for addr := range addrCounts {
		ranges = append(ranges, [2]uint64{addr, 1})
	}
	stdin, err := json.Marshal(ranges)
	if err != nil {
		return nil, err
	}

	out, err := toolRunner.Run(stdin, addr2LinesTool, a.path, "-coverage")
	if err != nil {
		log.Printf("symbols: %s -coverage failed for %s, using loaded index: %v",
			addr2LinesTool, a.path, err)
		return a.coveredFromIndex(addrCounts), nil
	}

	var dump toolOutput
	if err := json.Unmarshal(out, &dump); err != nil {
		return nil, fmt.Errorf("decoding %s coverage output: %w", addr2LinesTool, err)
	}

	result := make(FileLineCoverage)
	for file, entry := range dump {
		file = a.guessSource(file)
		lines := make(map[int]uint64, len(entry.Lines))
		for _, pair := range entry.Lines {
			line, addrs, count, err := decodeLinePair(pair)
			if err != nil {
				return nil, err
			}
			if addrs != nil {
				count = 0
				for _, addr := range addrs {
					count += addrCounts[addr]
				}
			}
			lines[line] = count
		}
		result[file] = lines
	}
	return result, nil
}

// coveredFromIndex is the fallback projection when the tool's coverage
// mode is unavailable: only lines whose address was executed are kept.
func (a *addr2LinesInfo) coveredFromIndex(addrCounts map[uint64]uint64) FileLineCoverage {
	out := make(FileLineCoverage)
	for _, e := range a.lines.Entries() {
		count, ok := addrCounts[e.Addr]
		if !ok {
			continue
		}
		file, ok := out[e.File]
		if !ok {
			file = make(map[int]uint64)
			out[e.File] = file
		}
		file[e.Line] = count
	}
	return out
}

func (a *addr2LinesInfo) guessSource(file string) string {
	if guessed, ok := a.sourceCache[file]; ok {
		return guessed
	}
	guessed := GuessSourceFilePath(a.searchPaths, file)
	a.sourceCache[file] = guessed
	return guessed
}

// decodeLinePair splits a [line, value] pair where value is either an
// address list or an execution count.
func decodeLinePair(pair [2]json.RawMessage) (line int, addrs []uint64, count uint64, err error) {
	if err = json.Unmarshal(pair[0], &line); err != nil {
		return 0, nil, 0, fmt.Errorf("decoding %s line number: %w", addr2LinesTool, err)
	}
	if err = json.Unmarshal(pair[1], &addrs); err == nil {
		return line, addrs, 0, nil
	}
	if err = json.Unmarshal(pair[1], &count); err != nil {
		return 0, nil, 0, fmt.Errorf("decoding %s line value: %w", addr2LinesTool, err)
	}
	return line, nil, count, nil
}
