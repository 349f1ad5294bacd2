// File: symbols/debuginfo.go
//
// Description:
// The DebugInfo capability interface, the ordered-fallback driver that
// selects a concrete strategy for a binary, and the Manager that caches
// one resolver per target. Strategy failures are recovered locally by
// falling through to the next strategy; only when every strategy fails is
// ErrNoDebugInfo surfaced, naming the target and what was attempted.

package symbols

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

// ErrNoDebugInfo means no resolution strategy produced usable line
// information for a target.
var ErrNoDebugInfo = errors.New("no usable debug information")

// FileLineCoverage maps source file -> line number -> execution count.
type FileLineCoverage map[string]map[int]uint64

// DebugInfo resolves addresses within one target binary.
type DebugInfo interface {
	// Path returns the binary the debug info belongs to.
	Path() string

	// Get returns line information for addr and, when known, the
	// enclosing function. The function entry is nil when only line data
	// is available.
	Get(addr uint64) (LineEntry, *FuncEntry, error)

	// Coverage maps every known line of the binary to its execution
	// count, taken from addrCounts (absent addresses count as zero).
	// When coveredOnly is set, only lines reachable from the covered
	// addresses are resolved; large binaries are not parsed in full.
	Coverage(addrCounts map[uint64]uint64, coveredOnly bool) (FileLineCoverage, error)
}

// debugIndex is the sorted-index core shared by all strategies.
type debugIndex struct {
	path  string
	lines LineIndex
	funcs FuncIndex
}

func (d *debugIndex) Path() string { return d.path }

func (d *debugIndex) Get(addr uint64) (LineEntry, *FuncEntry, error) {
	line, err := d.lines.Get(addr)
	if err != nil {
		return LineEntry{}, nil, err
	}
	if fn, err := d.funcs.Get(addr); err == nil {
		return line, &fn, nil
	}
	return line, nil, nil
}

// coverageFromIndex projects the line index into a file/line/count table.
func (d *debugIndex) coverageFromIndex(addrCounts map[uint64]uint64) FileLineCoverage {
	out := make(FileLineCoverage)
	for _, e := range d.lines.Entries() {
		file, ok := out[e.File]
		if !ok {
			file = make(map[int]uint64)
			out[e.File] = file
		}
		file[e.Line] = addrCounts[e.Addr]
	}
	return out
}

func (d *debugIndex) Coverage(addrCounts map[uint64]uint64, coveredOnly bool) (FileLineCoverage, error) {
	return d.coverageFromIndex(addrCounts), nil
}

// FromFile builds a DebugInfo for the given binary, trying the external
// fast resolver, then embedded DWARF, then the JSON sidecar. The first
// strategy that yields data wins; each failure is logged and falls
// through.
func FromFile(searchPaths []string, targetPath string) (DebugInfo, error) {
	var attempts []string

	if info, err := newAddr2LinesInfo(targetPath, searchPaths); err == nil {
		return info, nil
	} else {
		log.Printf("symbols: %s resolver failed for %s: %v", addr2LinesTool, targetPath, err)
		attempts = append(attempts, fmt.Sprintf("%s: %v", addr2LinesTool, err))
	}

	if info, err := newDwarfInfo(targetPath, searchPaths); err == nil {
		return info, nil
	} else {
		log.Printf("symbols: DWARF parsing failed for %s: %v", targetPath, err)
		attempts = append(attempts, fmt.Sprintf("dwarf: %v", err))
	}

	if info, err := newJSONInfo(targetPath, searchPaths); err == nil {
		return info, nil
	} else {
		log.Printf("symbols: JSON sidecar failed for %s: %v", targetPath, err)
		attempts = append(attempts, fmt.Sprintf("lines sidecar: %v", err))
	}

	return nil, fmt.Errorf("%w for %s (tried %s)",
		ErrNoDebugInfo, targetPath, strings.Join(attempts, "; "))
}

// Manager caches debug information per target binary and implements an
// addr2line equivalent on top of it. Targets that have no usable debug
// info are cached too, so a missing binary is only probed once per run.
type Manager struct {
	searchPaths []string
	targets     map[string]DebugInfo
}

// NewManager returns a manager that looks for binaries and source files
// under the given search paths.
func NewManager(searchPaths ...string) *Manager {
	return &Manager{
		searchPaths: searchPaths,
		targets:     make(map[string]DebugInfo),
	}
}

// Target returns the cached resolver for a binary, building it on first
// use.
func (m *Manager) Target(target string) (DebugInfo, error) {
	if info, ok := m.targets[target]; ok {
		if info == nil {
			return nil, fmt.Errorf("%w for %s", ErrNoDebugInfo, target)
		}
		return info, nil
	}

	actual, err := GuessTargetPath(m.searchPaths, target)
	if err != nil {
		m.targets[target] = nil
		return nil, fmt.Errorf("%w for %s: %v", ErrNoDebugInfo, target, err)
	}
	info, err := FromFile(m.searchPaths, actual)
	if err != nil {
		m.targets[target] = nil
		return nil, err
	}
	m.targets[target] = info
	return info, nil
}

// Get resolves a single address in the given target.
func (m *Manager) Get(target string, addr uint64) (LineEntry, *FuncEntry, error) {
	info, err := m.Target(target)
	if err != nil {
		return LineEntry{}, nil, err
	}
	return info.Get(addr)
}

// Coverage maps executed addresses of the target to per-file, per-line
// execution counts.
func (m *Manager) Coverage(target string, addrCounts map[uint64]uint64, coveredOnly bool) (FileLineCoverage, error) {
	info, err := m.Target(target)
	if err != nil {
		return nil, err
	}
	return info.Coverage(addrCounts, coveredOnly)
}
