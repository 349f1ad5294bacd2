// File: trace/tree.go
//
// Description:
// Reconstruction of the execution tree from one or more trace files. Each
// engine worker process writes its own ExecutionTracer.dat, so entries for
// a given state may be spread over several files. While streaming we
// record, for every forked state, its parent and the index of the fork
// entry inside the parent's trace; afterwards the per-state traces are
// stitched into a single tree rooted at state 0.

package trace

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
)

// TraceFileName is the file written by the engine's execution tracer.
const TraceFileName = "ExecutionTracer.dat"

// TreeItem is one record of the execution tree. For fork entries, Children
// maps each forked state id to its subtree; it is nil for everything else.
type TreeItem struct {
	Header   ItemHeader
	Entry    Entry
	Children map[uint32][]TreeItem
}

// forkPoint remembers where in the parent's trace a state was forked.
type forkPoint struct {
	parent uint32
	index  int
}

type treeParser struct {
	traces   map[uint32][]TreeItem
	forks    map[uint32]forkPoint
	maxPath  uint32
	filtered bool
}

// FindTraceFiles locates the trace file(s) under a results directory. Both
// single-node layouts (resultsDir/ExecutionTracer.dat) and multi-node
// layouts (resultsDir/<node>/ExecutionTracer.dat) are supported.
func FindTraceFiles(resultsDir string) []string {
	nested, _ := filepath.Glob(filepath.Join(resultsDir, "*", TraceFileName))
	flat, _ := filepath.Glob(filepath.Join(resultsDir, TraceFileName))
	return append(nested, flat...)
}

// ParseDir parses the trace file(s) under resultsDir into an execution
// tree. See ParseTree for the pathIDs semantics.
func ParseDir(resultsDir string, pathIDs []uint32) ([]TreeItem, error) {
	files := FindTraceFiles(resultsDir)
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s found in %s", ErrEmptyTrace, TraceFileName, resultsDir)
	}
	return ParseTree(files, pathIDs)
}

// ParseTree parses the given trace files and stitches them into a single
// execution tree rooted at state 0.
//
// If pathIDs is non-empty, only those states (plus their ancestors) are
// kept; a parent's trace is truncated right after the fork that spawned a
// state of interest, since the remainder of the parent is irrelevant to it.
func ParseTree(files []string, pathIDs []uint32) ([]TreeItem, error) {
	p := &treeParser{
		traces: make(map[uint32][]TreeItem),
		forks:  make(map[uint32]forkPoint),
	}
	if len(pathIDs) > 0 {
		p.filtered = true
		for _, id := range pathIDs {
			if id > p.maxPath {
				p.maxPath = id
			}
		}
	}

	for _, file := range files {
		if err := p.parseFile(file); err != nil {
			return nil, err
		}
	}

	// Entries of one state may be spread across files; restore the global
	// order per state.
	for _, items := range p.traces {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Header.Timestamp < items[j].Header.Timestamp
		})
	}

	return p.assemble(pathIDs), nil
}

func (p *treeParser) parseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening trace file: %w", err)
	}
	defer f.Close()

	items, err := ParseStream(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for _, it := range items {
		state := it.Header.StateID

		// States forked after the ones we were asked for cannot be their
		// ancestors, so their data is dropped outright.
		if p.filtered && state > p.maxPath {
			continue
		}

		node := TreeItem{Header: it.Header, Entry: it.Entry}
		if fork, ok := it.Entry.(*Fork); ok {
			node.Children = make(map[uint32][]TreeItem, len(fork.Children))
			for _, child := range fork.Children {
				if child == state {
					continue
				}
				p.forks[child] = forkPoint{parent: state, index: len(p.traces[state])}
			}
		}
		p.traces[state] = append(p.traces[state], node)
	}
	return nil
}

// assemble attaches every child trace to the fork entry that spawned it,
// from the most recently forked state down, and returns the root trace.
func (p *treeParser) assemble(pathIDs []uint32) []TreeItem {
	var states []uint32
	if len(pathIDs) > 0 {
		keep := make(map[uint32]bool)
		for _, id := range pathIDs {
			keep[id] = true
			for parent := id; parent != 0; {
				fp, ok := p.forks[parent]
				if !ok {
					break
				}
				parent = fp.parent
				keep[parent] = true
			}
		}
		// State 0 is always the root, never attached to anything.
		delete(keep, 0)
		for id := range keep {
			states = append(states, id)
		}
	} else {
		for id := range p.forks {
			states = append(states, id)
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i] > states[j] })

	interesting := make(map[uint32]bool, len(pathIDs))
	for _, id := range pathIDs {
		interesting[id] = true
	}

	for _, state := range states {
		fp, ok := p.forks[state]
		if !ok {
			log.Printf("trace: state %d has no recorded fork point, dropping", state)
			continue
		}
		parentTrace := p.traces[fp.parent]
		if fp.index >= len(parentTrace) || parentTrace[fp.index].Children == nil {
			log.Printf("trace: fork point %d of state %d does not reference a fork entry, dropping",
				fp.index, state)
			continue
		}
		parentTrace[fp.index].Children[state] = p.traces[state]

		// When filtering, the parent's own continuation past the fork is
		// only interesting if the parent itself was requested.
		if p.filtered && !interesting[fp.parent] {
			p.traces[fp.parent] = parentTrace[:fp.index+1]
		}
	}

	return p.traces[0]
}
