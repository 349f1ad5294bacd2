// File: coverage/forkprofile.go
//
// Description:
// Fork profile aggregation. A walk over the execution tree counts every
// fork entry, keyed by the module and module-relative pc it happened at,
// then the locations are resolved to source lines where debug info is
// available and reported in descending fork-count order. Hot fork points
// are where symbolic inputs should be constrained first.

package coverage

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"

	"github.com/setrace/setrace/symbols"
	"github.com/setrace/setrace/trace"
)

type forkKey struct {
	pid  uint64
	path string
	pc   uint64
}

// ForkPoint is one resolved fork location.
type ForkPoint struct {
	Pid        uint64
	ModulePath string
	PC         uint64
	Count      uint64

	// Line and Function are nil when the module has no debug info.
	Line     *symbols.LineEntry
	Function *symbols.FuncEntry
}

// ForkProfiler accumulates fork counts from an execution tree.
type ForkProfiler struct {
	tree   []trace.TreeItem
	syms   *symbols.Manager
	counts map[forkKey]uint64
}

func NewForkProfiler(tree []trace.TreeItem, syms *symbols.Manager) *ForkProfiler {
	return &ForkProfiler{
		tree:   tree,
		syms:   syms,
		counts: make(map[forkKey]uint64),
	}
}

// Collect walks the tree and counts fork entries per (module, native pc).
// Forks outside any tracked module are counted against the raw pc.
func (p *ForkProfiler) Collect() {
	trace.NewAnalyzer(p.tree, func(state *trace.State, header trace.ItemHeader, entry trace.Entry) {
		fork, ok := entry.(*trace.Fork)
		if !ok {
			return
		}

		key := forkKey{pid: header.Pid, pc: fork.PC}
		mod, err := state.Modules.Get(header.Pid, fork.PC)
		if err != nil {
			log.Printf("forkprofile: %v", err)
		} else {
			key.path = mod.Path
			if native, ok := mod.ToNative(fork.PC); ok {
				key.pc = native
			}
		}
		p.counts[key]++
	}).Walk()
}

// Profile resolves the accumulated fork points and returns them sorted by
// descending count.
func (p *ForkProfiler) Profile() []ForkPoint {
	profile := make([]ForkPoint, 0, len(p.counts))
	for key, count := range p.counts {
		fp := ForkPoint{
			Pid:        key.pid,
			ModulePath: key.path,
			PC:         key.pc,
			Count:      count,
		}
		if key.path != "" {
			if line, fn, err := p.syms.Get(key.path, key.pc); err == nil {
				fp.Line = &line
				fp.Function = fn
			}
		}
		profile = append(profile, fp)
	}
	sort.Slice(profile, func(i, j int) bool {
		a, b := profile[i], profile[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.ModulePath != b.ModulePath {
			return a.ModulePath < b.ModulePath
		}
		return a.PC < b.PC
	})
	return profile
}

// Dump writes the profile in the classic fork-profile text layout.
func (p *ForkProfiler) Dump(w io.Writer) {
	fmt.Fprintln(w, "# The fork profile shows all the program counters where execution forked:")
	fmt.Fprintln(w, "# process_pid module_path:address fork_count source_file:line_number (function_name)")

	for _, fp := range p.Profile() {
		if fp.Line != nil {
			funcName := "?"
			if fp.Function != nil {
				funcName = fp.Function.Name
			}
			fmt.Fprintf(w, "%05d %s:%010x %4d %s:%d (%s)\n",
				fp.Pid, filepath.Clean(fp.ModulePath), fp.PC, fp.Count,
				filepath.Clean(fp.Line.File), fp.Line.Line, funcName)
		} else {
			fmt.Fprintf(w, "%05d %s:%#010x %4d (no debug info)\n",
				fp.Pid, filepath.Clean(fp.ModulePath), fp.PC, fp.Count)
		}
	}
}
