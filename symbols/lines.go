// File: symbols/lines.go
// Package: symbols
//
// Description:
// Sorted address-to-source-line index. Insertion keeps the entries ordered
// by address so lookups are a binary search for the rightmost entry at or
// below the queried address.

// Package symbols resolves program counters to source locations and
// enclosing functions. Debug information is obtained from an external fast
// resolver tool, from embedded DWARF data or from a JSON sidecar file,
// tried in that order.
package symbols

import (
	"fmt"
	"slices"
	"sort"

	"github.com/setrace/setrace/trace"
)

// LineEntry attributes one address to a source file and line.
type LineEntry struct {
	File string
	Line int
	Addr uint64
}

func (e LineEntry) String() string {
	return fmt.Sprintf("%s:%d (%#x)", e.File, e.Line, e.Addr)
}

// LineIndex maintains a mapping from addresses to line information.
type LineIndex struct {
	entries []LineEntry
}

// Add inserts one entry, keeping the index sorted.
func (l *LineIndex) Add(file string, line int, addr uint64) {
	e := LineEntry{File: file, Line: line, Addr: addr}
	i := sort.Search(len(l.entries), func(i int) bool { return l.entries[i].Addr >= addr })
	l.entries = slices.Insert(l.entries, i, e)
}

// AddBatch appends entries without re-sorting per element; call Sort once
// afterwards. Used by the bulk loaders (sidecar, external resolver).
func (l *LineIndex) AddBatch(file string, line int, addr uint64) {
	l.entries = append(l.entries, LineEntry{File: file, Line: line, Addr: addr})
}

// Sort restores the address order after AddBatch calls.
func (l *LineIndex) Sort() {
	sort.Slice(l.entries, func(i, j int) bool { return l.entries[i].Addr < l.entries[j].Addr })
}

// Get returns the entry for the rightmost address at or below addr.
func (l *LineIndex) Get(addr uint64) (LineEntry, error) {
	i := sort.Search(len(l.entries), func(i int) bool { return l.entries[i].Addr > addr })
	if i == 0 {
		return LineEntry{}, fmt.Errorf("%w: no line information at or below %#x",
			trace.ErrAddressNotFound, addr)
	}
	return l.entries[i-1], nil
}

// Entries exposes the sorted entries for bulk consumers (coverage).
func (l *LineIndex) Entries() []LineEntry {
	return l.entries
}

// Len returns the number of indexed line entries.
func (l *LineIndex) Len() int {
	return len(l.entries)
}
