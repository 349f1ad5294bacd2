// File: symbols/functions.go
//
// Description:
// Sorted index from address ranges to function names. Ranges are ordered
// by interval (end <= start means "less"), so a one-byte probe finds its
// enclosing function with a binary search.

package symbols

import (
	"fmt"
	"slices"
	"sort"

	"github.com/setrace/setrace/trace"
)

// FuncEntry describes a function covering the half-open range
// [Start, End).
type FuncEntry struct {
	Name  string
	Start uint64
	End   uint64
}

func (e FuncEntry) String() string {
	return fmt.Sprintf("%s@%#x_%#x", e.Name, e.Start, e.End)
}

func (e FuncEntry) less(o FuncEntry) bool {
	return e.End <= o.Start
}

// FuncIndex provides an efficient lookup from address to function.
type FuncIndex struct {
	funcs []FuncEntry
}

// Add inserts a function range, keeping the index sorted.
func (f *FuncIndex) Add(name string, start, end uint64) {
	e := FuncEntry{Name: name, Start: start, End: end}
	i := sort.Search(len(f.funcs), func(i int) bool { return !f.funcs[i].less(e) })
	f.funcs = slices.Insert(f.funcs, i, e)
}

// Get returns the function whose range contains addr.
func (f *FuncIndex) Get(addr uint64) (FuncEntry, error) {
	probe := FuncEntry{Start: addr, End: addr + 1}
	i := sort.Search(len(f.funcs), func(i int) bool { return !f.funcs[i].less(probe) })
	if i == len(f.funcs) || probe.less(f.funcs[i]) {
		return FuncEntry{}, fmt.Errorf("%w: no function contains %#x",
			trace.ErrAddressNotFound, addr)
	}
	return f.funcs[i], nil
}

// Len returns the number of indexed functions.
func (f *FuncIndex) Len() int {
	return len(f.funcs)
}
