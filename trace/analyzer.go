// File: trace/analyzer.go
//
// Description:
// Depth-first walker over an execution tree. The walker maintains a module
// address map per branch: at every fork the current map is cloned for each
// child, so a callback always observes a branch-local, consistent view of
// the address space, never a sibling's mutations.

package trace

import (
	"errors"
	"log"
)

// State is the branch-local view handed to the walk callback. It is owned
// by exactly one branch at a time; callbacks must not retain it across
// invocations.
type State struct {
	Modules *ModuleMap
}

func newState() *State {
	return &State{Modules: NewModuleMap()}
}

func (s *State) clone() *State {
	return &State{Modules: s.Modules.Clone()}
}

// Callback is invoked on every tree item, including the fork, load and
// unload entries that the walker itself interprets.
type Callback func(state *State, header ItemHeader, entry Entry)

// Analyzer walks an execution tree in depth-first order, keeping the
// module map of each branch up to date. Aggregation state belongs to the
// caller: the analyzer itself holds nothing but the tree and the callback.
type Analyzer struct {
	tree []TreeItem
	cb   Callback
}

// NewAnalyzer sets up a walker over the given tree. The callback receives
// the branch state, the item header and the decoded entry.
func NewAnalyzer(tree []TreeItem, cb Callback) *Analyzer {
	return &Analyzer{tree: tree, cb: cb}
}

// Walk traverses the whole tree. A LIFO work list holds (subtree, state)
// pairs; forks push one cloned state per child. No ordering is guaranteed
// between sibling branches beyond the LIFO pop order.
func (a *Analyzer) Walk() {
	type work struct {
		trace []TreeItem
		state *State
	}

	stack := []work{{trace: a.tree, state: newState()}}

	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, item := range w.trace {
			switch e := item.Entry.(type) {
			case *Fork:
				for _, childTrace := range item.Children {
					stack = append(stack, work{trace: childTrace, state: w.state.clone()})
				}
			case *OSInfo:
				w.state.Modules.SetKernelStart(e.KernelStart)
			case *ModuleLoad:
				mod := &Module{
					Name: e.ModuleName(),
					Path: e.ModulePath(),
					Pid:  e.Pid,
					Sections: []SectionDescriptor{{
						Name:            e.ModuleName(),
						RuntimeLoadBase: e.LoadBase,
						NativeLoadBase:  e.NativeBase,
						Size:            e.Size,
					}},
				}
				if err := w.state.Modules.Add(mod); err != nil {
					log.Printf("trace: cannot register %s: %v", mod, err)
				}
			case *ModuleUnload:
				// A one-byte probe section is enough to find and drop the
				// section registered at the unload base.
				mod := &Module{
					Pid: e.Pid,
					Sections: []SectionDescriptor{{
						RuntimeLoadBase: e.LoadBase,
						Size:            1,
					}},
				}
				if err := w.state.Modules.Remove(mod); err != nil {
					// Unloads of modules that were never tracked happen in
					// real traces around process teardown; tolerate them.
					if errors.Is(err, ErrAddressNotFound) {
						log.Printf("trace: ignoring unload of untracked module at %#x (pid %d)",
							e.LoadBase, e.Pid)
					} else {
						log.Printf("trace: cannot unload module at %#x (pid %d): %v",
							e.LoadBase, e.Pid, err)
					}
				}
			}

			a.cb(w.state, item.Header, item.Entry)
		}
	}
}
