// File: trace/modules.go
//
// Description:
// Per-process registry of loaded module sections, maintained while walking
// an execution tree. Sections are kept in interval order per process id so
// that a program counter can be attributed to its owning module with a
// binary search. The map is cloned at fork points so that each branch of
// the tree evolves its own view of the address space.

package trace

import (
	"fmt"
	"log"
	"slices"
	"sort"
)

// SectionDescriptor describes one mapped section of a module.
type SectionDescriptor struct {
	Name            string
	RuntimeLoadBase uint64
	NativeLoadBase  uint64
	Size            uint64
	Readable        bool
	Writable        bool
	Executable      bool
}

// Contains reports whether pc falls inside the section's runtime interval.
func (s SectionDescriptor) Contains(pc uint64) bool {
	return s.RuntimeLoadBase <= pc && pc < s.RuntimeLoadBase+s.Size
}

// less orders sections by runtime interval. Two sections are "equal" under
// this ordering when their intervals overlap, which is exactly what lets a
// one-byte probe section find its containing interval.
func (s SectionDescriptor) less(o SectionDescriptor) bool {
	return s.RuntimeLoadBase+s.Size <= o.RuntimeLoadBase
}

func (s SectionDescriptor) String() string {
	return fmt.Sprintf("name:%s rt_base=%#x size=%#x", s.Name, s.RuntimeLoadBase, s.Size)
}

// Module is a binary image loaded by a traced process. Modules are treated
// as immutable once inserted into a ModuleMap, so clones share them.
type Module struct {
	Name     string
	Path     string
	Pid      uint64
	Sections []SectionDescriptor
}

// GetSection returns the section containing pc, if any.
func (m *Module) GetSection(pc uint64) (SectionDescriptor, bool) {
	for _, s := range m.Sections {
		if s.Contains(pc) {
			return s, true
		}
	}
	return SectionDescriptor{}, false
}

// ToNative translates a runtime program counter into the module's native
// (on-disk image) address space.
func (m *Module) ToNative(pc uint64) (uint64, bool) {
	s, ok := m.GetSection(pc)
	if !ok {
		return 0, false
	}
	return pc - s.RuntimeLoadBase + s.NativeLoadBase, true
}

func (m *Module) String() string {
	return fmt.Sprintf("Module name:%s (%s) pid:%d", m.Name, m.Path, m.Pid)
}

// mapEntry ties a stored section to its owning module, replacing the
// separate (pid, section) -> module reverse index of a nested-map design
// with a single sorted arena per process id.
type mapEntry struct {
	section SectionDescriptor
	module  *Module
}

// ModuleMap tracks which module owns which address interval, per process
// id. One instance is owned by each branch of an execution-tree walk.
type ModuleMap struct {
	sections    map[uint64][]mapEntry
	kernelStart uint64
}

// NewModuleMap returns an empty map. Until an osinfo entry lowers it, the
// kernel-start threshold is the top of the address space, so no pid
// translation occurs.
func NewModuleMap() *ModuleMap {
	return &ModuleMap{
		sections:    make(map[uint64][]mapEntry),
		kernelStart: ^uint64(0),
	}
}

// KernelStart returns the current kernel-space threshold.
func (m *ModuleMap) KernelStart() uint64 { return m.kernelStart }

// SetKernelStart sets the address at or above which program counters are
// attributed to the kernel (pid 0), which is shared across processes.
func (m *ModuleMap) SetKernelStart(pc uint64) { m.kernelStart = pc }

// search returns the index of the entry whose interval overlaps probe, or
// the insertion index and false.
func search(entries []mapEntry, probe SectionDescriptor) (int, bool) {
	i := sort.Search(len(entries), func(i int) bool {
		return !entries[i].section.less(probe)
	})
	if i < len(entries) && !probe.less(entries[i].section) {
		return i, true
	}
	return i, false
}

// Add registers every section of mod. Zero-size sections are invalid and
// rejected. A section whose interval is already registered for the pid is
// logged and skipped: duplicate loads show up in real traces as engine
// quirks and are deliberately tolerated.
func (m *ModuleMap) Add(mod *Module) error {
	for _, section := range mod.Sections {
		if section.Size == 0 {
			return fmt.Errorf("section %s of module %s has zero size", section, mod)
		}
		entries := m.sections[mod.Pid]
		i, found := search(entries, section)
		if found {
			log.Printf("section already loaded: %s - module %s", section, entries[i].module)
			continue
		}
		m.sections[mod.Pid] = slices.Insert(entries, i, mapEntry{section: section, module: mod})
	}
	return nil
}

// Remove drops mod's sections from its process. Sections that were never
// tracked are skipped; an entirely unknown pid is an error so that callers
// can log unload-of-unknown-module events.
func (m *ModuleMap) Remove(mod *Module) error {
	entries, ok := m.sections[mod.Pid]
	if !ok {
		return fmt.Errorf("%w: pid %d has no loaded sections", ErrAddressNotFound, mod.Pid)
	}
	for _, section := range mod.Sections {
		if i, found := search(entries, section); found {
			entries = slices.Delete(entries, i, i+1)
		}
	}
	m.sections[mod.Pid] = entries
	return nil
}

// RemovePid drops every section tracked for the given process id.
func (m *ModuleMap) RemovePid(pid uint64) {
	delete(m.sections, pid)
}

// Get returns the module owning pc in the given process. Program counters
// at or above the kernel-start threshold are looked up under pid 0.
func (m *ModuleMap) Get(pid, pc uint64) (*Module, error) {
	pid = m.translatePid(pid, pc)
	entries, ok := m.sections[pid]
	if !ok {
		return nil, fmt.Errorf("%w: unknown pid %d", ErrAddressNotFound, pid)
	}
	probe := SectionDescriptor{RuntimeLoadBase: pc, Size: 1}
	i, found := search(entries, probe)
	if !found {
		return nil, fmt.Errorf("%w: no section contains address %#x in pid %d", ErrAddressNotFound, pc, pid)
	}
	return entries[i].module, nil
}

// Clone deep-copies the section arena. Modules are immutable and stay
// shared; the per-pid entry slices are copied so that load/unload on one
// branch of a tree walk never leaks into a sibling.
func (m *ModuleMap) Clone() *ModuleMap {
	clone := &ModuleMap{
		sections:    make(map[uint64][]mapEntry, len(m.sections)),
		kernelStart: m.kernelStart,
	}
	for pid, entries := range m.sections {
		clone.sections[pid] = slices.Clone(entries)
	}
	return clone
}

func (m *ModuleMap) translatePid(pid, pc uint64) uint64 {
	if pc >= m.kernelStart {
		return 0
	}
	return pid
}
