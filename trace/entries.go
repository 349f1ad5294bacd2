// File: trace/entries.go
// Package: trace
//
// Description:
// Binary codec for execution-trace records. A trace file is a sequence of
// (ItemHeader, payload) pairs; the header carries the payload size and a
// type tag that selects the entry layout. All fields are little-endian and
// packed, matching the tracer plugins of the symbolic-execution engine.

// Package trace decodes and analyzes binary execution traces produced by a
// symbolic-execution engine: the record codec, the stream parser, the
// execution-tree reconstruction and the module address map maintained while
// walking the tree.
package trace

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EntryType identifies the layout of a trace entry payload. The values are
// fixed by the engine's wire format and must not be reordered.
type EntryType uint8

const (
	EntryModuleLoad     EntryType = 0
	EntryModuleUnload   EntryType = 1
	EntryProcessUnload  EntryType = 2
	EntryCall           EntryType = 3
	EntryReturn         EntryType = 4
	EntryTBStart        EntryType = 5
	EntryTBEnd          EntryType = 6
	EntryModuleDesc     EntryType = 7
	EntryFork           EntryType = 8
	EntryCacheSim       EntryType = 9
	EntryTestCase       EntryType = 10
	EntryBranchCoverage EntryType = 11
	EntryMemory         EntryType = 12
	EntryPageFault      EntryType = 13
	EntryTLBMiss        EntryType = 14
	EntryICount         EntryType = 15
	EntryMemChecker     EntryType = 16
	EntryException      EntryType = 17
	EntryStateSwitch    EntryType = 18
	EntryTBStartX64     EntryType = 19
	EntryTBEndX64       EntryType = 20
	EntryBlock          EntryType = 21
	EntryOSInfo         EntryType = 22
	EntryMax            EntryType = 23
)

var entryTypeNames = map[EntryType]string{
	EntryModuleLoad:     "module-load",
	EntryModuleUnload:   "module-unload",
	EntryProcessUnload:  "process-unload",
	EntryCall:           "call",
	EntryReturn:         "return",
	EntryTBStart:        "tb-start",
	EntryTBEnd:          "tb-end",
	EntryModuleDesc:     "module-desc",
	EntryFork:           "fork",
	EntryCacheSim:       "cachesim",
	EntryTestCase:       "testcase",
	EntryBranchCoverage: "branch-coverage",
	EntryMemory:         "memory",
	EntryPageFault:      "page-fault",
	EntryTLBMiss:        "tlb-miss",
	EntryICount:         "icount",
	EntryMemChecker:     "mem-checker",
	EntryException:      "exception",
	EntryStateSwitch:    "state-switch",
	EntryTBStartX64:     "tb-start-x64",
	EntryTBEndX64:       "tb-end-x64",
	EntryBlock:          "block",
	EntryOSInfo:         "osinfo",
}

func (t EntryType) String() string {
	if name, ok := entryTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// ItemHeader precedes every payload in the stream. Size is the exact length
// of the serialized payload that follows.
type ItemHeader struct {
	Timestamp uint64
	Size      uint32
	Type      EntryType
	StateID   uint32
	Pid       uint64
}

// HeaderSize is the encoded size of an ItemHeader. The fields are packed
// with no padding, so this is the sum of the field widths.
var HeaderSize = binary.Size(ItemHeader{})

// DecodeHeader decodes an ItemHeader from exactly HeaderSize bytes.
func DecodeHeader(data []byte) (ItemHeader, error) {
	var h ItemHeader
	if len(data) != HeaderSize {
		return h, fmt.Errorf("%w: header is %d bytes, want %d", ErrMalformedEntry, len(data), HeaderSize)
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	return h, nil
}

// Encode serializes the header.
func (h ItemHeader) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Entry is the closed set of trace payload kinds. Variable-length kinds
// additionally implement varCodec; everything else has a fixed layout that
// round-trips through encoding/binary.
type Entry interface {
	EntryType() EntryType
	Encode() ([]byte, error)
}

// varCodec is implemented by entries whose encoded size depends on runtime
// data (a length encoded in the payload itself, not in the header).
type varCodec interface {
	decodeVar(data []byte) error
}

// factories builds a zero value for every entry type the codec understands.
// Types absent from this table are skipped by the stream parser.
var factories = map[EntryType]func() Entry{
	EntryModuleLoad:     func() Entry { return &ModuleLoad{} },
	EntryModuleUnload:   func() Entry { return &ModuleUnload{} },
	EntryProcessUnload:  func() Entry { return &ProcessUnload{} },
	EntryCall:           func() Entry { return &Call{} },
	EntryReturn:         func() Entry { return &Return{} },
	EntryTBStart:        func() Entry { return &TranslationBlockStart{} },
	EntryTBEnd:          func() Entry { return &TranslationBlockEnd{} },
	EntryFork:           func() Entry { return &Fork{} },
	EntryBranchCoverage: func() Entry { return &BranchCoverage{} },
	EntryMemory:         func() Entry { return &Memory{} },
	EntryPageFault:      func() Entry { return &PageFault{} },
	EntryTLBMiss:        func() Entry { return &TLBMiss{} },
	EntryICount:         func() Entry { return &InstructionCount{} },
	EntryMemChecker:     func() Entry { return &MemChecker{} },
	EntryException:      func() Entry { return &Exception{} },
	EntryStateSwitch:    func() Entry { return &StateSwitch{} },
	EntryBlock:          func() Entry { return &Block{} },
	EntryOSInfo:         func() Entry { return &OSInfo{} },
}

// StaticSize returns the fixed encoded size of the given entry type.
// Variable-length types (fork, mem-checker) have no static size and yield
// ErrIndeterminateSize; such payloads must be decoded with the explicit
// size from the header.
func StaticSize(t EntryType) (int, error) {
	f, ok := factories[t]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEntryType, t)
	}
	e := f()
	if _, ok := e.(varCodec); ok {
		return 0, fmt.Errorf("%w: %s", ErrIndeterminateSize, t)
	}
	return binary.Size(e), nil
}

// DecodeEntry decodes one payload of the given type. The buffer must be the
// exact encoded length; short or oversized buffers fail with
// ErrMalformedEntry. Types without a codec decode to an Unknown entry that
// records only the tag and the raw byte length.
func DecodeEntry(t EntryType, data []byte) (Entry, error) {
	f, ok := factories[t]
	if !ok {
		return &Unknown{Tag: t, Length: uint32(len(data))}, nil
	}
	e := f()
	if vc, ok := e.(varCodec); ok {
		if err := vc.decodeVar(data); err != nil {
			return nil, err
		}
		return e, nil
	}
	if err := decodeFixed(e, data); err != nil {
		return nil, fmt.Errorf("cannot decode %s: %w", t, err)
	}
	return e, nil
}

func decodeFixed(e Entry, data []byte) error {
	if want := binary.Size(e); len(data) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedEntry, len(data), want)
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, e)
}

func encodeFixed(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cstring interprets a fixed-size, NUL-padded byte array.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// putCString writes s into a fixed-size, NUL-padded array, truncating if
// necessary.
func putCString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// ModuleLoad reports a binary image mapped into a process address space.
type ModuleLoad struct {
	Name         [32]byte
	Path         [256]byte
	LoadBase     uint64
	NativeBase   uint64
	Size         uint64
	AddressSpace uint64
	Pid          uint64
}

func (e *ModuleLoad) EntryType() EntryType    { return EntryModuleLoad }
func (e *ModuleLoad) Encode() ([]byte, error) { return encodeFixed(e) }

// ModuleName returns the NUL-stripped module name.
func (e *ModuleLoad) ModuleName() string { return cstring(e.Name[:]) }

// ModulePath returns the NUL-stripped module path.
func (e *ModuleLoad) ModulePath() string { return cstring(e.Path[:]) }

// SetName stores a NUL-padded module name.
func (e *ModuleLoad) SetName(name string) { putCString(e.Name[:], name) }

// SetPath stores a NUL-padded module path.
func (e *ModuleLoad) SetPath(path string) { putCString(e.Path[:], path) }

// ModuleUnload reports that a previously loaded image was unmapped.
type ModuleUnload struct {
	LoadBase     uint64
	AddressSpace uint64
	Pid          uint64
}

func (e *ModuleUnload) EntryType() EntryType    { return EntryModuleUnload }
func (e *ModuleUnload) Encode() ([]byte, error) { return encodeFixed(e) }

// ProcessUnload reports process termination with its return code.
type ProcessUnload struct {
	ReturnCode uint64
}

func (e *ProcessUnload) EntryType() EntryType    { return EntryProcessUnload }
func (e *ProcessUnload) Encode() ([]byte, error) { return encodeFixed(e) }

// Call records a function call edge.
type Call struct {
	Source uint64
	Target uint64
}

func (e *Call) EntryType() EntryType    { return EntryCall }
func (e *Call) Encode() ([]byte, error) { return encodeFixed(e) }

// Return records a function return edge.
type Return struct {
	Source uint64
	Target uint64
}

func (e *Return) EntryType() EntryType    { return EntryReturn }
func (e *Return) Encode() ([]byte, error) { return encodeFixed(e) }

// Fork records a state fork. The execution state splits into the listed
// child state ids; the payload is variable-length.
type Fork struct {
	PC       uint64
	Children []uint32
}

func (e *Fork) EntryType() EntryType { return EntryFork }

func (e *Fork) decodeVar(data []byte) error {
	if len(data) < 12 {
		return fmt.Errorf("%w: fork payload is %d bytes, want at least 12", ErrMalformedEntry, len(data))
	}
	pc := binary.LittleEndian.Uint64(data)
	count := binary.LittleEndian.Uint32(data[8:])
	if uint64(len(data)) != 12+4*uint64(count) {
		return fmt.Errorf("%w: fork payload is %d bytes for %d children", ErrMalformedEntry, len(data), count)
	}
	children := make([]uint32, count)
	for i := range children {
		children[i] = binary.LittleEndian.Uint32(data[12+4*i:])
	}
	e.PC = pc
	e.Children = children
	return nil
}

func (e *Fork) Encode() ([]byte, error) {
	buf := make([]byte, 12+4*len(e.Children))
	binary.LittleEndian.PutUint64(buf, e.PC)
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(e.Children)))
	for i, c := range e.Children {
		binary.LittleEndian.PutUint32(buf[12+4*i:], c)
	}
	return buf, nil
}

// BranchCoverage records a taken branch.
type BranchCoverage struct {
	PC     uint64
	DestPC uint64
}

func (e *BranchCoverage) EntryType() EntryType    { return EntryBranchCoverage }
func (e *BranchCoverage) Encode() ([]byte, error) { return encodeFixed(e) }

// Memory records a memory access.
type Memory struct {
	PC             uint64
	Address        uint64
	Value          uint64
	Size           uint8
	Flags          uint8
	HostAddress    uint64
	ConcreteBuffer uint64
}

func (e *Memory) EntryType() EntryType    { return EntryMemory }
func (e *Memory) Encode() ([]byte, error) { return encodeFixed(e) }

// PageFault records a guest page fault.
type PageFault struct {
	PC      uint64
	Address uint64
	IsWrite uint8
}

func (e *PageFault) EntryType() EntryType    { return EntryPageFault }
func (e *PageFault) Encode() ([]byte, error) { return encodeFixed(e) }

// TLBMiss records a guest TLB miss.
type TLBMiss struct {
	PC      uint64
	Address uint64
	IsWrite uint8
}

func (e *TLBMiss) EntryType() EntryType    { return EntryTLBMiss }
func (e *TLBMiss) Encode() ([]byte, error) { return encodeFixed(e) }

// InstructionCount records the number of instructions executed so far.
type InstructionCount struct {
	Count uint64
}

func (e *InstructionCount) EntryType() EntryType    { return EntryICount }
func (e *InstructionCount) Encode() ([]byte, error) { return encodeFixed(e) }

// MemChecker flag bits.
const (
	MemCheckerGrant    = 1 << 0
	MemCheckerRevoke   = 1 << 1
	MemCheckerRead     = 1 << 2
	MemCheckerWrite    = 1 << 3
	MemCheckerExecute  = 1 << 4
	MemCheckerResource = 1 << 5
)

// MemChecker records a memory-checker event over a named region. The name
// is length-prefixed, so the payload is variable-length.
type MemChecker struct {
	Start uint64
	Size  uint32
	Flags uint32
	Name  string
}

func (e *MemChecker) EntryType() EntryType { return EntryMemChecker }

func (e *MemChecker) decodeVar(data []byte) error {
	if len(data) < 20 {
		return fmt.Errorf("%w: mem-checker payload is %d bytes, want at least 20", ErrMalformedEntry, len(data))
	}
	nameLen := binary.LittleEndian.Uint32(data[16:])
	if uint64(len(data)) != 20+uint64(nameLen) {
		return fmt.Errorf("%w: mem-checker payload is %d bytes for a %d byte name", ErrMalformedEntry, len(data), nameLen)
	}
	e.Start = binary.LittleEndian.Uint64(data)
	e.Size = binary.LittleEndian.Uint32(data[8:])
	e.Flags = binary.LittleEndian.Uint32(data[12:])
	e.Name = string(data[20:])
	return nil
}

func (e *MemChecker) Encode() ([]byte, error) {
	buf := make([]byte, 20+len(e.Name))
	binary.LittleEndian.PutUint64(buf, e.Start)
	binary.LittleEndian.PutUint32(buf[8:], e.Size)
	binary.LittleEndian.PutUint32(buf[12:], e.Flags)
	binary.LittleEndian.PutUint32(buf[16:], uint32(len(e.Name)))
	copy(buf[20:], e.Name)
	return buf, nil
}

// Exception records a CPU exception.
type Exception struct {
	PC     uint64
	Vector uint32
}

func (e *Exception) EntryType() EntryType    { return EntryException }
func (e *Exception) Encode() ([]byte, error) { return encodeFixed(e) }

// StateSwitch records the scheduler switching to another execution state.
type StateSwitch struct {
	NewStateID uint32
}

func (e *StateSwitch) EntryType() EntryType    { return EntryStateSwitch }
func (e *StateSwitch) Encode() ([]byte, error) { return encodeFixed(e) }

// Translation block types.
const (
	TBDefault uint8 = iota
	TBJmp
	TBJmpInd
	TBCondJmp
	TBCondJmpInd
	TBCall
	TBCallInd
	TBRep
	TBRet
)

// TranslationBlockStart records the state of the CPU when a translated
// block starts executing.
type TranslationBlockStart struct {
	PC        uint64
	TargetPC  uint64
	Size      uint32
	TBType    uint8
	Flags     uint8
	SymbMask  uint8
	Registers [8]uint64
}

func (e *TranslationBlockStart) EntryType() EntryType    { return EntryTBStart }
func (e *TranslationBlockStart) Encode() ([]byte, error) { return encodeFixed(e) }

// TranslationBlockEnd records the state of the CPU when a translated block
// finishes executing. The layout matches TranslationBlockStart; only the
// header tag differs.
type TranslationBlockEnd struct {
	PC        uint64
	TargetPC  uint64
	Size      uint32
	TBType    uint8
	Flags     uint8
	SymbMask  uint8
	Registers [8]uint64
}

func (e *TranslationBlockEnd) EntryType() EntryType    { return EntryTBEnd }
func (e *TranslationBlockEnd) Encode() ([]byte, error) { return encodeFixed(e) }

// Block records the boundaries of an executed basic block.
type Block struct {
	StartPC uint64
	EndPC   uint64
	TBType  uint8
}

func (e *Block) EntryType() EntryType    { return EntryBlock }
func (e *Block) Encode() ([]byte, error) { return encodeFixed(e) }

// OSInfo reports guest OS parameters, currently the virtual address where
// kernel space begins. Program counters at or above it belong to the kernel
// regardless of the reporting process.
type OSInfo struct {
	KernelStart uint64
}

func (e *OSInfo) EntryType() EntryType    { return EntryOSInfo }
func (e *OSInfo) Encode() ([]byte, error) { return encodeFixed(e) }

// Unknown stands in for entry types the codec does not understand. It keeps
// only the tag and the raw payload length; the bytes themselves are
// discarded by the parser.
type Unknown struct {
	Tag    EntryType
	Length uint32
}

func (e *Unknown) EntryType() EntryType { return e.Tag }

func (e *Unknown) Encode() ([]byte, error) {
	return nil, fmt.Errorf("%w: cannot encode entry type %s", ErrUnknownEntryType, e.Tag)
}
