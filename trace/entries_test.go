// File: trace/entries_test.go
package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderSize(t *testing.T) {
	// u64 + u32 + u8 + u32 + u64, packed.
	assert.Equal(t, 25, HeaderSize)
}

func TestHeaderRoundTrip(t *testing.T) {
	h := ItemHeader{
		Timestamp: 0x1122334455667788,
		Size:      328,
		Type:      EntryModuleLoad,
		StateID:   42,
		Pid:       1234,
	}

	raw, err := h.Encode()
	require.NoError(t, err)
	require.Len(t, raw, HeaderSize)

	decoded, err := DecodeHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestHeaderDecodeWrongSize(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func newModuleLoad(name, path string) *ModuleLoad {
	e := &ModuleLoad{
		LoadBase:     0x400000,
		NativeBase:   0x1000,
		Size:         0x2000,
		AddressSpace: 0x33000,
		Pid:          1234,
	}
	e.SetName(name)
	e.SetPath(path)
	return e
}

func TestEntryRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{"module-load", newModuleLoad("prog", "/home/user/prog")},
		{"module-load-empty-name", newModuleLoad("", "")},
		{"module-unload", &ModuleUnload{LoadBase: 0x400000, AddressSpace: 0x33000, Pid: 1234}},
		{"process-unload", &ProcessUnload{ReturnCode: 1}},
		{"call", &Call{Source: 0x401000, Target: 0x402000}},
		{"return", &Return{Source: 0x402010, Target: 0x401005}},
		{"fork-no-children", &Fork{PC: 0x401050, Children: []uint32{}}},
		{"fork-one-child", &Fork{PC: 0x401050, Children: []uint32{1}}},
		{"fork-many-children", &Fork{PC: 0x401050, Children: []uint32{1, 2, 3, 4, 5, 6, 7, 8}}},
		{"branch-coverage", &BranchCoverage{PC: 0x401000, DestPC: 0x401100}},
		{"memory", &Memory{PC: 0x401000, Address: 0x7fff0000, Value: 0xdead, Size: 4, Flags: 1, HostAddress: 0x12345, ConcreteBuffer: 0x54321}},
		{"page-fault", &PageFault{PC: 0x401000, Address: 0x7fff0000, IsWrite: 1}},
		{"tlb-miss", &TLBMiss{PC: 0x401000, Address: 0x7fff0000, IsWrite: 0}},
		{"icount", &InstructionCount{Count: 1 << 40}},
		{"mem-checker", &MemChecker{Start: 0x8000, Size: 64, Flags: MemCheckerGrant | MemCheckerRead, Name: "heap:main"}},
		{"mem-checker-empty-name", &MemChecker{Start: 0x8000, Size: 64, Flags: MemCheckerRevoke, Name: ""}},
		{"exception", &Exception{PC: 0x401000, Vector: 14}},
		{"state-switch", &StateSwitch{NewStateID: 7}},
		{"tb-start", &TranslationBlockStart{PC: 0x401000, TargetPC: 0x401040, Size: 64, TBType: TBCondJmp, Flags: 1, SymbMask: 0x3, Registers: [8]uint64{1, 2, 3, 4, 5, 6, 7, 8}}},
		{"tb-end", &TranslationBlockEnd{PC: 0x401000, TargetPC: 0x401040, Size: 64, TBType: TBRet, Registers: [8]uint64{8, 7, 6, 5, 4, 3, 2, 1}}},
		{"block", &Block{StartPC: 0x401000, EndPC: 0x401040, TBType: TBCall}},
		{"osinfo", &OSInfo{KernelStart: 0xffff800000000000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.entry.Encode()
			require.NoError(t, err)

			decoded, err := DecodeEntry(tt.entry.EntryType(), raw)
			require.NoError(t, err)
			assert.Equal(t, tt.entry, decoded)
		})
	}
}

func TestModuleLoadNameHandling(t *testing.T) {
	e := newModuleLoad("prog", "/home/user/prog")
	assert.Equal(t, "prog", e.ModuleName())
	assert.Equal(t, "/home/user/prog", e.ModulePath())

	// Over-long names are truncated to the fixed field width.
	long := strings.Repeat("x", 64)
	e.SetName(long)
	assert.Equal(t, long[:32], e.ModuleName())
}

func TestStaticSize(t *testing.T) {
	size, err := StaticSize(EntryModuleLoad)
	require.NoError(t, err)
	assert.Equal(t, 32+256+5*8, size)

	size, err = StaticSize(EntryCall)
	require.NoError(t, err)
	assert.Equal(t, 16, size)

	_, err = StaticSize(EntryFork)
	assert.ErrorIs(t, err, ErrIndeterminateSize)

	_, err = StaticSize(EntryMemChecker)
	assert.ErrorIs(t, err, ErrIndeterminateSize)

	_, err = StaticSize(EntryTestCase)
	assert.ErrorIs(t, err, ErrUnknownEntryType)
}

func TestDecodeEntrySizeMismatch(t *testing.T) {
	_, err := DecodeEntry(EntryCall, make([]byte, 15))
	assert.ErrorIs(t, err, ErrMalformedEntry)

	_, err = DecodeEntry(EntryCall, make([]byte, 17))
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestDecodeForkMalformed(t *testing.T) {
	// Shorter than pc + count.
	_, err := DecodeEntry(EntryFork, make([]byte, 11))
	assert.ErrorIs(t, err, ErrMalformedEntry)

	// Count says two children but only one is present.
	fork := &Fork{PC: 1, Children: []uint32{1, 2}}
	raw, err := fork.Encode()
	require.NoError(t, err)
	_, err = DecodeEntry(EntryFork, raw[:len(raw)-4])
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestDecodeUnknownType(t *testing.T) {
	entry, err := DecodeEntry(EntryTestCase, make([]byte, 17))
	require.NoError(t, err)

	unknown, ok := entry.(*Unknown)
	require.True(t, ok)
	assert.Equal(t, EntryTestCase, unknown.Tag)
	assert.Equal(t, uint32(17), unknown.Length)

	_, err = unknown.Encode()
	assert.ErrorIs(t, err, ErrUnknownEntryType)
}
