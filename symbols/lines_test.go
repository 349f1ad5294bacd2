// File: symbols/lines_test.go
package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setrace/setrace/trace"
)

func TestLineIndexGet(t *testing.T) {
	var idx LineIndex
	idx.Add("b.c", 20, 0x2000)
	idx.Add("a.c", 10, 0x1000)
	idx.Add("a.c", 11, 0x1010)

	tests := []struct {
		addr     uint64
		wantFile string
		wantLine int
	}{
		{0x1000, "a.c", 10},
		{0x100f, "a.c", 10}, // rightmost entry at or below
		{0x1010, "a.c", 11},
		{0x1fff, "a.c", 11},
		{0x2000, "b.c", 20},
		{0x9000, "b.c", 20},
	}
	for _, tt := range tests {
		e, err := idx.Get(tt.addr)
		require.NoError(t, err)
		assert.Equal(t, tt.wantFile, e.File, "addr %#x", tt.addr)
		assert.Equal(t, tt.wantLine, e.Line, "addr %#x", tt.addr)
	}

	_, err := idx.Get(0xfff)
	assert.ErrorIs(t, err, trace.ErrAddressNotFound)
}

func TestLineIndexBatchSort(t *testing.T) {
	var idx LineIndex
	idx.AddBatch("a.c", 2, 0x2000)
	idx.AddBatch("a.c", 1, 0x1000)
	idx.Sort()

	e, err := idx.Get(0x1500)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Line)
	assert.Equal(t, 2, idx.Len())
}

func TestFuncIndexGet(t *testing.T) {
	var idx FuncIndex
	idx.Add("main", 0x1000, 0x1100)
	idx.Add("helper", 0x1100, 0x1180)

	fn, err := idx.Get(0x1000)
	require.NoError(t, err)
	assert.Equal(t, "main", fn.Name)

	fn, err = idx.Get(0x10ff)
	require.NoError(t, err)
	assert.Equal(t, "main", fn.Name)

	fn, err = idx.Get(0x1100)
	require.NoError(t, err)
	assert.Equal(t, "helper", fn.Name)

	// The end of a range is exclusive, and gaps are not covered.
	_, err = idx.Get(0x1180)
	assert.ErrorIs(t, err, trace.ErrAddressNotFound)
	_, err = idx.Get(0xfff)
	assert.ErrorIs(t, err, trace.ErrAddressNotFound)
}
