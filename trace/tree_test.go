// File: trace/tree_test.go
package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTraceFile serializes items into a trace file under dir.
func writeTraceFile(t *testing.T, dir string, build func(buf *bytes.Buffer)) string {
	t.Helper()
	var buf bytes.Buffer
	build(&buf)
	path := filepath.Join(dir, TraceFileName)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestParseDirNoFiles(t *testing.T) {
	_, err := ParseDir(t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrEmptyTrace)
}

func TestParseTreeAttachesChildren(t *testing.T) {
	dir := t.TempDir()
	writeTraceFile(t, dir, func(buf *bytes.Buffer) {
		appendItem(t, buf, 1, 0, 100, newModuleLoad("prog", "/bin/prog"))
		appendItem(t, buf, 2, 0, 100, &Fork{PC: 0x401000, Children: []uint32{0, 1}})
		appendItem(t, buf, 3, 1, 100, &Call{Source: 1, Target: 2})
		appendItem(t, buf, 4, 0, 100, &Call{Source: 3, Target: 4})
	})

	tree, err := ParseDir(dir, nil)
	require.NoError(t, err)
	require.Len(t, tree, 3)

	fork := tree[1]
	require.IsType(t, &Fork{}, fork.Entry)
	require.Contains(t, fork.Children, uint32(1))
	// The forking state itself is never attached as its own child.
	assert.NotContains(t, fork.Children, uint32(0))

	child := fork.Children[1]
	require.Len(t, child, 1)
	assert.Equal(t, &Call{Source: 1, Target: 2}, child[0].Entry)

	// The parent's continuation after the fork stays in place.
	assert.Equal(t, &Call{Source: 3, Target: 4}, tree[2].Entry)
}

func TestParseTreeOrdersByTimestamp(t *testing.T) {
	dir := t.TempDir()
	writeTraceFile(t, dir, func(buf *bytes.Buffer) {
		// Same state recorded out of order, as when merged across files.
		appendItem(t, buf, 5, 0, 100, &Call{Source: 2, Target: 2})
		appendItem(t, buf, 1, 0, 100, &Call{Source: 1, Target: 1})
		appendItem(t, buf, 9, 0, 100, &Call{Source: 3, Target: 3})
	})

	tree, err := ParseDir(dir, nil)
	require.NoError(t, err)
	require.Len(t, tree, 3)
	assert.Equal(t, uint64(1), tree[0].Header.Timestamp)
	assert.Equal(t, uint64(5), tree[1].Header.Timestamp)
	assert.Equal(t, uint64(9), tree[2].Header.Timestamp)
}

func TestParseTreePathFilter(t *testing.T) {
	dir := t.TempDir()
	writeTraceFile(t, dir, func(buf *bytes.Buffer) {
		appendItem(t, buf, 1, 0, 100, &Fork{PC: 0x1000, Children: []uint32{1, 2}})
		appendItem(t, buf, 2, 0, 100, &Call{Source: 9, Target: 9})
		appendItem(t, buf, 3, 1, 100, &Call{Source: 1, Target: 1})
		appendItem(t, buf, 4, 2, 100, &Call{Source: 2, Target: 2})
	})

	tree, err := ParseDir(dir, []uint32{1})
	require.NoError(t, err)

	// State 2 forked after the requested path; its trace is dropped, and
	// the root is truncated right after the fork of interest.
	require.Len(t, tree, 1)
	fork := tree[0]
	require.Contains(t, fork.Children, uint32(1))
	assert.NotContains(t, fork.Children, uint32(2))
}

func TestParseTreeMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	for i, node := range []string{"0", "1"} {
		nodeDir := filepath.Join(dir, node)
		require.NoError(t, os.Mkdir(nodeDir, 0o755))
		ts := uint64(i + 1)
		writeTraceFile(t, nodeDir, func(buf *bytes.Buffer) {
			appendItem(t, buf, ts, 0, 100, &InstructionCount{Count: ts})
		})
	}

	tree, err := ParseDir(dir, nil)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, &InstructionCount{Count: 1}, tree[0].Entry)
	assert.Equal(t, &InstructionCount{Count: 2}, tree[1].Entry)
}
