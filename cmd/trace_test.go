// File: cmd/trace_test.go
package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setrace/setrace/trace"
)

// writeTestTrace serializes entries into <dir>/s2e-last/ExecutionTracer.dat.
func writeTestTrace(t *testing.T, dir string, entries []trace.Entry) {
	t.Helper()

	var buf bytes.Buffer
	for i, e := range entries {
		payload, err := e.Encode()
		require.NoError(t, err)
		header := trace.ItemHeader{
			Timestamp: uint64(i),
			Size:      uint32(len(payload)),
			Type:      e.EntryType(),
			StateID:   0,
			Pid:       100,
		}
		raw, err := header.Encode()
		require.NoError(t, err)
		buf.Write(raw)
		buf.Write(payload)
	}

	resultsDir := filepath.Join(dir, "s2e-last")
	require.NoError(t, os.MkdirAll(resultsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(resultsDir, trace.TraceFileName),
		buf.Bytes(), 0o644))
}

func TestRunTrace(t *testing.T) {
	origProject, origFormat, origOutput := projectFlag, formatFlag, traceOutput
	defer func() { projectFlag, formatFlag, traceOutput = origProject, origFormat, origOutput }()

	dir := t.TempDir()
	writeProject(t, dir, "target_path: prog\n")
	writeTestTrace(t, dir, []trace.Entry{
		&trace.Call{Source: 0x401000, Target: 0x402000},
		&trace.Return{Source: 0x402010, Target: 0x401005},
	})

	outFile := filepath.Join(dir, "execution_trace.json")
	projectFlag = dir
	formatFlag = "json"
	traceOutput = outFile

	require.NoError(t, runTrace(traceCmd, nil))

	raw, err := os.ReadFile(outFile)
	require.NoError(t, err)

	var dump []map[string]any
	require.NoError(t, json.Unmarshal(raw, &dump))
	require.Len(t, dump, 2)
	assert.Equal(t, float64(trace.EntryCall), dump[0]["type"])
	assert.Equal(t, float64(0x401000), dump[0]["source"])
	assert.Equal(t, float64(trace.EntryReturn), dump[1]["type"])
}

func TestRunTraceEmpty(t *testing.T) {
	origProject := projectFlag
	defer func() { projectFlag = origProject }()

	dir := t.TempDir()
	writeProject(t, dir, "target_path: prog\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "s2e-last"), 0o755))

	projectFlag = dir
	err := runTrace(traceCmd, nil)
	assert.ErrorIs(t, err, trace.ErrEmptyTrace)
}
