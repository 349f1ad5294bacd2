// File: coverage/lcov_test.go
package coverage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setrace/setrace/symbols"
)

func TestWriteLCOV(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(src, []byte("int main() {}\n"), 0o644))

	cov := symbols.FileLineCoverage{
		src: {1: 0, 2: 5},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteLCOV(&buf, cov))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "TN:\n"))
	assert.Contains(t, out, "SF:"+src+"\n")
	assert.Contains(t, out, "DA:1,0\n")
	assert.Contains(t, out, "DA:2,5\n")
	assert.Contains(t, out, "LH:1\n")
	assert.Contains(t, out, "LF:2\n")
	assert.Contains(t, out, "end_of_record\n")
}

func TestWriteLCOVSkipsMissingSources(t *testing.T) {
	cov := symbols.FileLineCoverage{
		"/no/such/source.c": {1: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteLCOV(&buf, cov))

	// genhtml aborts on missing source files, so the record is dropped.
	assert.Equal(t, "TN:\n", buf.String())
}

func TestSaveLCOV(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(src, []byte("x\n"), 0o644))

	out := filepath.Join(dir, "coverage.info")
	require.NoError(t, SaveLCOV(out, symbols.FileLineCoverage{src: {1: 2}}))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "DA:1,2\n")
}
