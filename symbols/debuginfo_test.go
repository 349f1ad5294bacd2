// File: symbols/debuginfo_test.go
package symbols

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSidecarFixture creates a fake target binary (not a valid ELF, so
// the DWARF strategy fails) with a .lines sidecar next to it.
func writeSidecarFixture(t *testing.T, dir, name, sidecar string) string {
	t.Helper()
	target := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(target, []byte("not an elf"), 0o755))
	require.NoError(t, os.WriteFile(target+linesSuffix, []byte(sidecar), 0o644))
	return target
}

func TestFromFileFallsBackToSidecar(t *testing.T) {
	SetRunner(failRunner{})
	defer SetRunner(ExecRunner{})

	dir := t.TempDir()
	target := writeSidecarFixture(t, dir, "prog",
		`{"a.c": [[10, [4096, 4097]], [11, [4112]]]}`)

	info, err := FromFile(nil, target)
	require.NoError(t, err)

	line, fn, err := info.Get(0x1001)
	require.NoError(t, err)
	assert.Equal(t, "a.c", line.File)
	assert.Equal(t, 10, line.Line)
	assert.Nil(t, fn) // sidecars carry no function ranges

	cov, err := info.Coverage(map[uint64]uint64{0x1000: 2, 0x1001: 1}, false)
	require.NoError(t, err)
	assert.Equal(t, FileLineCoverage{"a.c": {10: 2, 11: 0}}, cov)
}

func TestFromFileNoDebugInfo(t *testing.T) {
	SetRunner(failRunner{})
	defer SetRunner(ExecRunner{})

	dir := t.TempDir()
	target := filepath.Join(dir, "prog")
	require.NoError(t, os.WriteFile(target, []byte("not an elf"), 0o755))

	_, err := FromFile(nil, target)
	require.ErrorIs(t, err, ErrNoDebugInfo)
	// The error names the target so the user knows which binary to fix.
	assert.Contains(t, err.Error(), target)
}

func TestManagerResolvesByBaseName(t *testing.T) {
	SetRunner(failRunner{})
	defer SetRunner(ExecRunner{})

	dir := t.TempDir()
	writeSidecarFixture(t, dir, "prog.exe", `{"a.c": [[10, [4096]]]}`)

	m := NewManager(dir)

	// The trace records the guest path; the manager finds the local copy
	// under its search paths.
	line, _, err := m.Get(`C:\guest\prog.exe`, 0x1000)
	require.NoError(t, err)
	assert.Equal(t, 10, line.Line)

	cov, err := m.Coverage(`C:\guest\prog.exe`, map[uint64]uint64{0x1000: 4}, false)
	require.NoError(t, err)
	assert.Equal(t, FileLineCoverage{"a.c": {10: 4}}, cov)
}

func TestManagerCachesNegativeResults(t *testing.T) {
	SetRunner(failRunner{})
	defer SetRunner(ExecRunner{})

	m := NewManager(t.TempDir())

	_, _, err := m.Get("missing", 0x1000)
	require.ErrorIs(t, err, ErrNoDebugInfo)

	// The second lookup is answered from the cache.
	_, _, err = m.Get("missing", 0x1000)
	require.ErrorIs(t, err, ErrNoDebugInfo)
	assert.Len(t, m.targets, 1)
}
