// File: symbols/dwarf.go
//
// Description:
// Debug info strategy reading DWARF data embedded in ELF binaries, with a
// .gnu_debuglink fallback for stripped binaries whose debug data lives in
// a separate file. Compilation units are parsed lazily: a point lookup
// seeks the unit covering the address and parses just that one, so a
// multi-gigabyte kernel image is never decoded in full unless a complete
// coverage report demands it.

package symbols

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type dwarfInfo struct {
	debugIndex
	searchPaths []string

	data *dwarf.Data

	// parsedCUs records which compilation units have been decoded into
	// the index, keyed by their entry offset.
	parsedCUs map[dwarf.Offset]bool
	parsedAll bool

	sourceCache map[string]string
}

func newDwarfInfo(path string, searchPaths []string) (*dwarfInfo, error) {
	data, err := openDwarf(path)
	if err != nil {
		return nil, err
	}

	info := &dwarfInfo{
		debugIndex:  debugIndex{path: path},
		searchPaths: searchPaths,
		data:        data,
		parsedCUs:   make(map[dwarf.Offset]bool),
		sourceCache: make(map[string]string),
	}

	// An empty DWARF section decodes fine but resolves nothing; reject it
	// here so the next strategy gets a chance.
	entry, err := data.Reader().Next()
	if err != nil {
		return nil, fmt.Errorf("reading DWARF data from %s: %w", path, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("no DWARF compilation units in %s", path)
	}
	return info, nil
}

// openDwarf extracts DWARF data from the binary itself or, when the
// binary is stripped, from the separate debug file named by its
// .gnu_debuglink section.
func openDwarf(path string) (*dwarf.Data, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, dwErr := f.DWARF()
	if dwErr == nil {
		return data, nil
	}

	debugPath, ok := debugLinkFile(f, path)
	if !ok {
		return nil, fmt.Errorf("reading DWARF from %s: %w", path, dwErr)
	}
	df, err := elf.Open(debugPath)
	if err != nil {
		return nil, fmt.Errorf("opening debug file %s: %w", debugPath, err)
	}
	defer df.Close()
	return df.DWARF()
}

// debugLinkFile resolves the .gnu_debuglink section to an existing file.
// The file name is looked up next to the binary, in its .debug
// subdirectory and under /usr/lib/debug, the places gdb searches.
func debugLinkFile(f *elf.File, path string) (string, bool) {
	sec := f.Section(".gnu_debuglink")
	if sec == nil {
		return "", false
	}
	raw, err := sec.Data()
	if err != nil {
		return "", false
	}
	end := bytes.IndexByte(raw, 0)
	if end <= 0 {
		return "", false
	}
	name := string(raw[:end])

	dir := filepath.Dir(path)
	for _, candidate := range []string{
		filepath.Join(dir, name),
		filepath.Join(dir, ".debug", name),
		filepath.Join("/usr/lib/debug", dir, name),
	} {
		if candidate == path {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// ensureCU parses the compilation unit covering addr, if any.
func (d *dwarfInfo) ensureCU(addr uint64) error {
	if d.parsedAll {
		return nil
	}
	r := d.data.Reader()
	cu, err := r.SeekPC(addr)
	if err != nil {
		// Address outside every unit's ranges; the index lookup will
		// report not-found.
		return nil
	}
	return d.parseCU(cu)
}

// parseCU decodes one compilation unit's line table and function ranges
// into the index.
func (d *dwarfInfo) parseCU(cu *dwarf.Entry) error {
	if d.parsedCUs[cu.Offset] {
		return nil
	}
	d.parsedCUs[cu.Offset] = true

	if err := d.parseLines(cu); err != nil {
		return err
	}
	if err := d.parseFunctions(cu); err != nil {
		return err
	}
	d.lines.Sort()
	return nil
}

// parseLines runs the unit's line-number program. Every emitted row maps
// an address to the current file and line; end-of-sequence rows carry no
// location and are skipped.
func (d *dwarfInfo) parseLines(cu *dwarf.Entry) error {
	lr, err := d.data.LineReader(cu)
	if err != nil {
		return err
	}
	if lr == nil {
		return nil
	}
	var row dwarf.LineEntry
	for {
		if err := lr.Next(&row); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if row.EndSequence || row.File == nil {
			continue
		}
		d.lines.AddBatch(d.guessSource(row.File.Name), row.Line, row.Address)
	}
}

// parseFunctions collects subprogram ranges from the unit's children.
func (d *dwarfInfo) parseFunctions(cu *dwarf.Entry) error {
	r := d.data.Reader()
	r.Seek(cu.Offset)
	if _, err := r.Next(); err != nil {
		return err
	}
	for {
		entry, err := r.Next()
		if err != nil {
			return err
		}
		if entry == nil || entry.Tag == dwarf.TagCompileUnit {
			return nil
		}
		if entry.Tag != dwarf.TagSubprogram {
			continue
		}

		name, _ := entry.Val(dwarf.AttrName).(string)
		low, ok := entry.Val(dwarf.AttrLowpc).(uint64)
		if name == "" || !ok {
			continue
		}
		// DW_AT_high_pc is either an absolute address or an offset from
		// the low pc, depending on its form class.
		var high uint64
		switch v := entry.Val(dwarf.AttrHighpc).(type) {
		case uint64:
			high = v
		case int64:
			high = low + uint64(v)
		default:
			continue
		}
		d.funcs.Add(name, low, high)
	}
}

// parseAll decodes every compilation unit, for full coverage reports.
func (d *dwarfInfo) parseAll() error {
	if d.parsedAll {
		return nil
	}
	r := d.data.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return err
		}
		if entry == nil {
			break
		}
		if entry.Tag == dwarf.TagCompileUnit {
			if err := d.parseCU(entry); err != nil {
				return err
			}
		}
		r.SkipChildren()
	}
	d.parsedAll = true
	return nil
}

func (d *dwarfInfo) guessSource(file string) string {
	if guessed, ok := d.sourceCache[file]; ok {
		return guessed
	}
	guessed := GuessSourceFilePath(d.searchPaths, file)
	d.sourceCache[file] = guessed
	return guessed
}

// Get parses on demand before delegating to the index.
func (d *dwarfInfo) Get(addr uint64) (LineEntry, *FuncEntry, error) {
	if err := d.ensureCU(addr); err != nil {
		return LineEntry{}, nil, err
	}
	return d.debugIndex.Get(addr)
}

// Coverage parses only the units containing covered addresses when
// coveredOnly is set; otherwise every unit is decoded first.
func (d *dwarfInfo) Coverage(addrCounts map[uint64]uint64, coveredOnly bool) (FileLineCoverage, error) {
	if coveredOnly {
		for addr := range addrCounts {
			if err := d.ensureCU(addr); err != nil {
				return nil, err
			}
		}
	} else if err := d.parseAll(); err != nil {
		return nil, err
	}
	return d.coverageFromIndex(addrCounts), nil
}
