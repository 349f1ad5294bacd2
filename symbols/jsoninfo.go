// File: symbols/jsoninfo.go
//
// Description:
// Debug info strategy reading a <binary>.lines JSON sidecar. The sidecar
// maps source file -> [[line, [address, ...]], ...] and is the usual
// route for binaries whose native debug format cannot be parsed here,
// such as PDB-derived data for Windows targets.

package symbols

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const linesSuffix = ".lines"

type jsonInfo struct {
	debugIndex
}

// sidecarLines is the sidecar file format. Each line pair is
// [line, [address, ...]].
type sidecarLines map[string][][2]json.RawMessage

func newJSONInfo(path string, searchPaths []string) (*jsonInfo, error) {
	sidecar, err := findSidecar(path, searchPaths)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(sidecar)
	if err != nil {
		return nil, err
	}

	var dump sidecarLines
	if err := json.Unmarshal(raw, &dump); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", sidecar, err)
	}

	info := &jsonInfo{debugIndex: debugIndex{path: path}}
	for file, pairs := range dump {
		file = GuessSourceFilePath(searchPaths, file)
		for _, pair := range pairs {
			var line int
			if err := json.Unmarshal(pair[0], &line); err != nil {
				return nil, fmt.Errorf("decoding %s line number: %w", sidecar, err)
			}
			var addrs []uint64
			if err := json.Unmarshal(pair[1], &addrs); err != nil {
				return nil, fmt.Errorf("decoding %s addresses: %w", sidecar, err)
			}
			for _, addr := range addrs {
				info.lines.AddBatch(file, line, addr)
			}
		}
	}
	if info.lines.Len() == 0 {
		return nil, fmt.Errorf("no line information in %s", sidecar)
	}
	info.lines.Sort()
	return info, nil
}

// findSidecar looks for the sidecar next to the binary, then by base name
// under the search paths.
func findSidecar(path string, searchPaths []string) (string, error) {
	candidates := []string{path + linesSuffix}
	base := filepath.Base(path) + linesSuffix
	for _, sp := range searchPaths {
		candidates = append(candidates, filepath.Join(sp, base))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no %s sidecar for %s", linesSuffix, path)
}
