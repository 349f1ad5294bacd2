// File: symbols/paths.go
//
// Description:
// Path-guessing helpers. Debug info frequently records source paths that
// are relative, Windows-style, or rooted on the build machine; these
// routines search a caller-supplied list of search roots (walking up
// parent directories and stripping prefixes) to find the file on the local
// machine. Results are normalized because downstream coverage formats
// (lcov) reject paths containing ./ or ../ components.

package symbols

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// convertPathToUnix rewrites a Windows path (backslashes, drive letter)
// into slash form so it can be matched against local paths.
func convertPathToUnix(path string) string {
	if !strings.Contains(path, `\`) {
		return path
	}
	path = strings.ReplaceAll(path, `\`, "/")
	if len(path) >= 3 && path[1:3] == ":/" {
		path = path[2:]
	}
	return path
}

// GuessTargetPath finds a binary in the given search paths. To accommodate
// binaries recorded on Windows guests, the lower-case variants of the path
// and of its base name are tried as well.
func GuessTargetPath(searchPaths []string, target string) (string, error) {
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	target = convertPathToUnix(target)
	target = strings.TrimPrefix(target, "/")

	base := filepath.Base(target)
	candidates := []string{target, base}
	if lower := strings.ToLower(target); lower != target {
		candidates = append(candidates, lower)
	}
	if lower := strings.ToLower(base); lower != base {
		candidates = append(candidates, lower)
	}

	var tried []string
	for _, c := range candidates {
		for _, sp := range searchPaths {
			p := filepath.Join(sp, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
			tried = append(tried, p)
		}
	}
	return "", fmt.Errorf("could not find %s (tried %s)", target, strings.Join(tried, ", "))
}

// guessRelPath looks for path under each search root, walking up the
// parent directories of the root until the path resolves.
func guessRelPath(searchPaths []string, path string) (string, bool) {
	for _, sp := range searchPaths {
		cur := sp
		for cur != "" && cur != "/" && cur != "." {
			test := filepath.Join(cur, path)
			if _, err := os.Stat(test); err == nil {
				return filepath.Clean(test), true
			}
			cur = filepath.Dir(cur)
		}
	}
	return "", false
}

// GuessSourceFilePath resolves a source path recorded in debug info
// against the local filesystem.
//
// Relative paths are searched under every search root and all of its
// parents. Absolute paths that do not exist have their leading components
// stripped one by one until a suffix matches: sources are routinely built
// on another machine under a different prefix. The result is normalized;
// if nothing resolves, the path is returned as recorded.
func GuessSourceFilePath(searchPaths []string, path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}

	original := path
	path = convertPathToUnix(path)

	if filepath.IsAbs(path) {
		components := strings.Split(strings.TrimPrefix(filepath.Clean(path), "/"), "/")
		for i := range components {
			suffix := filepath.Join(components[i:]...)
			if guessed, ok := guessRelPath(searchPaths, suffix); ok {
				return guessed
			}
		}
		return original
	}

	if guessed, ok := guessRelPath(searchPaths, filepath.Clean(path)); ok {
		return guessed
	}
	return original
}
