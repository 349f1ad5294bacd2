// File: cmd/project.go
//
// Description:
// Project configuration. Every analysis command operates on a project
// directory containing a project.yaml that names the analysis target and
// where to look for binaries and sources. Trace and coverage files are
// read from the results directory of the last engine run, which defaults
// to <project>/s2e-last.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const projectFile = "project.yaml"

// Project describes one analysis project.
type Project struct {
	// Target is the analysis target's file name as it appears in the
	// engine's coverage records. Defaults to the base of TargetPath.
	Target string `yaml:"target"`

	// TargetPath is the path to the target binary.
	TargetPath string `yaml:"target_path"`

	// Modules lists additional module names to report coverage for.
	// Defaults to just the target.
	Modules []string `yaml:"modules"`

	// SearchPaths lists directories to search for binaries, debug files
	// and sources. Relative entries are resolved against the project
	// directory.
	SearchPaths []string `yaml:"search_paths"`

	// ResultsDir holds the engine's output (trace and coverage files).
	// Defaults to <project>/s2e-last.
	ResultsDir string `yaml:"results_dir"`

	dir string
}

// loadProject reads project.yaml from the given directory and applies the
// defaults.
func loadProject(dir string) (*Project, error) {
	raw, err := os.ReadFile(filepath.Join(dir, projectFile))
	if err != nil {
		return nil, fmt.Errorf("reading project configuration: %w", err)
	}

	p := &Project{dir: dir}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", projectFile, err)
	}

	if p.TargetPath != "" && !filepath.IsAbs(p.TargetPath) {
		p.TargetPath = filepath.Join(dir, p.TargetPath)
	}
	if p.Target == "" && p.TargetPath != "" {
		p.Target = filepath.Base(p.TargetPath)
	}
	if len(p.Modules) == 0 && p.Target != "" {
		p.Modules = []string{p.Target}
	}
	if p.ResultsDir == "" {
		p.ResultsDir = filepath.Join(dir, "s2e-last")
	} else if !filepath.IsAbs(p.ResultsDir) {
		p.ResultsDir = filepath.Join(dir, p.ResultsDir)
	}
	for i, sp := range p.SearchPaths {
		if !filepath.IsAbs(sp) {
			p.SearchPaths[i] = filepath.Join(dir, sp)
		}
	}
	return p, nil
}

// searchPaths returns the symbol search paths, always including the
// project directory itself.
func (p *Project) searchPaths() []string {
	return append([]string{p.dir}, p.SearchPaths...)
}

// requireTarget errors out for commands that cannot run without a
// configured target binary.
func (p *Project) requireTarget() error {
	if p.TargetPath == "" {
		return fmt.Errorf("%s does not set target_path", projectFile)
	}
	if _, err := os.Stat(p.TargetPath); err != nil {
		return fmt.Errorf("target binary: %w", err)
	}
	return nil
}
