// File: cmd/output.go
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// renderOutput serializes a result in the format selected by --format.
func renderOutput(v any) ([]byte, error) {
	if err := validateFormat(formatFlag); err != nil {
		return nil, err
	}

	var output []byte
	var err error
	if formatFlag == "json" {
		output, err = json.MarshalIndent(v, "", "  ")
	} else {
		output, err = yaml.Marshal(v)
	}
	if err != nil {
		return nil, fmt.Errorf("output: failed to generate: %w", err)
	}
	return output, nil
}

// writeOutput prints a result to stdout or, when path is non-empty,
// writes it to a file.
func writeOutput(v any, path string) error {
	output, err := renderOutput(v)
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Println(string(output))
		return nil
	}
	return os.WriteFile(path, append(output, '\n'), 0o644)
}
