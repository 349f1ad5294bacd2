// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// File: root.go
// Package: cmd
//
// Description:
// This file contains the entry point and base configuration for the `setrace`
// CLI. It defines the root command (`rootCmd`) that acts as the main command
// for the application and manages subcommands like `trace`, `forkprofile` and
// `coverage`. The root command also handles application-wide configuration
// and flags.
//
// Features:
// - Serves as the primary entry point for the `setrace` CLI application.
// - Defines global flags (project directory, output format).
// - Organizes and executes subcommands operating on execution traces.
//
// Usage:
// - Run the `setrace` command without any arguments to see the help message:
//   `./setrace`
// - Point it at a project directory and dump the execution tree:
//   `./setrace trace --project /path/to/project`

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
// This command provides a help message and serves as the entry point for
// executing subcommands within the `setrace` CLI.
var rootCmd = &cobra.Command{
	Use:   "setrace",
	Short: "Analysis tools for symbolic execution traces",
	Long: `The setrace CLI decodes the binary execution traces produced by a
symbolic execution engine and turns them into structured reports:
a JSON dump of the execution tree, a fork profile, and line or
basic block coverage.

Examples:
  - Dump the execution tree of the last run:
    ./setrace trace --project /path/to/project

  - Generate a fork profile:
    ./setrace forkprofile --project /path/to/project

  - Generate a line coverage report with an HTML rendering:
    ./setrace coverage lcov --project /path/to/project --html`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This function is called by main.main() to start the
// application.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initSharedFlags()
}
