// Copyright 2025 Tom Barlow
//
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

/*
Package cli provides the root command and shared configuration for the
jacbench CLI.

This package creates the main Cobra command tree and handles global
concerns like version information, persistent flags, and error handling.
Individual commands are implemented in the internal/commands subpackages.

# Command Tree

The CLI is organized as:

	jacbench
	├── run           Submit a benchmark run and follow it
	├── status        Show live runs or one run in detail
	├── cancel        Cancel a run or everything
	├── rerun         Rerun one failed batch of a live run
	├── eval          Score an artifact
	├── results       Browse artifacts and evaluations
	├── collections   Group artifacts and aggregate scores
	├── compare       Compare two collections
	├── variants      List documentation variants
	├── history       Query the run registry
	├── setup         Interactive provider setup
	├── secrets       Secret management
	├── version       Show version
	└── help          Show help

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	// ... add commands ...
	if err := rootCmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

All commands inherit these flags:

	--verbose, -v    Enable verbose output
	--quiet, -q      Suppress non-error output
	--json           Output in JSON format
	--config         Path to config file

# Error Handling

Errors are handled centrally to ensure proper exit codes:

  - Exit 0: Success
  - Exit 1: General error
  - Exit 2: Invalid usage

Use HandleExitError for consistent error handling:

	if err := cmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}
*/
package cli
