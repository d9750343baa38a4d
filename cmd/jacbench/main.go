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

package main

import (
	"github.com/kevinjin420/jaseci-llmdocs/internal/cli"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/cancel"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/collections"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/compare"
	evalcmd "github.com/kevinjin420/jaseci-llmdocs/internal/commands/eval"
	historycmd "github.com/kevinjin420/jaseci-llmdocs/internal/commands/history"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/rerun"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/results"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/run"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/secrets"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/setup"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/status"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/variants"
	versioncmd "github.com/kevinjin420/jaseci-llmdocs/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Set version information from build-time ldflags
	cli.SetVersion(version, commit, buildDate)

	// Create root command and add subcommands
	rootCmd := cli.NewRootCommand()

	// Benchmark lifecycle commands
	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(status.NewCommand())
	rootCmd.AddCommand(cancel.NewCommand())
	rootCmd.AddCommand(rerun.NewCommand())

	// Evaluation and results commands
	rootCmd.AddCommand(evalcmd.NewCommand())
	rootCmd.AddCommand(results.NewCommand())
	rootCmd.AddCommand(collections.NewCommand())
	rootCmd.AddCommand(compare.NewCommand())

	// Catalog and registry commands
	rootCmd.AddCommand(variants.NewCommand())
	rootCmd.AddCommand(historycmd.NewCommand())

	// Configuration and security
	rootCmd.AddCommand(setup.NewCommand())
	rootCmd.AddCommand(secrets.NewCommand())

	// Version command
	rootCmd.AddCommand(versioncmd.NewCommand())

	// Custom help command with JSON support
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
