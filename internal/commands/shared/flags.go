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

package shared

import "github.com/spf13/cobra"

// Global CLI state. Bound once by the root command; subcommands read it
// through the accessors below.
var (
	verboseFlag bool
	quietFlag   bool
	jsonFlag    bool
	configFlag  string

	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// BindGlobalFlags attaches the persistent flags every jacbench command
// honors.
func BindGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	pf.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-error output")
	pf.BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	pf.StringVar(&configFlag, "config", "", "Path to config file (default: ~/.config/jacbench/jacbench.yaml)")
}

// SetVersion records build-time version information from main.
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVersion returns the recorded version, commit, and build date.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// GetVerbose reports whether --verbose was passed.
func GetVerbose() bool { return verboseFlag }

// GetQuiet reports whether --quiet was passed.
func GetQuiet() bool { return quietFlag }

// GetJSON reports whether --json was passed.
func GetJSON() bool { return jsonFlag }

// GetConfigPath returns the --config value, empty when unset.
func GetConfigPath() string { return configFlag }
