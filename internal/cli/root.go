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

package cli

import (
	"github.com/spf13/cobra"

	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for jacbench
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jacbench",
		Short: "jacbench - LLM documentation benchmarks for Jac",
		Long: `jacbench measures how well LLM-generated Jac code holds up under
different documentation variants. It submits benchmark runs to the
jacbenchd daemon, follows batches as they execute, and scores the
generated code for forbidden patterns, syntax validity, and compilation.

Run 'jacbench setup' to configure a provider and API key.
Run 'jacbench run' to benchmark a model against a documentation variant.`,
		// Errors are rendered by HandleExitError so exit codes stay
		// consistent; cobra's own reporting would double-print them.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	shared.BindGlobalFlags(cmd)

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
