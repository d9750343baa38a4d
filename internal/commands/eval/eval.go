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

package eval

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kevinjin420/jaseci-llmdocs/internal/client"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/shared"
	"github.com/kevinjin420/jaseci-llmdocs/internal/score"
)

// NewCommand creates the eval command for scoring artifacts.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <artifact-id>",
		Short: "Evaluate an artifact",
		Long: `Score an artifact's responses against the test suite.

Evaluation is deterministic and idempotent: an already evaluated
artifact returns its stored result without re-scoring. The daemon
also evaluates completed runs automatically, so this command mainly
re-surfaces scores and fills gaps after partial runs.

Examples:
  jacbench eval gpt-4o-full-20250817_143022
  jacbench eval gpt-4o-full-20250817_143022 --json`,
		Args: cobra.ExactArgs(1),
		RunE: runEval,
	}
}

func runEval(cmd *cobra.Command, args []string) error {
	c, err := client.FromEnvironment()
	if err != nil {
		return err
	}

	// Scoring shells out to jac check per test, so a first evaluation can
	// take a while on large artifacts.
	var spinner *shared.Spinner
	if !shared.GetJSON() && !shared.GetQuiet() {
		spinner = shared.NewSpinner()
		spinner.Start("Evaluating " + args[0])
	}

	result, err := c.Evaluate(cmd.Context(), args[0])
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		type response struct {
			shared.JSONResponse
			Result *score.EvalResult `json:"result"`
		}
		return shared.EmitJSON(response{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "eval", Success: true},
			Result:       result,
		})
	}

	PrintSummary(result)
	return nil
}

// PrintSummary renders an evaluation summary in the shared table style.
// The results command reuses it for stored evaluations.
func PrintSummary(result *score.EvalResult) {
	s := result.Summary

	fmt.Printf("%s %s\n", shared.RenderLabel("Artifact:"), result.ArtifactID)
	fmt.Printf("%s %.1f/%d (%.1f%%)\n", shared.RenderLabel("Score:"),
		s.TotalScore, s.TotalMax, s.OverallPercentage)
	fmt.Printf("%s %d/%d tests answered\n", shared.RenderLabel("Coverage:"),
		s.TestsCompleted, s.TestsTotal)

	if len(s.Categories) > 0 {
		fmt.Printf("\n%s\n", shared.Header.Render("By category"))
		for _, name := range sortedKeys(s.Categories) {
			e := s.Categories[name]
			fmt.Printf("  %-22s %6.1f/%-4d %5.1f%%  (%d tests)\n",
				name, e.Score, e.Max, e.Percentage, e.Count)
		}
	}

	if len(s.Levels) > 0 {
		fmt.Printf("\n%s\n", shared.Header.Render("By level"))
		for _, key := range score.SortedLevelKeys(s.Levels) {
			e := s.Levels[key]
			fmt.Printf("  %-22s %6.1f/%-4d %5.1f%%  (%d tests)\n",
				key, e.Score, e.Max, e.Percentage, e.Count)
		}
	}

	p := s.TotalPenalties
	if p.Missing+p.Required+p.Forbidden+p.Syntax+p.JacCheck > 0 {
		fmt.Printf("\n%s missing %.1f, required %.1f, forbidden %.1f, syntax %.1f, jac_check %.1f\n",
			shared.RenderLabel("Penalties:"),
			p.Missing, p.Required, p.Forbidden, p.Syntax, p.JacCheck)
	}
}

func sortedKeys(m map[string]score.BreakdownEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
