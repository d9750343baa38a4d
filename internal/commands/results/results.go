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

package results

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kevinjin420/jaseci-llmdocs/internal/cli/format"
	"github.com/kevinjin420/jaseci-llmdocs/internal/client"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/eval"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/shared"
	"github.com/kevinjin420/jaseci-llmdocs/internal/jq"
	"github.com/kevinjin420/jaseci-llmdocs/internal/score"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store"
)

const (
	jqTimeout      = 5 * time.Second
	jqMaxInputSize = 32 << 20
)

var (
	resultsJQ        string
	resultsResponses bool
	resultsFailing   bool
)

// NewCommand creates the results command for browsing artifacts and
// their evaluations.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results [artifact-id]",
		Short: "Browse artifacts and evaluation results",
		Long: `Browse stored artifacts and their evaluation results.

Without arguments, lists every artifact in the store. With an
artifact ID, shows its stored evaluation; --responses dumps the raw
collected responses instead. A --jq expression filters the JSON form
of whatever would be shown.

Examples:
  jacbench results
  jacbench results gpt-4o-full-20250817_143022
  jacbench results gpt-4o-full-20250817_143022 --failing
  jacbench results gpt-4o-full-20250817_143022 --responses
  jacbench results gpt-4o-full-20250817_143022 --jq '.summary.overall_percentage'`,
		Args: cobra.MaximumNArgs(1),
		RunE: runResults,
	}

	cmd.Flags().StringVar(&resultsJQ, "jq", "", "Filter output with a jq expression")
	cmd.Flags().BoolVar(&resultsResponses, "responses", false, "Show raw responses instead of the evaluation")
	cmd.Flags().BoolVar(&resultsFailing, "failing", false, "Show only tests scoring below 50%")

	return cmd
}

func runResults(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := client.FromEnvironment()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		artifacts, err := c.ListArtifacts(ctx)
		if err != nil {
			return err
		}
		return renderArtifactList(ctx, artifacts)
	}

	id := args[0]

	if resultsResponses {
		artifact, err := c.GetArtifact(ctx, id)
		if err != nil {
			return err
		}
		if resultsJQ != "" || shared.GetJSON() {
			return renderJSON(ctx, "results", artifact)
		}
		return renderResponses(artifact)
	}

	result, err := c.GetEval(ctx, id)
	if err != nil {
		return err
	}

	if resultsFailing {
		failing := make([]score.TestResult, 0)
		for _, r := range result.Results {
			if r.Percentage < 50 {
				failing = append(failing, r)
			}
		}
		result.Results = failing
	}

	if resultsJQ != "" || shared.GetJSON() {
		return renderJSON(ctx, "results", result)
	}

	eval.PrintSummary(result)

	if resultsFailing {
		fmt.Printf("\n%s\n", shared.Header.Render("Failing tests"))
		if len(result.Results) == 0 {
			fmt.Println("  none")
		}
		for _, r := range result.Results {
			fmt.Printf("  %-28s %-16s L%d  %5.1f%%\n", r.TestID, r.Category, r.Level, r.Percentage)
			for _, fb := range r.Feedback {
				fmt.Printf("    %s\n", shared.Muted.Render(fb))
			}
		}
	}
	return nil
}

// renderResponses prints each collected response as a code block,
// sorted by test ID so output is stable across runs.
func renderResponses(artifact *store.Artifact) error {
	ids := make([]string, 0, len(artifact.Responses))
	for id := range artifact.Responses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	isTTY := format.IsTTY()
	for i, testID := range ids {
		block, err := format.Code(testID, artifact.Responses[testID], isTTY)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Println()
		}
		fmt.Print(block)
	}
	if len(ids) == 0 {
		fmt.Println("No responses recorded")
	}
	return nil
}

func renderArtifactList(ctx context.Context, artifacts []store.ArtifactInfo) error {
	if resultsJQ != "" || shared.GetJSON() {
		return renderJSON(ctx, "results", map[string]any{
			"artifacts": artifacts,
			"count":     len(artifacts),
		})
	}

	if len(artifacts) == 0 {
		fmt.Println("No artifacts stored")
		return nil
	}

	fmt.Printf("%-42s %-24s %-10s %-10s %s\n", "ARTIFACT", "MODEL", "VARIANT", "EVALUATED", "CREATED")
	for _, a := range artifacts {
		evaluated := shared.Muted.Render("no")
		if a.Evaluated {
			evaluated = shared.StatusOK.Render("yes")
		}
		fmt.Printf("%-42s %-24s %-10s %-10s %s\n",
			a.ID, a.Metadata.Model, a.Metadata.Variant, evaluated,
			a.Metadata.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Printf("\nTotal: %d artifact(s)\n", len(artifacts))
	return nil
}

// renderJSON writes data as JSON, applying the --jq filter when set.
// Plain JSON goes out raw; the envelope is reserved for --json mode
// without a filter, where tooling expects the command wrapper.
func renderJSON(ctx context.Context, command string, data any) error {
	if resultsJQ != "" {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		exec := jq.NewExecutor(jqTimeout, jqMaxInputSize)
		filtered, err := exec.Filter(ctx, resultsJQ, raw)
		if err != nil {
			return shared.NewInvalidRequestError(fmt.Sprintf("jq expression failed: %v", err), err)
		}
		_, err = os.Stdout.Write(append(filtered, '\n'))
		return err
	}

	if shared.GetJSON() {
		type response struct {
			shared.JSONResponse
			Data any `json:"data"`
		}
		return shared.EmitJSON(response{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: command, Success: true},
			Data:         data,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
