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

package compare

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kevinjin420/jaseci-llmdocs/internal/client"
	"github.com/kevinjin420/jaseci-llmdocs/internal/collection"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/shared"
)

// NewCommand creates the compare command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <collection-a> <collection-b>",
		Short: "Compare two collections",
		Long: `Compare the aggregate scores of two collections.

Deltas are the second collection minus the first, overall and per
category. Collections may differ in model or variant; that is the
point of comparing them.

Examples:
  jacbench compare gpt4o-full gpt4o-compact
  jacbench compare gpt4o-full claude-full --json`,
		Args: cobra.ExactArgs(2),
		RunE: runCompare,
	}
}

func runCompare(cmd *cobra.Command, args []string) error {
	c, err := client.FromEnvironment()
	if err != nil {
		return err
	}

	cmp, err := c.Compare(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		type response struct {
			shared.JSONResponse
			Comparison *collection.Comparison `json:"comparison"`
		}
		return shared.EmitJSON(response{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "compare", Success: true},
			Comparison:   cmp,
		})
	}

	printComparison(cmp)
	return nil
}

func printComparison(cmp *collection.Comparison) {
	fmt.Printf("%-24s %24s %24s\n", "", cmp.First.Name, cmp.Second.Name)
	fmt.Printf("%-24s %17s/%s %17s/%s\n", shared.RenderLabel("Config"),
		cmp.First.Model, cmp.First.Variant, cmp.Second.Model, cmp.Second.Variant)
	fmt.Printf("%-24s %21d/%d %21d/%d\n", shared.RenderLabel("Evaluated"),
		cmp.First.Evaluated, cmp.First.Artifacts, cmp.Second.Evaluated, cmp.Second.Artifacts)
	fmt.Printf("%-24s %23.2f%% %23.2f%%\n", shared.RenderLabel("Mean"),
		cmp.First.Mean, cmp.Second.Mean)

	fmt.Printf("\n%s %s\n", shared.RenderLabel("Overall delta:"), renderDelta(cmp.MeanDelta))

	if len(cmp.CategoryDeltas) > 0 {
		fmt.Printf("\n%s\n", shared.Header.Render("Category deltas"))
		for _, name := range collection.SortedCategories(cmp.CategoryDeltas) {
			fmt.Printf("  %-22s %s\n", name, renderDelta(cmp.CategoryDeltas[name]))
		}
	}
}

func renderDelta(d float64) string {
	s := fmt.Sprintf("%+.2f%%", d)
	switch {
	case d > 0:
		return shared.StatusOK.Render(s)
	case d < 0:
		return shared.StatusError.Render(s)
	default:
		return shared.Muted.Render(s)
	}
}
