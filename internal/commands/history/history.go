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

package history

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kevinjin420/jaseci-llmdocs/internal/client"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/shared"
	"github.com/kevinjin420/jaseci-llmdocs/internal/history"
)

var (
	historyStatus string
	historyModel  string
	historyLimit  int
	historyOffset int
)

// NewCommand creates the history command for browsing the run registry.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse past runs",
		Long: `Browse the run registry, which outlives the live queue.

Every submitted run is recorded here with its terminal status, batch
counters, and token usage, including runs the queue has pruned.

Examples:
  jacbench history
  jacbench history --status failed
  jacbench history --model openai/gpt-4o --limit 10`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().StringVar(&historyStatus, "status", "", "Filter by terminal status")
	cmd.Flags().StringVar(&historyModel, "model", "", "Filter by model id")
	cmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum entries to show")
	cmd.Flags().IntVar(&historyOffset, "offset", 0, "Entries to skip, for paging")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	c, err := client.FromEnvironment()
	if err != nil {
		return err
	}

	entries, err := c.History(cmd.Context(), history.Filter{
		Status: historyStatus,
		Model:  historyModel,
		Limit:  historyLimit,
		Offset: historyOffset,
	})
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		type response struct {
			shared.JSONResponse
			Runs  []*history.Entry `json:"runs"`
			Count int              `json:"count"`
		}
		return shared.EmitJSON(response{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "history", Success: true},
			Runs:         entries,
			Count:        len(entries),
		})
	}

	if len(entries) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	fmt.Printf("%-30s %-24s %-10s %-12s %-10s %s\n",
		"RUN", "MODEL", "VARIANT", "STATUS", "TESTS", "CREATED")
	for _, e := range entries {
		fmt.Printf("%-30s %-24s %-10s %-12s %-10s %s\n",
			e.ID, e.Model, e.Variant,
			shared.RenderRunStatus(e.Status),
			fmt.Sprintf("%d/%d", e.CollectedTests, e.TotalTests),
			e.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Printf("\nShowing %d entries", len(entries))
	if historyOffset > 0 {
		fmt.Printf(" from offset %d", historyOffset)
	}
	fmt.Println()
	return nil
}
