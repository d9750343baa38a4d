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

package rerun

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kevinjin420/jaseci-llmdocs/internal/client"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/shared"
	"github.com/kevinjin420/jaseci-llmdocs/internal/runner"
)

var rerunWait bool

// NewCommand creates the rerun command for retrying failed batches.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rerun <run-id> <batch>",
		Short: "Rerun a failed batch",
		Long: `Rerun a single failed batch of a live run.

The batch gets a fresh retry budget and its new responses replace the
originals in the run's final artifact. Terminal runs cannot be
amended; resubmit those with 'jacbench run' instead.

Examples:
  jacbench rerun run-01j9... 3
  jacbench rerun run-01j9... 3 --wait`,
		Args: cobra.ExactArgs(2),
		RunE: runRerun,
	}

	cmd.Flags().BoolVar(&rerunWait, "wait", false, "Poll until the rerun batch finishes")

	return cmd
}

func runRerun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id := args[0]
	batch, err := strconv.Atoi(args[1])
	if err != nil || batch < 1 {
		return shared.NewInvalidRequestError(
			fmt.Sprintf("batch must be a positive integer, got %q", args[1]), err)
	}

	c, err := client.FromEnvironment()
	if err != nil {
		return err
	}

	if err := c.RerunBatch(ctx, id, batch); err != nil {
		return err
	}

	if shared.GetJSON() {
		type response struct {
			shared.JSONResponse
			RunID string `json:"run_id"`
			Batch int    `json:"batch"`
		}
		return shared.EmitJSON(response{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "rerun", Success: true},
			RunID:        id,
			Batch:        batch,
		})
	}

	fmt.Printf("%s\n", shared.RenderOK(fmt.Sprintf("Rerunning batch %d of %s", batch, id)))

	if !rerunWait {
		return nil
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		snap, err := c.GetRun(ctx, id)
		if err != nil {
			return err
		}
		for _, b := range snap.Batches {
			if b.Number != batch {
				continue
			}
			switch b.Status {
			case runner.BatchStatusCompleted:
				fmt.Printf("%s\n", shared.RenderOK(
					fmt.Sprintf("Batch %d completed with %d responses", batch, b.Responses)))
				return nil
			case runner.BatchStatusFailed:
				return shared.NewExecutionError(
					fmt.Sprintf("batch %d failed again: %s", batch, b.LastError), nil)
			}
		}
		if snap.Status.Terminal() {
			fmt.Printf("Run finished with status %s\n", shared.RenderRunStatus(string(snap.Status)))
			return nil
		}
	}
}
