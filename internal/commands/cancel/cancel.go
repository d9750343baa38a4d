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

package cancel

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/kevinjin420/jaseci-llmdocs/internal/client"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/shared"
)

var (
	cancelAll   bool
	cancelForce bool
)

// NewCommand creates the cancel command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel [run-id]",
		Short: "Cancel a run",
		Long: `Cancel a queued or running benchmark run.

Batches already completed keep their responses; a partial artifact is
stored if any tests were collected. Use --all to cancel every active
run, which asks for confirmation unless --force is given.

Examples:
  jacbench cancel run-01j9...
  jacbench cancel --all
  jacbench cancel --all --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCancel,
	}

	cmd.Flags().BoolVar(&cancelAll, "all", false, "Cancel every queued and running run")
	cmd.Flags().BoolVar(&cancelForce, "force", false, "Skip the confirmation prompt for --all")

	return cmd
}

func runCancel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cancelAll == (len(args) == 1) {
		return shared.NewInvalidRequestError("provide exactly one of a run ID or --all", nil)
	}

	c, err := client.FromEnvironment()
	if err != nil {
		return err
	}

	if cancelAll {
		if !cancelForce && !shared.IsNonInteractive() && !shared.GetJSON() {
			confirmed := false
			prompt := &survey.Confirm{
				Message: "Cancel every queued and running run?",
				Default: false,
			}
			if err := survey.AskOne(prompt, &confirmed); err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Aborted")
				return nil
			}
		}

		n, err := c.CancelAll(ctx)
		if err != nil {
			return err
		}

		if shared.GetJSON() {
			type response struct {
				shared.JSONResponse
				Cancelled int `json:"cancelled"`
			}
			return shared.EmitJSON(response{
				JSONResponse: shared.JSONResponse{Version: "1.0", Command: "cancel", Success: true},
				Cancelled:    n,
			})
		}
		fmt.Printf("%s\n", shared.RenderOK(fmt.Sprintf("Cancelled %d run(s)", n)))
		return nil
	}

	id := args[0]
	if err := c.CancelRun(ctx, id); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return shared.NewInvalidRequestError(fmt.Sprintf("run not found: %s", id), err)
		}
		return err
	}

	if shared.GetJSON() {
		type response struct {
			shared.JSONResponse
			RunID string `json:"run_id"`
		}
		return shared.EmitJSON(response{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "cancel", Success: true},
			RunID:        id,
		})
	}
	fmt.Printf("%s\n", shared.RenderOK("Cancelled "+id))
	return nil
}
