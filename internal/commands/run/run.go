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

package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/kevinjin420/jaseci-llmdocs/internal/bus"
	"github.com/kevinjin420/jaseci-llmdocs/internal/client"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/shared"
	"github.com/kevinjin420/jaseci-llmdocs/internal/runner"
)

var (
	runVariant     string
	runTemperature float64
	runMaxTokens   int
	runBatchSize   int
	runBatchSizes  []int
	runQueueSize   int
	runFilter      string
	runDetach      bool
	runNoProgress  bool
	runEval        bool
)

// NewCommand creates the run command for submitting benchmark runs.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [model]",
		Short: "Submit a benchmark run",
		Long: `Submit a benchmark run against a model and documentation variant.

The daemon partitions the test suite into batches, drives the model
batch by batch, and stores the collected responses as an artifact.
By default the command follows the run's event stream and renders
live progress; --detach returns immediately after submission.

Examples:
  jacbench run openai/gpt-4o --variant full
  jacbench run openai/gpt-4o --variant compact --filter "level <= 3"
  jacbench run openai/gpt-4o --variant full --batch-sizes 10,20,30
  jacbench run openai/gpt-4o --variant full --queue-size 3 --detach
  jacbench run                                  # interactive picker`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRun,
	}

	cmd.Flags().StringVar(&runVariant, "variant", "", "Documentation variant to benchmark")
	cmd.Flags().Float64Var(&runTemperature, "temperature", 0.7, "Sampling temperature (0-2)")
	cmd.Flags().IntVar(&runMaxTokens, "max-tokens", 0, "Max completion tokens per batch (0 = provider default)")
	cmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "Uniform batch size (0 = daemon default)")
	cmd.Flags().IntSliceVar(&runBatchSizes, "batch-sizes", nil, "Explicit per-batch sizes, e.g. 10,20,30")
	cmd.Flags().IntVar(&runQueueSize, "queue-size", 1, "Parallel runs of the same request (1-20)")
	cmd.Flags().StringVar(&runFilter, "filter", "", "Test filter expression, e.g. 'level <= 3'")
	cmd.Flags().BoolVar(&runDetach, "detach", false, "Submit and return without following progress")
	cmd.Flags().BoolVar(&runNoProgress, "no-progress", false, "Follow the run but print plain log lines")
	cmd.Flags().BoolVar(&runEval, "eval", false, "Wait for evaluation and print the score")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := client.FromEnvironment()
	if err != nil {
		return err
	}

	model := ""
	if len(args) > 0 {
		model = args[0]
	}

	if model == "" || runVariant == "" {
		if shared.IsNonInteractive() || shared.GetJSON() {
			return shared.NewMissingInputNonInteractiveError(
				"model and --variant are required in non-interactive mode", nil)
		}
		if err := promptForRequest(ctx, c, &model); err != nil {
			return err
		}
	}

	req := runner.RunRequest{
		Model:       model,
		Variant:     runVariant,
		Temperature: runTemperature,
		MaxTokens:   runMaxTokens,
		BatchSize:   runBatchSize,
		BatchSizes:  runBatchSizes,
		QueueSize:   runQueueSize,
		Filter:      runFilter,
	}

	result, err := c.SubmitRun(ctx, req)
	if err != nil {
		return submitError(err)
	}

	if shared.GetJSON() {
		return emitSubmitJSON(result)
	}

	if runDetach {
		fmt.Printf("%s Submitted %d run(s) in group %s\n",
			shared.StatusOK.Render(shared.SymbolOK), result.Count, result.GroupID)
		for _, id := range result.RunIDs {
			fmt.Printf("  %s\n", id)
		}
		fmt.Printf("\nFollow progress with: jacbench status %s\n", result.RunIDs[0])
		return nil
	}

	if len(result.RunIDs) > 1 {
		fmt.Printf("Submitted %d parallel runs; following %s\n", result.Count, result.RunIDs[0])
	}

	return followRun(ctx, c, result.RunIDs[0], model)
}

// promptForRequest fills the model and variant interactively. Variants
// come from the daemon so the picker matches what it can actually load.
func promptForRequest(ctx context.Context, c *client.Client, model *string) error {
	fields := make([]huh.Field, 0, 2)

	if *model == "" {
		fields = append(fields, huh.NewInput().
			Title("Model").
			Description("Provider model id, e.g. openai/gpt-4o").
			Validate(func(s string) error {
				if s == "" {
					return fmt.Errorf("model is required")
				}
				return nil
			}).
			Value(model))
	}

	if runVariant == "" {
		variants, err := c.Variants(ctx)
		if err != nil {
			return err
		}
		if len(variants) == 0 {
			return shared.NewMissingInputError("no documentation variants available", nil)
		}
		options := make([]huh.Option[string], 0, len(variants))
		for _, v := range variants {
			label := fmt.Sprintf("%s (%d KB)", v.Name, v.Size/1024)
			options = append(options, huh.NewOption(label, v.Name))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Documentation variant").
			Options(options...).
			Value(&runVariant))
	}

	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

// followRun streams run events and renders them as live progress. The
// stream resumes from the retained ring, so events between submission
// and connecting here are not lost.
func followRun(ctx context.Context, c *client.Client, runID, model string) error {
	stream, err := c.StreamEvents(ctx, runID, 0)
	if err != nil {
		return err
	}
	defer stream.Close()

	display := shared.NewProgressDisplay(runNoProgress, shared.GetVerbose())
	display.Start(model, runVariant, runID)

	var artifactID string
	finalStatus := "completed"

	for {
		ev, err := stream.Next()
		if err == io.EOF {
			if s := stream.FinalStatus(); s != "" {
				finalStatus = s
			}
			break
		}
		if err != nil {
			display.Finish("failed")
			return shared.NewExecutionError("event stream broke", err)
		}

		switch ev.Kind {
		case bus.KindRunStarted:
			var p runner.RunEvent
			decodePayload(ev.Payload, &p)
			display.RunStarted(p.TotalBatches, p.TotalTests)
		case bus.KindBatchStarted:
			var p runner.BatchEvent
			decodePayload(ev.Payload, &p)
			display.BatchStarted(ev.Batch, p.Tests)
		case bus.KindBatchRetry:
			var p runner.BatchEvent
			decodePayload(ev.Payload, &p)
			display.BatchRetry(ev.Batch, p.Attempt, p.Reason)
		case bus.KindBatchCompleted, bus.KindBatchFailed:
			var p runner.BatchEvent
			decodePayload(ev.Payload, &p)
			display.BatchCompleted(ev.Batch, string(p.Status), p.Tests, p.Responses, p.Retries)
		case bus.KindRunCompleted, bus.KindRunFailed, bus.KindRunCancelled:
			var p runner.RunEvent
			decodePayload(ev.Payload, &p)
			artifactID = p.ArtifactID
			if p.Error != "" {
				display.LogMessage(p.Error)
			}
		case bus.KindLag:
			display.LogMessage("event stream lagged; some progress events were dropped")
		}
	}

	display.Finish(finalStatus)

	if finalStatus != "completed" {
		return shared.NewExecutionError(fmt.Sprintf("run %s %s", runID, finalStatus), nil)
	}

	if artifactID != "" {
		fmt.Printf("Artifact: %s\n", artifactID)
		if runEval {
			result, err := c.Evaluate(ctx, artifactID)
			if err != nil {
				return shared.NewExecutionError("evaluation failed", err)
			}
			display.EvalCompleted(result.Summary.OverallPercentage)
		}
	}

	return nil
}

// decodePayload re-decodes a generic event payload into its typed form.
// Payloads arrive as plain maps after the SSE JSON round trip.
func decodePayload(payload any, out any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, out)
}

func submitError(err error) error {
	var apiErr *client.APIError
	if shared.GetJSON() {
		msg := err.Error()
		code := shared.ErrorCodeRunFailed
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			code = shared.ErrorCodeInvalidRequest
			msg = apiErr.Message
		}
		_ = shared.EmitJSONError("run", []shared.JSONError{{Code: code, Message: msg}})
		return shared.NewInvalidRequestError(msg, err)
	}
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
		return shared.NewInvalidRequestError(apiErr.Message, err)
	}
	return err
}

func emitSubmitJSON(result *client.SubmitResult) error {
	type response struct {
		shared.JSONResponse
		GroupID string   `json:"group_id"`
		RunIDs  []string `json:"run_ids"`
		Count   int      `json:"count"`
	}
	return shared.EmitJSON(response{
		JSONResponse: shared.JSONResponse{Version: "1.0", Command: "run", Success: true},
		GroupID:      result.GroupID,
		RunIDs:       result.RunIDs,
		Count:        result.Count,
	})
}
