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

package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kevinjin420/jaseci-llmdocs/internal/cli/timeline"
	"github.com/kevinjin420/jaseci-llmdocs/internal/client"
	"github.com/kevinjin420/jaseci-llmdocs/internal/commands/shared"
	"github.com/kevinjin420/jaseci-llmdocs/internal/runner"
)

var (
	statusFilter   string
	statusWatch    bool
	statusTimeline bool
)

// NewCommand creates the status command for inspecting runs.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show run status",
		Long: `Show the status of benchmark runs.

Without arguments, lists all queued and active runs plus their groups.
With a run ID, shows the run's batches, progress, and token usage.
Runs the queue has already pruned are looked up in the run registry.

Examples:
  jacbench status
  jacbench status run-01j9...
  jacbench status run-01j9... --watch
  jacbench status run-01j9... --timeline
  jacbench status --status running`,
		Args: cobra.MaximumNArgs(1),
		RunE: runStatus,
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter list by status (queued, running, completed, failed, cancelled)")
	cmd.Flags().BoolVar(&statusWatch, "watch", false, "Follow the run's event stream until it finishes")
	cmd.Flags().BoolVar(&statusTimeline, "timeline", false, "Draw a timeline of batch execution")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := client.FromEnvironment()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return listRuns(cmd, c)
	}
	return showRun(cmd, c, args[0])
}

func listRuns(cmd *cobra.Command, c *client.Client) error {
	list, err := c.ListRuns(cmd.Context(), statusFilter)
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		type response struct {
			shared.JSONResponse
			Runs   []*runner.RunSnapshot `json:"runs"`
			Groups []*runner.QueueStatus `json:"groups"`
			Count  int                   `json:"count"`
		}
		return shared.EmitJSON(response{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "status", Success: true},
			Runs:         list.Runs,
			Groups:       list.Groups,
			Count:        list.Count,
		})
	}

	if len(list.Runs) == 0 {
		fmt.Println("No runs in the queue")
		return nil
	}

	fmt.Printf("%-30s %-24s %-12s %-12s %-10s %s\n",
		"RUN", "MODEL", "VARIANT", "STATUS", "BATCHES", "AGE")
	for _, snap := range list.Runs {
		fmt.Printf("%-30s %-24s %-12s %-12s %-10s %s\n",
			snap.ID,
			truncate(snap.Model, 24),
			truncate(snap.Variant, 12),
			shared.RenderRunStatus(string(snap.Status)),
			fmt.Sprintf("%d/%d", snap.Progress.CompletedBatches, snap.Progress.TotalBatches),
			age(snap.CreatedAt))
	}

	if len(list.Groups) > 1 {
		fmt.Printf("\n%d group(s) in the queue\n", len(list.Groups))
	}
	return nil
}

func showRun(cmd *cobra.Command, c *client.Client, id string) error {
	ctx := cmd.Context()

	snap, err := c.GetRun(ctx, id)
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		type response struct {
			shared.JSONResponse
			Run *runner.RunSnapshot `json:"run"`
		}
		return shared.EmitJSON(response{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "status", Success: true},
			Run:          snap,
		})
	}

	printRun(snap)

	if statusTimeline {
		fmt.Println()
		if err := renderTimeline(snap); err != nil {
			return err
		}
	}

	if statusWatch && !snap.Status.Terminal() {
		fmt.Println()
		stream, err := c.StreamEvents(ctx, id, 0)
		if err != nil {
			return err
		}
		defer stream.Close()
		return watchEvents(stream)
	}
	return nil
}

func printRun(snap *runner.RunSnapshot) {
	fmt.Printf("%s %s\n", shared.RenderLabel("Run:"), snap.ID)
	fmt.Printf("%s %s\n", shared.RenderLabel("Model:"), snap.Model)
	fmt.Printf("%s %s\n", shared.RenderLabel("Variant:"), snap.Variant)
	fmt.Printf("%s %s\n", shared.RenderLabel("Status:"), shared.RenderRunStatus(string(snap.Status)))
	if snap.Error != "" {
		fmt.Printf("%s %s\n", shared.RenderLabel("Error:"), shared.StatusError.Render(snap.Error))
	}
	if snap.ArtifactID != "" {
		fmt.Printf("%s %s\n", shared.RenderLabel("Artifact:"), snap.ArtifactID)
	}

	p := snap.Progress
	fmt.Printf("%s %d/%d batches, %d/%d tests\n", shared.RenderLabel("Progress:"),
		p.CompletedBatches, p.TotalBatches, p.CollectedTests, p.TotalTests)
	if snap.Usage.TotalTokens > 0 {
		fmt.Printf("%s %d input + %d output tokens\n", shared.RenderLabel("Usage:"),
			snap.Usage.InputTokens, snap.Usage.OutputTokens)
	}

	if len(snap.Batches) > 0 {
		fmt.Printf("\n%s\n", shared.Header.Render("Batches"))
		for _, b := range snap.Batches {
			line := fmt.Sprintf("  #%-3d %-10s %d tests", b.Number, b.Status, len(b.TestIDs))
			if b.Retries > 0 {
				line += fmt.Sprintf(", %d retries", b.Retries)
			}
			if b.LastError != "" {
				line += " - " + truncate(b.LastError, 60)
			}
			fmt.Println(line)
		}
	}
}

// renderTimeline draws batch execution bars. Batches that have not
// started yet are left off; a run with no timing at all is an error.
func renderTimeline(snap *runner.RunSnapshot) error {
	r, err := timeline.NewRenderer()
	if err != nil {
		return err
	}

	spans := make([]timeline.Span, 0, len(snap.Batches))
	for _, b := range snap.Batches {
		s := timeline.Span{
			Label:   fmt.Sprintf("batch %d (%d tests)", b.Number, len(b.TestIDs)),
			Failed:  b.Status == runner.BatchStatusFailed,
			Retries: b.Retries,
		}
		if b.StartedAt != nil {
			s.StartTime = *b.StartedAt
		}
		if b.CompletedAt != nil {
			s.EndTime = *b.CompletedAt
		}
		spans = append(spans, s)
	}

	out, err := r.Render(snap.ID, spans)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func watchEvents(stream *client.EventStream) error {
	for {
		ev, err := stream.Next()
		if err != nil {
			return nil
		}
		ts := ev.Time.Local().Format(time.TimeOnly)
		if ev.Batch > 0 {
			fmt.Printf("%s  %-18s batch %d\n", shared.Muted.Render(ts), ev.Kind, ev.Batch)
		} else {
			fmt.Printf("%s  %s\n", shared.Muted.Render(ts), ev.Kind)
		}
	}
}

func age(t time.Time) string {
	d := time.Since(t).Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%.1fh", d.Hours())
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max-1]) + "…"
}
