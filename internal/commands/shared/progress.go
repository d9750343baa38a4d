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

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// ProgressDisplay renders live run progress from the daemon's event
// stream. Batches execute concurrently, so the animated line shows the
// aggregate (completed count plus the batches in flight) and each batch
// gets its own row once it settles. Falls back to static output when not
// running in a TTY or when disabled.
type ProgressDisplay struct {
	mu         sync.Mutex
	isTTY      bool
	noProgress bool
	verbose    bool

	model   string
	variant string
	runID   string

	// Batch tracking
	totalBatches int
	totalTests   int
	active       map[int]time.Time
	completed    []CompletedBatch

	// Log messages shown under the progress line (verbose mode)
	currentLogs []string

	// Animation state
	spinnerFrames []string
	frameIdx      int
	done          chan struct{}
	running       bool
}

// CompletedBatch tracks information about a settled batch.
type CompletedBatch struct {
	Batch     int
	Status    string // "completed", "failed"
	Tests     int
	Responses int
	Retries   int
	Duration  time.Duration
}

// NewProgressDisplay creates a new ProgressDisplay.
func NewProgressDisplay(noProgress, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		isTTY:         term.IsTerminal(int(os.Stdout.Fd())),
		noProgress:    noProgress,
		verbose:       verbose,
		active:        make(map[int]time.Time),
		spinnerFrames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	}
}

// Start begins the progress display with run info.
func (p *ProgressDisplay) Start(model, variant, runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.model = model
	p.variant = variant
	p.runID = runID

	header := fmt.Sprintf("Benchmarking %s against %s", Bold.Render(model), variant)
	if runID != "" {
		header += fmt.Sprintf(" %s", Muted.Render("("+runID+")"))
	}
	fmt.Println(header)
	fmt.Println()
}

// RunStarted records the plan once the run.started event arrives.
func (p *ProgressDisplay) RunStarted(totalBatches, totalTests int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalBatches = totalBatches
	p.totalTests = totalTests

	if p.isInteractive() {
		p.startSpinner()
	} else {
		fmt.Printf("  %s %d tests in %d batches\n", Muted.Render(SymbolInfo), totalTests, totalBatches)
	}
}

// BatchStarted is called when a batch begins execution.
func (p *ProgressDisplay) BatchStarted(batch, tests int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active[batch] = time.Now()

	if p.isInteractive() {
		p.redrawSpinnerLine()
	} else {
		fmt.Printf("  %s batch %d (%d tests)...\n", Muted.Render(SymbolInfo), batch, tests)
	}
}

// BatchRetry is called when a batch attempt failed and will be reissued.
func (p *ProgressDisplay) BatchRetry(batch, attempt int, reason string) {
	p.LogMessage(fmt.Sprintf("batch %d attempt %d failed: %s", batch, attempt, reason))
}

// BatchCompleted is called when a batch settles.
func (p *ProgressDisplay) BatchCompleted(batch int, status string, tests, responses, retries int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var duration time.Duration
	if started, ok := p.active[batch]; ok {
		duration = time.Since(started)
		delete(p.active, batch)
	}

	done := CompletedBatch{
		Batch:     batch,
		Status:    status,
		Tests:     tests,
		Responses: responses,
		Retries:   retries,
		Duration:  duration,
	}
	p.completed = append(p.completed, done)

	if p.isInteractive() {
		p.clearCurrentLines()
	}

	p.printCompletedBatch(done)

	if p.isInteractive() {
		p.redrawSpinnerLine()
	}
}

// EvalCompleted prints the evaluation outcome once scoring settles.
func (p *ProgressDisplay) EvalCompleted(overall float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isInteractive() {
		p.clearCurrentLines()
	}
	fmt.Printf("  %s evaluated %s\n", StatusOK.Render(SymbolOK), Bold.Render(fmt.Sprintf("%.1f%%", overall)))
	if p.isInteractive() {
		p.redrawSpinnerLine()
	}
}

// LogMessage adds a log message (for verbose mode).
func (p *ProgressDisplay) LogMessage(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.verbose {
		return
	}

	if p.isInteractive() {
		// Store log for redraw
		p.currentLogs = append(p.currentLogs, message)
		p.redrawSpinnerLine()
	} else {
		// Static mode: print log directly
		fmt.Printf("    %s %s\n", Muted.Render("│"), message)
	}
}

// Usage prints a muted token usage summary line.
func (p *ProgressDisplay) Usage(promptTokens, completionTokens int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if promptTokens == 0 && completionTokens == 0 {
		return
	}
	fmt.Printf("  %s\n", Muted.Render(fmt.Sprintf("tokens: %d in, %d out", promptTokens, completionTokens)))
}

// Finish completes the progress display with final run status.
func (p *ProgressDisplay) Finish(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopSpinner()
	if p.isTTY {
		p.clearCurrentLines()
	}

	fmt.Println()

	switch status {
	case "completed", "evaluated":
		fmt.Printf("%s Run %s\n", StatusOK.Render(SymbolOK), status)
	case "failed":
		fmt.Printf("%s Run failed\n", StatusError.Render(SymbolError))
	case "cancelled":
		fmt.Printf("%s Run cancelled\n", StatusWarn.Render(SymbolWarn))
	default:
		fmt.Printf("Run %s\n", status)
	}
}

// isInteractive returns true if we should use interactive mode.
func (p *ProgressDisplay) isInteractive() bool {
	return p.isTTY && !p.noProgress
}

// startSpinner begins the spinner animation goroutine.
func (p *ProgressDisplay) startSpinner() {
	if p.running {
		return
	}
	p.running = true
	p.done = make(chan struct{})
	p.frameIdx = 0

	p.renderSpinnerLine()

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-p.done:
				return
			case <-ticker.C:
				p.mu.Lock()
				if p.running {
					p.frameIdx = (p.frameIdx + 1) % len(p.spinnerFrames)
					p.redrawSpinnerLine()
				}
				p.mu.Unlock()
			}
		}
	}()
}

// stopSpinner stops the spinner animation.
func (p *ProgressDisplay) stopSpinner() {
	if !p.running {
		return
	}
	p.running = false
	close(p.done)
}

// clearCurrentLines clears the spinner line and any log lines below it.
func (p *ProgressDisplay) clearCurrentLines() {
	if !p.isTTY || !p.running {
		if p.isTTY {
			fmt.Print("\r\033[K")
		}
		return
	}
	// Clear current line
	fmt.Print("\r\033[K")
	// Clear log lines (move up and clear for each log line)
	for i := 0; i < len(p.currentLogs); i++ {
		fmt.Print("\033[A\033[K") // move up and clear
	}
}

// renderSpinnerLine renders the aggregate progress state.
func (p *ProgressDisplay) renderSpinnerLine() {
	if !p.running {
		return
	}

	frame := p.spinnerFrames[p.frameIdx]
	if !ColorEnabled() {
		frame = "..."
	}

	// Format: "  ⠋ 3/12 batches  running: 2, 5            (1m 2s)"
	progress := fmt.Sprintf("%d/%d batches", len(p.completed), p.totalBatches)
	if inflight := p.activeBatches(); len(inflight) > 0 {
		labels := make([]string, len(inflight))
		for i, b := range inflight {
			labels[i] = fmt.Sprintf("%d", b)
		}
		progress += "  running: " + strings.Join(labels, ", ")
	}
	line := fmt.Sprintf("  %s %s", StatusInfo.Render(frame), progress)

	// Right-align the elapsed time of the oldest in-flight batch
	if oldest := p.oldestStart(); !oldest.IsZero() {
		timeStr := Muted.Render("(" + formatDuration(time.Since(oldest)) + ")")
		padding := 60 - len(progress) - 4
		if padding < 2 {
			padding = 2
		}
		line += strings.Repeat(" ", padding) + timeStr
	}

	fmt.Print(line)
}

// redrawSpinnerLine redraws the spinner line (and logs in verbose mode).
func (p *ProgressDisplay) redrawSpinnerLine() {
	if !p.isTTY || !p.running {
		return
	}

	// Move to start of line and clear everything below
	fmt.Print("\r\033[K")
	for i := 0; i < len(p.currentLogs); i++ {
		fmt.Print("\033[A\033[K")
	}

	p.renderSpinnerLine()

	// Render log lines in verbose mode
	for _, log := range p.currentLogs {
		fmt.Printf("\n    %s %s", Muted.Render("│"), log)
	}
}

// printCompletedBatch prints a settled batch row.
func (p *ProgressDisplay) printCompletedBatch(b CompletedBatch) {
	var symbol string
	switch b.Status {
	case "failed":
		symbol = StatusError.Render(SymbolError)
	default:
		symbol = StatusOK.Render(SymbolOK)
	}

	// Right-aligned format: "  ✓ batch 3     5 responses  (12.4s)"
	name := fmt.Sprintf("batch %d", b.Batch)
	detail := fmt.Sprintf("%d responses", b.Responses)
	if b.Status == "failed" {
		detail = "failed"
	}
	if b.Retries > 0 {
		detail += fmt.Sprintf(", %d retries", b.Retries)
	}

	maxNameLen := 12
	padding := maxNameLen - len(name)
	if padding < 1 {
		padding = 1
	}

	row := fmt.Sprintf("  %s %s%s%s", symbol, name, strings.Repeat(" ", padding), detail)
	if b.Duration > 0 {
		row += "  " + Muted.Render("("+formatDuration(b.Duration)+")")
	}
	fmt.Println(row)
}

// activeBatches returns the in-flight batch numbers in ascending order.
func (p *ProgressDisplay) activeBatches() []int {
	batches := make([]int, 0, len(p.active))
	for b := range p.active {
		batches = append(batches, b)
	}
	sort.Ints(batches)
	return batches
}

// oldestStart returns the earliest start time among in-flight batches.
func (p *ProgressDisplay) oldestStart() time.Time {
	var oldest time.Time
	for _, t := range p.active {
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
	}
	return oldest
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	d = d.Round(100 * time.Millisecond)
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := d.Seconds() - float64(minutes*60)
	return fmt.Sprintf("%dm %.0fs", minutes, seconds)
}
