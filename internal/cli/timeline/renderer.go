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

// Package timeline renders ASCII duration bars for batch execution
// within a run, showing where wall time went.
package timeline

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/term"
)

const (
	// MinTerminalWidth is the narrowest terminal the box layout fits in.
	MinTerminalWidth = 80
	// labelColumns is the fixed width consumed by the label, duration,
	// status, and retry columns plus borders.
	labelColumns = 48

	statusIconOK    = "✓"
	statusIconError = "✗"
	statusIconBusy  = "…"
)

// Span is one bar on the timeline. An open span (zero EndTime) is still
// executing and rendered against the current clock.
type Span struct {
	Label     string
	StartTime time.Time
	EndTime   time.Time
	Failed    bool
	Retries   int
}

// Renderer lays out spans against the detected terminal width.
type Renderer struct {
	Width    int
	BarWidth int

	// now is the clock used for open spans; overridable in tests.
	now func() time.Time
}

// NewRenderer creates a renderer sized to the terminal. It fails on
// terminals too narrow for the box layout rather than wrapping badly.
func NewRenderer() (*Renderer, error) {
	width, _, err := term.GetSize(0)
	if err != nil {
		width = 100
	}
	if width < MinTerminalWidth {
		return nil, fmt.Errorf("terminal width %d is too narrow (minimum %d columns)", width, MinTerminalWidth)
	}
	return newRenderer(width), nil
}

func newRenderer(width int) *Renderer {
	barWidth := width - labelColumns
	if barWidth > 60 {
		barWidth = 60
		width = barWidth + labelColumns
	}
	return &Renderer{Width: width, BarWidth: barWidth, now: time.Now}
}

// Render draws the spans as one box, a bar per span, proportional to
// each span's share of the run's wall time.
func (r *Renderer) Render(title string, spans []Span) (string, error) {
	started := spans[:0:0]
	for _, s := range spans {
		if !s.StartTime.IsZero() {
			started = append(started, s)
		}
	}
	if len(started) == 0 {
		return "", fmt.Errorf("no timing recorded yet")
	}

	minTime, maxTime := r.bounds(started)
	total := maxTime.Sub(minTime)
	if total <= 0 {
		total = time.Millisecond
	}

	var sb strings.Builder
	border := strings.Repeat("─", r.Width-2)
	sb.WriteString("┌" + border + "┐\n")
	sb.WriteString(fmt.Sprintf("│ %-*s Total: %7s │\n",
		r.Width-19, truncate(title, r.Width-19), formatDuration(total)))
	sb.WriteString("├" + border + "┤\n")
	for _, s := range started {
		sb.WriteString(r.renderSpan(s, minTime, total))
	}
	sb.WriteString("└" + border + "┘\n")
	return sb.String(), nil
}

// bounds finds the earliest start and latest end across all spans,
// treating open spans as ending now.
func (r *Renderer) bounds(spans []Span) (time.Time, time.Time) {
	minTime := spans[0].StartTime
	maxTime := r.end(spans[0])
	for _, s := range spans[1:] {
		if s.StartTime.Before(minTime) {
			minTime = s.StartTime
		}
		if e := r.end(s); e.After(maxTime) {
			maxTime = e
		}
	}
	return minTime, maxTime
}

func (r *Renderer) end(s Span) time.Time {
	if s.EndTime.IsZero() {
		return r.now()
	}
	return s.EndTime
}

func (r *Renderer) renderSpan(s Span, minTime time.Time, total time.Duration) string {
	duration := r.end(s).Sub(s.StartTime)
	startPos := int(float64(s.StartTime.Sub(minTime)) / float64(total) * float64(r.BarWidth))
	barLength := int(float64(duration) / float64(total) * float64(r.BarWidth))

	if barLength < 1 {
		barLength = 1
	}
	if startPos+barLength > r.BarWidth {
		barLength = r.BarWidth - startPos
	}

	bar := make([]rune, r.BarWidth)
	for i := range bar {
		if i >= startPos && i < startPos+barLength {
			bar[i] = '█'
		} else {
			bar[i] = '░'
		}
	}

	icon := statusIconOK
	switch {
	case s.Failed:
		icon = statusIconError
	case s.EndTime.IsZero():
		icon = statusIconBusy
	}

	retries := ""
	if s.Retries > 0 {
		retries = fmt.Sprintf("%d retries", s.Retries)
	}

	return fmt.Sprintf("│ %-18s  %s  %7s  %s  %-10s │\n",
		truncate(s.Label, 18), string(bar), formatDuration(duration), icon, retries)
}

// truncate shortens a string to maxLen with an ellipsis.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatDuration picks a unit that keeps the column narrow.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}
