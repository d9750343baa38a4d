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

package timeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRenderer() *Renderer {
	r := newRenderer(100)
	r.now = func() time.Time { return time.Date(2025, 8, 17, 14, 35, 0, 0, time.UTC) }
	return r
}

func span(label string, startSec, endSec int, failed bool, retries int) Span {
	base := time.Date(2025, 8, 17, 14, 30, 0, 0, time.UTC)
	s := Span{
		Label:     label,
		StartTime: base.Add(time.Duration(startSec) * time.Second),
		Failed:    failed,
		Retries:   retries,
	}
	if endSec > 0 {
		s.EndTime = base.Add(time.Duration(endSec) * time.Second)
	}
	return s
}

func TestRenderSequentialSpans(t *testing.T) {
	r := testRenderer()
	out, err := r.Render("run-abc", []Span{
		span("batch 1", 0, 30, false, 0),
		span("batch 2", 30, 90, false, 2),
	})
	require.NoError(t, err)

	assert.Contains(t, out, "run-abc")
	assert.Contains(t, out, "batch 1")
	assert.Contains(t, out, "batch 2")
	assert.Contains(t, out, statusIconOK)
	assert.Contains(t, out, "2 retries")
	assert.Contains(t, out, "Total:")
	assert.Contains(t, out, "1.5m")
}

func TestRenderFailedSpan(t *testing.T) {
	r := testRenderer()
	out, err := r.Render("run-abc", []Span{
		span("batch 1", 0, 10, true, 3),
	})
	require.NoError(t, err)
	assert.Contains(t, out, statusIconError)
	assert.NotContains(t, out, statusIconOK)
}

func TestRenderOpenSpanUsesClock(t *testing.T) {
	r := testRenderer()
	out, err := r.Render("run-abc", []Span{
		span("batch 1", 0, 0, false, 0), // still running, clock says 5m in
	})
	require.NoError(t, err)
	assert.Contains(t, out, statusIconBusy)
	assert.Contains(t, out, "5.0m")
}

func TestRenderSkipsUnstartedSpans(t *testing.T) {
	r := testRenderer()
	out, err := r.Render("run-abc", []Span{
		span("batch 1", 0, 30, false, 0),
		{Label: "batch 2"}, // still pending
	})
	require.NoError(t, err)
	assert.Contains(t, out, "batch 1")
	assert.NotContains(t, out, "batch 2")
}

func TestRenderNothingStarted(t *testing.T) {
	r := testRenderer()
	_, err := r.Render("run-abc", []Span{{Label: "batch 1"}})
	assert.Error(t, err)
}

func TestRenderLinesShareWidth(t *testing.T) {
	r := testRenderer()
	out, err := r.Render("run-abc", []Span{
		span("batch 1", 0, 30, false, 0),
		span("batch 2", 30, 60, false, 1),
	})
	require.NoError(t, err)

	var widths []int
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		widths = append(widths, len([]rune(line)))
	}
	for _, w := range widths[1:] {
		assert.Equal(t, widths[0], w)
	}
}

func TestNewRendererClampsWideTerminals(t *testing.T) {
	r := newRenderer(300)
	assert.Equal(t, 60, r.BarWidth)
	assert.Equal(t, 60+labelColumns, r.Width)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a-very-...", truncate("a-very-long-label", 10))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "500µs", formatDuration(500*time.Microsecond))
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "2.5s", formatDuration(2500*time.Millisecond))
	assert.Equal(t, "1.5m", formatDuration(90*time.Second))
}
