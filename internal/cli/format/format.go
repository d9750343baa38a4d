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

// Package format provides CLI output formatting with TTY detection.
// Model responses pass through here before reaching the terminal, so
// everything is sanitized against embedded escape sequences.
package format

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	// maxJSONSize bounds pretty-printed payloads; a response map can
	// carry the whole suite's generated code.
	maxJSONSize = 10 * 1024 * 1024

	// maxCodeSize bounds one rendered code block.
	maxCodeSize = 2 * 1024 * 1024
)

var (
	lineNumStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "244", Dark: "240"})
	headerStyle  = lipgloss.NewStyle().Bold(true)

	// ansiEscapeRegex matches ANSI escape sequences for sanitization.
	ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
)

// Sanitize removes ANSI escape sequences. Model output is untrusted and
// must not be able to redraw or retitle the user's terminal.
func Sanitize(s string) string {
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

// JSON pretty-prints a JSON document with 2-space indentation.
func JSON(content []byte) (string, error) {
	if len(content) > maxJSONSize {
		return "", fmt.Errorf("output size (%d bytes) exceeds maximum for json format (%d bytes)", len(content), maxJSONSize)
	}

	var obj any
	if err := json.Unmarshal(content, &obj); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	formatted, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format JSON: %w", err)
	}
	return string(formatted), nil
}

// Code renders one generated code block. On a TTY lines are numbered
// and the block carries a bold test-id header; piped output stays plain
// so it can be fed straight to a file or the jac binary.
func Code(testID, code string, isTTY bool) (string, error) {
	if len(code) > maxCodeSize {
		return "", fmt.Errorf("output size (%d bytes) exceeds maximum for code format (%d bytes)", len(code), maxCodeSize)
	}

	code = Sanitize(strings.TrimRight(code, "\n"))
	if !isTTY {
		return code + "\n", nil
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(testID))
	b.WriteString("\n")

	lines := strings.Split(code, "\n")
	width := len(fmt.Sprintf("%d", len(lines)))
	for i, line := range lines {
		b.WriteString(lineNumStyle.Render(fmt.Sprintf("%*d ", width, i+1)))
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String(), nil
}
