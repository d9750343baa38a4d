// Package prompt builds the model-facing prompt for a batch of test cases
// and decodes the model's JSON reply. The prompt embeds the variant
// documentation and the batch's test cases; the model is instructed to
// answer with one JSON object mapping test id to code.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/kevinjin420/jaseci-llmdocs/internal/suite"
)

var promptTemplate = template.Must(template.New("batch").Parse(
	`You are a Jac programming language expert. Write valid Jac code for each test case based on the documentation.

# Documentation
{{.Documentation}}

# Test Cases
{{.TestsJSON}}

# Task
Return a JSON object mapping each test ID to Jac code. Use \n for newlines and \" for quotes in the code strings.
`))

// testPrompt is the JSON shape of a test case as presented to the model.
// Required and forbidden patterns are withheld; the model only sees the
// task, level, and hints.
type testPrompt struct {
	ID       string   `json:"id"`
	Level    int      `json:"level"`
	Category string   `json:"category"`
	Task     string   `json:"task"`
	Points   int      `json:"points"`
	Hints    []string `json:"hints"`
}

// Build renders the batch prompt for the given documentation and test cases.
func Build(documentation string, tests []suite.TestCase) (string, error) {
	prompts := make([]testPrompt, len(tests))
	for i, tc := range tests {
		prompts[i] = testPrompt{
			ID:       tc.ID,
			Level:    tc.Level,
			Category: tc.Category,
			Task:     tc.Task,
			Points:   tc.Points,
			Hints:    tc.Hints,
		}
	}

	testsJSON, err := json.MarshalIndent(map[string][]testPrompt{"tests": prompts}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode test cases: %w", err)
	}

	var buf bytes.Buffer
	err = promptTemplate.Execute(&buf, map[string]string{
		"Documentation": documentation,
		"TestsJSON":     string(testsJSON),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}
