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
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStdout runs fn with stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func() error) []byte {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = old
	require.NoError(t, fnErr)

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestEmitJSONWritesEnvelope(t *testing.T) {
	type response struct {
		JSONResponse
		Result string `json:"result"`
	}

	out := captureStdout(t, func() error {
		return EmitJSON(response{
			JSONResponse: JSONResponse{Version: "1.0", Command: "eval", Success: true},
			Result:       "82.5%",
		})
	})

	// Scripted consumers key on these exact field names.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.Equal(t, "1.0", raw["@version"])
	assert.Equal(t, "eval", raw["command"])
	assert.Equal(t, true, raw["success"])
	assert.Equal(t, "82.5%", raw["result"])
}

func TestEmitJSONIsIndented(t *testing.T) {
	out := captureStdout(t, func() error {
		return EmitJSON(JSONResponse{Version: "1.0", Command: "status", Success: true})
	})
	assert.Contains(t, string(out), "\n  \"command\"")
}

func TestEmitJSONError(t *testing.T) {
	out := captureStdout(t, func() error {
		return EmitJSONError("run", []JSONError{
			{
				Code:       "E203",
				Message:    "no API key configured",
				Suggestion: "Run 'jacbench setup' to configure a provider",
			},
			{
				Code:    "E103",
				Message: "batch is still running",
				RunID:   "01HQZX3V9K",
			},
		})
	})

	var resp struct {
		JSONResponse
		Errors []JSONError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(out, &resp))

	assert.Equal(t, "run", resp.Command)
	assert.False(t, resp.Success)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, "E203", resp.Errors[0].Code)
	assert.Equal(t, "Run 'jacbench setup' to configure a provider", resp.Errors[0].Suggestion)
	assert.Equal(t, "01HQZX3V9K", resp.Errors[1].RunID)
}

func TestJSONErrorOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(JSONError{Code: "E002", Message: "unknown variant"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "suggestion")
	assert.NotContains(t, raw, "run_id")
}
