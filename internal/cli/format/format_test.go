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

package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "walker init {}", "walker init {}"},
		{"color escape", "\x1b[31mred\x1b[0m text", "red text"},
		{"cursor movement", "\x1b[2Jcleared", "cleared"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestJSON(t *testing.T) {
	out, err := JSON([]byte(`{"b":2,"a":1}`))
	require.NoError(t, err)
	assert.Contains(t, out, "  \"a\": 1")
}

func TestJSONInvalid(t *testing.T) {
	_, err := JSON([]byte(`{not json`))
	assert.Error(t, err)
}

func TestJSONTooLarge(t *testing.T) {
	big := make([]byte, maxJSONSize+1)
	_, err := JSON(big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
}

func TestCodePlain(t *testing.T) {
	out, err := Code("test-1", "node person {\n  has name: str;\n}\n", false)
	require.NoError(t, err)
	assert.Equal(t, "node person {\n  has name: str;\n}\n", out)
	assert.NotContains(t, out, "test-1")
}

func TestCodeTTYNumbersLines(t *testing.T) {
	out, err := Code("test-1", "line one\nline two", true)
	require.NoError(t, err)
	assert.Contains(t, out, "test-1")
	assert.Contains(t, out, "line one")
	assert.Contains(t, out, "line two")
	// Line numbers are present somewhere in the gutter.
	assert.True(t, strings.Contains(out, "1") && strings.Contains(out, "2"))
}

func TestCodeSanitizesEscapes(t *testing.T) {
	out, err := Code("t", "\x1b[31mwith walker\x1b[0m", false)
	require.NoError(t, err)
	assert.Equal(t, "with walker\n", out)
}
