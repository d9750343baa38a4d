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

package suite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

func TestParseValidSuite(t *testing.T) {
	data := []byte(`
name: mini
tests:
  - id: t1
    category: Basics
    level: 1
    points: 5
    task: "print hello"
    required: ["print"]
  - id: t2
    category: Basics
    level: 2
    points: 10
    task: "declare a variable"
    required: ["glob"]
    forbidden: ["import"]
    hints: ["use glob"]
`)
	s, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "mini", s.Name)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 15, s.TotalPoints())
	assert.Equal(t, []string{"t1", "t2"}, s.IDs())

	tc, ok := s.Lookup("t2")
	require.True(t, ok)
	assert.Equal(t, []string{"import"}, tc.Forbidden)
	assert.Equal(t, 2, tc.Level)
}

func TestParseRejectsInvalidSuites(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing name",
			yaml: "tests:\n  - id: t1\n    category: C\n    level: 1\n    points: 5\n    task: x\n",
		},
		{
			name: "no tests",
			yaml: "name: empty\ntests: []\n",
		},
		{
			name: "duplicate id",
			yaml: "name: dup\ntests:\n  - {id: t1, category: C, level: 1, points: 5, task: x}\n  - {id: t1, category: C, level: 1, points: 5, task: y}\n",
		},
		{
			name: "zero points",
			yaml: "name: zp\ntests:\n  - {id: t1, category: C, level: 1, points: 0, task: x}\n",
		},
		{
			name: "zero level",
			yaml: "name: zl\ntests:\n  - {id: t1, category: C, level: 0, points: 5, task: x}\n",
		},
		{
			name: "missing task",
			yaml: "name: mt\ntests:\n  - {id: t1, category: C, level: 1, points: 5}\n",
		},
		{
			name: "not yaml",
			yaml: "{{{",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var cfgErr *errors.ConfigError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T", err)
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	content := "name: onefile\ntests:\n  - {id: t1, category: C, level: 1, points: 5, task: x}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "onefile", s.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestDefaultSuite(t *testing.T) {
	s := Default()

	assert.Equal(t, "jac-bench-v1", s.Name)
	assert.Equal(t, 40, s.Len())

	// Five tests per level, eight levels, points scaling 5..40.
	byLevel := make(map[int]int)
	for _, tc := range s.Tests {
		byLevel[tc.Level]++
		assert.Equal(t, tc.Level*5, tc.Points, "points scale with level for %s", tc.ID)
	}
	require.Len(t, byLevel, 8)
	for level, count := range byLevel {
		assert.Equal(t, 5, count, "level %d", level)
	}

	first, ok := s.Lookup("basic_01")
	require.True(t, ok)
	assert.Equal(t, "Basic Syntax", first.Category)
	assert.Contains(t, first.Required, "with entry")

	last := s.Tests[s.Len()-1]
	assert.Equal(t, "integration_05", last.ID)
	assert.Equal(t, 40, last.Points)
}

func TestSubset(t *testing.T) {
	s := Default()

	sub, err := s.Subset([]string{"walker_01", "basic_01"})
	require.NoError(t, err)
	// Suite order is preserved regardless of requested order.
	assert.Equal(t, []string{"basic_01", "walker_01"}, sub.IDs())

	_, err = s.Subset([]string{"nope_99"})
	require.Error(t, err)
	var nf *errors.NotFoundError
	assert.True(t, errors.As(err, &nf))
}
