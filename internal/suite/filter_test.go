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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

func TestFilterApply(t *testing.T) {
	s := Default()
	f := NewFilter()

	tests := []struct {
		name       string
		expression string
		wantCount  int
		wantFirst  string
	}{
		{
			name:       "by level",
			expression: "level <= 2",
			wantCount:  10,
			wantFirst:  "basic_01",
		},
		{
			name:       "by category",
			expression: `category == "Walkers"`,
			wantCount:  5,
			wantFirst:  "walker_01",
		},
		{
			name:       "combined",
			expression: `level >= 7 && points == 35`,
			wantCount:  5,
			wantFirst:  "cloud_01",
		},
		{
			name:       "by id prefix",
			expression: `id startsWith "ai_"`,
			wantCount:  5,
			wantFirst:  "ai_01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Apply(s, tt.expression)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, got.Len())
			assert.Equal(t, tt.wantFirst, got.Tests[0].ID)
		})
	}
}

func TestFilterEmptyExpressionIsIdentity(t *testing.T) {
	s := Default()
	got, err := NewFilter().Apply(s, "")
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestFilterRejectsBadExpressions(t *testing.T) {
	s := Default()
	f := NewFilter()

	for _, expression := range []string{
		"level <= ",        // syntax error
		`category == "XY"`, // matches nothing
	} {
		_, err := f.Apply(s, expression)
		require.Error(t, err, "expression %q", expression)

		var cfgErr *errors.ConfigError
		assert.True(t, errors.As(err, &cfgErr))
	}
}

func TestFilterCachesCompiledPrograms(t *testing.T) {
	s := Default()
	f := NewFilter()

	_, err := f.Apply(s, "level == 1")
	require.NoError(t, err)
	_, err = f.Apply(s, "level == 1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.CacheSize())

	_, err = f.Apply(s, "level == 2")
	require.NoError(t, err)
	assert.Equal(t, 2, f.CacheSize())
}

func TestFilterPreservesSuiteOrder(t *testing.T) {
	s := Default()
	got, err := NewFilter().Apply(s, `level == 1 || level == 8`)
	require.NoError(t, err)

	require.Equal(t, 10, got.Len())
	assert.Equal(t, "basic_01", got.Tests[0].ID)
	assert.Equal(t, "integration_05", got.Tests[9].ID)
}
