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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{12 * time.Second, "12s"},
		{59 * time.Second, "59s"},
		{time.Minute, "1m"},
		{83 * time.Second, "1m 23s"},
		{2*time.Minute + 30*time.Second, "2m 30s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatElapsed(tt.d))
	}
}

func TestSpinnerNonTTYPrintsOnce(t *testing.T) {
	var buf bytes.Buffer
	s := &Spinner{w: &buf, isTTY: false}

	s.Start("Evaluating artifact")
	elapsed := s.Stop()

	assert.Equal(t, "Evaluating artifact\n", buf.String())
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
}

func TestSpinnerStopIdempotent(t *testing.T) {
	var buf bytes.Buffer
	s := &Spinner{w: &buf, isTTY: false}

	assert.Equal(t, time.Duration(0), s.Stop(), "stop before start should be a no-op")

	s.Start("working")
	s.Stop()
	assert.Equal(t, time.Duration(0), s.Stop())
}
