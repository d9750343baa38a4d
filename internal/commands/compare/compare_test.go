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

package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderDelta(t *testing.T) {
	// Styles collapse to plain text when stdout is not a terminal, so
	// only the sign formatting is asserted here.
	assert.Contains(t, renderDelta(1.5), "+1.50%")
	assert.Contains(t, renderDelta(-3.25), "-3.25%")
	assert.Contains(t, renderDelta(0), "+0.00%")
}

func TestNewCommandArgs(t *testing.T) {
	cmd := NewCommand()
	assert.Error(t, cmd.Args(cmd, []string{"only-one"}))
	assert.NoError(t, cmd.Args(cmd, []string{"baseline", "candidate"}))
}
