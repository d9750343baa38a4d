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

package score

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// CheckResult is the outcome of an external syntax check.
type CheckResult struct {
	// OK is true when the code passed the check (or the checker chose to
	// skip, e.g. the binary is not installed).
	OK bool

	// Errors holds checker diagnostics when OK is false.
	Errors []string
}

// SyntaxChecker runs the hard compile check on a response. Implementations
// must respect the context deadline; a timed-out check counts as failed.
type SyntaxChecker interface {
	Check(ctx context.Context, code string) (CheckResult, error)
}

// Penalties records how many points each deduction kind removed from one
// test. Values are in points, full precision.
type Penalties struct {
	// Missing is the full point value, charged when no response exists.
	Missing float64 `json:"missing"`

	// Required is the credit lost to absent required patterns.
	Required float64 `json:"required"`

	// Forbidden is the deduction for matched forbidden patterns.
	Forbidden float64 `json:"forbidden"`

	// Syntax is the deduction for soft textual rule violations.
	Syntax float64 `json:"syntax"`

	// JacCheck is the deduction for a failed hard compile check.
	JacCheck float64 `json:"jac_check"`
}

// add accumulates another test's penalties.
func (p *Penalties) add(other Penalties) {
	p.Missing += other.Missing
	p.Required += other.Required
	p.Forbidden += other.Forbidden
	p.Syntax += other.Syntax
	p.JacCheck += other.JacCheck
}

// TestResult is the scored outcome of one test case. Score keeps full
// precision so aggregation is exact; Percentage is rounded for reporting.
type TestResult struct {
	TestID         string    `json:"test_id"`
	Category       string    `json:"category"`
	Level          int       `json:"level"`
	Score          float64   `json:"score"`
	MaxScore       int       `json:"max_score"`
	Percentage     float64   `json:"percentage"`
	RequiredFound  string    `json:"required_found"`
	ForbiddenFound int       `json:"forbidden_found"`
	Penalties      Penalties `json:"penalties"`
	Feedback       []string  `json:"feedback,omitempty"`
}

// BreakdownEntry aggregates scores for one category or level.
type BreakdownEntry struct {
	Score      float64 `json:"score"`
	Max        int     `json:"max"`
	Percentage float64 `json:"percentage"`
	Count      int     `json:"count"`
}

// Summary is the reported roll-up of an evaluation. All floating-point
// fields are rounded to two decimal places; the per-test results retain
// full precision.
type Summary struct {
	TotalScore        float64                   `json:"total_score"`
	TotalMax          int                       `json:"total_max"`
	OverallPercentage float64                   `json:"overall_percentage"`
	TestsCompleted    int                       `json:"tests_completed"`
	TestsTotal        int                       `json:"tests_total"`
	Categories        map[string]BreakdownEntry `json:"category_breakdown"`
	Levels            map[string]BreakdownEntry `json:"level_breakdown"`
	TotalPenalties    Penalties                 `json:"total_penalties"`
}

// EvalResult is the deterministic output of scoring one artifact against a
// suite. Results follow suite order.
type EvalResult struct {
	ArtifactID string       `json:"artifact_id"`
	Results    []TestResult `json:"results"`
	Summary    Summary      `json:"summary"`
}

// LevelKey formats the level-breakdown key for a numeric level.
func LevelKey(level int) string {
	return fmt.Sprintf("Level %d", level)
}

// SortedLevelKeys returns level-breakdown keys in ascending numeric order.
// Map iteration order and JSON key order are not numeric for ten or more
// levels, so renderers use this.
func SortedLevelKeys(levels map[string]BreakdownEntry) []string {
	keys := make([]string, 0, len(levels))
	for k := range levels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return levelOf(keys[i]) < levelOf(keys[j])
	})
	return keys
}

func levelOf(key string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(key, "Level "))
	if err != nil {
		return 0
	}
	return n
}

// SortedCategoryKeys returns category-breakdown keys in lexical order.
func SortedCategoryKeys(categories map[string]BreakdownEntry) []string {
	keys := make([]string, 0, len(categories))
	for k := range categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// round2 rounds to two decimal places for reported summary values.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
