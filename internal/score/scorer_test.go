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
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinjin420/jaseci-llmdocs/internal/suite"
)

// fakeChecker scripts the hard check outcome. Safe for concurrent use.
type fakeChecker struct {
	mu     sync.Mutex
	ok     bool
	errs   []string
	err    error
	calls  int
	byCode map[string]bool
}

func (f *fakeChecker) Check(_ context.Context, code string) (CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return CheckResult{}, f.err
	}
	if f.byCode != nil {
		if ok, known := f.byCode[code]; known {
			return CheckResult{OK: ok, Errors: f.errs}, nil
		}
	}
	return CheckResult{OK: f.ok, Errors: f.errs}, nil
}

func threeTestSuite() *suite.Suite {
	return &suite.Suite{
		Name: "three",
		Tests: []suite.TestCase{
			{ID: "t1", Category: "Alpha", Level: 1, Points: 10, Task: "a", Required: []string{"A"}},
			{ID: "t2", Category: "Alpha", Level: 1, Points: 20, Task: "b", Required: []string{"B", "C"}},
			{ID: "t3", Category: "Beta", Level: 2, Points: 30, Task: "d", Required: []string{"D"}},
		},
	}
}

func TestEvaluateHappyPath(t *testing.T) {
	s := New(Config{}, nil)
	responses := map[string]string{"t1": "A", "t2": "B C", "t3": "D"}

	eval, err := s.Evaluate(context.Background(), "art-1", responses, threeTestSuite())
	require.NoError(t, err)

	assert.Equal(t, "art-1", eval.ArtifactID)
	require.Len(t, eval.Results, 3)
	assert.InDelta(t, 10, eval.Results[0].Score, 1e-9)
	assert.InDelta(t, 20, eval.Results[1].Score, 1e-9)
	assert.InDelta(t, 30, eval.Results[2].Score, 1e-9)

	assert.Equal(t, 60, eval.Summary.TotalMax)
	assert.InDelta(t, 100, eval.Summary.OverallPercentage, 1e-9)
	assert.Equal(t, 3, eval.Summary.TestsCompleted)
	for name, cat := range eval.Summary.Categories {
		assert.InDelta(t, 100, cat.Percentage, 1e-9, "category %s", name)
	}
}

func TestEvaluatePartialRequired(t *testing.T) {
	s := New(Config{}, nil)
	responses := map[string]string{"t1": "A", "t2": "B", "t3": ""}

	eval, err := s.Evaluate(context.Background(), "art-2", responses, threeTestSuite())
	require.NoError(t, err)

	assert.InDelta(t, 10, eval.Results[0].Score, 1e-9)
	assert.InDelta(t, 10, eval.Results[1].Score, 1e-9)
	assert.InDelta(t, 0, eval.Results[2].Score, 1e-9)

	assert.Equal(t, "1/2", eval.Results[1].RequiredFound)
	assert.InDelta(t, 10, eval.Results[1].Penalties.Required, 1e-9)
	assert.InDelta(t, 30, eval.Results[2].Penalties.Missing, 1e-9)

	assert.InDelta(t, 33.33, eval.Summary.OverallPercentage, 1e-9)
	assert.Equal(t, 2, eval.Summary.TestsCompleted)
	assert.Equal(t, 3, eval.Summary.TestsTotal)
}

func TestEvaluateForbiddenPenalty(t *testing.T) {
	s := New(Config{}, nil)
	ste := &suite.Suite{
		Name: "one",
		Tests: []suite.TestCase{
			{ID: "t1", Category: "C", Level: 1, Points: 10, Task: "a", Required: []string{"A"}, Forbidden: []string{"X"}},
		},
	}

	eval, err := s.Evaluate(context.Background(), "art-3", map[string]string{"t1": "A X X"}, ste)
	require.NoError(t, err)

	r := eval.Results[0]
	// Two occurrences, each deducting 25% of 10 points.
	assert.Equal(t, 2, r.ForbiddenFound)
	assert.InDelta(t, 5.0, r.Penalties.Forbidden, 1e-9)
	assert.InDelta(t, 5.0, r.Score, 1e-9)
}

func TestForbiddenFloorAtZero(t *testing.T) {
	s := New(Config{}, nil)
	ste := &suite.Suite{
		Name: "one",
		Tests: []suite.TestCase{
			{ID: "t1", Category: "C", Level: 1, Points: 5, Task: "a", Forbidden: []string{"x"}},
		},
	}

	eval, err := s.Evaluate(context.Background(), "art", map[string]string{"t1": "x x x x x x"}, ste)
	require.NoError(t, err)

	r := eval.Results[0]
	assert.InDelta(t, 0, r.Score, 1e-9)
	// The recorded penalty is the computed deduction, not the clamp.
	assert.InDelta(t, 6*0.25*5, r.Penalties.Forbidden, 1e-9)
}

func TestSoftSyntaxPenalty(t *testing.T) {
	s := New(Config{}, nil)
	ste := &suite.Suite{
		Name: "one",
		Tests: []suite.TestCase{
			{ID: "t1", Category: "C", Level: 1, Points: 20, Task: "a", Required: []string{"glob"}},
		},
	}

	// Two missing semicolons plus an unbalanced parenthesis: three
	// violations at 5% each.
	eval, err := s.Evaluate(context.Background(), "art", map[string]string{"t1": "glob x = 5\nprint(x"}, ste)
	require.NoError(t, err)

	r := eval.Results[0]
	assert.InDelta(t, 3*0.05*20, r.Penalties.Syntax, 1e-9)
	assert.InDelta(t, 20-3, r.Score, 1e-9)
}

func TestHardCheckTakesRemainder(t *testing.T) {
	ste := &suite.Suite{
		Name: "one",
		Tests: []suite.TestCase{
			{ID: "t1", Category: "C", Level: 1, Points: 10, Task: "a", Required: []string{"A"}},
		},
	}

	t.Run("default fraction wipes the remainder", func(t *testing.T) {
		checker := &fakeChecker{ok: false, errs: []string{"Error: bad syntax"}}
		s := New(Config{}, checker)

		eval, err := s.Evaluate(context.Background(), "art", map[string]string{"t1": "A"}, ste)
		require.NoError(t, err)

		r := eval.Results[0]
		assert.InDelta(t, 10, r.Penalties.JacCheck, 1e-9)
		assert.InDelta(t, 0, r.Score, 1e-9)
		assert.Contains(t, r.Feedback, "Error: bad syntax")
		assert.Equal(t, 1, checker.calls)
	})

	t.Run("half fraction leaves half", func(t *testing.T) {
		checker := &fakeChecker{ok: false}
		s := New(Config{CompileFraction: 0.5}, checker)

		eval, err := s.Evaluate(context.Background(), "art", map[string]string{"t1": "A"}, ste)
		require.NoError(t, err)

		r := eval.Results[0]
		assert.InDelta(t, 5, r.Penalties.JacCheck, 1e-9)
		assert.InDelta(t, 5, r.Score, 1e-9)
	})

	t.Run("checker error counts as failure", func(t *testing.T) {
		checker := &fakeChecker{err: fmt.Errorf("exec: jac: not found")}
		s := New(Config{}, checker)

		eval, err := s.Evaluate(context.Background(), "art", map[string]string{"t1": "A"}, ste)
		require.NoError(t, err)
		assert.InDelta(t, 0, eval.Results[0].Score, 1e-9)
	})

	t.Run("nil checker skips the hard check", func(t *testing.T) {
		s := New(Config{}, nil)
		eval, err := s.Evaluate(context.Background(), "art", map[string]string{"t1": "A"}, ste)
		require.NoError(t, err)
		assert.InDelta(t, 10, eval.Results[0].Score, 1e-9)
		assert.InDelta(t, 0, eval.Results[0].Penalties.JacCheck, 1e-9)
	})

	t.Run("missing response skips the checker", func(t *testing.T) {
		checker := &fakeChecker{ok: true}
		s := New(Config{}, checker)
		eval, err := s.Evaluate(context.Background(), "art", map[string]string{}, ste)
		require.NoError(t, err)
		assert.Equal(t, 0, checker.calls)
		assert.InDelta(t, 10, eval.Results[0].Penalties.Missing, 1e-9)
	})
}

func TestEvaluateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Config{}, nil)
	_, err := s.Evaluate(ctx, "art", map[string]string{"t1": "A"}, threeTestSuite())
	require.Error(t, err)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	s := New(Config{Workers: 4}, nil)
	ste := suite.Default()

	responses := make(map[string]string, ste.Len())
	for i, tc := range ste.Tests {
		// Hit some required patterns, miss others.
		if i%3 == 0 {
			responses[tc.ID] = tc.Required[0] + "; extra {"
		} else if i%3 == 1 {
			responses[tc.ID] = "unrelated text"
		}
	}

	first, err := s.Evaluate(context.Background(), "art", responses, ste)
	require.NoError(t, err)
	second, err := s.Evaluate(context.Background(), "art", responses, ste)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestMonotonicityOfRequiredPatterns(t *testing.T) {
	s := New(Config{}, nil)
	responses := map[string]string{"t1": "hello world;"}

	scoreWith := func(required []string) float64 {
		ste := &suite.Suite{
			Name: "one",
			Tests: []suite.TestCase{
				{ID: "t1", Category: "C", Level: 1, Points: 10, Task: "a", Required: required},
			},
		}
		eval, err := s.Evaluate(context.Background(), "art", responses, ste)
		require.NoError(t, err)
		return eval.Results[0].Score
	}

	base := scoreWith([]string{"hello"})
	withMiss := scoreWith([]string{"hello", "absent"})
	withHit := scoreWith([]string{"hello", "world"})

	assert.LessOrEqual(t, withMiss, base)
	assert.LessOrEqual(t, withHit, base)
}

func TestScoreRangeAndDecomposition(t *testing.T) {
	s := New(Config{}, nil)
	ste := suite.Default()

	responses := make(map[string]string, ste.Len())
	for i, tc := range ste.Tests {
		switch i % 4 {
		case 0:
			responses[tc.ID] = tc.Required[0]
		case 1:
			responses[tc.ID] = "for x = 1\nprint(x"
		case 2:
			responses[tc.ID] = ""
		case 3:
			responses[tc.ID] = tc.Task
		}
	}

	eval, err := s.Evaluate(context.Background(), "art", responses, ste)
	require.NoError(t, err)

	var total float64
	for _, r := range eval.Results {
		assert.GreaterOrEqual(t, r.Score, 0.0, "test %s", r.TestID)
		assert.LessOrEqual(t, r.Score, float64(r.MaxScore), "test %s", r.TestID)
		total += r.Score
	}
	assert.GreaterOrEqual(t, eval.Summary.OverallPercentage, 0.0)
	assert.LessOrEqual(t, eval.Summary.OverallPercentage, 100.0)

	var byCategory, byLevel float64
	perCategory := make(map[string]float64)
	perLevel := make(map[int]float64)
	for _, r := range eval.Results {
		perCategory[r.Category] += r.Score
		perLevel[r.Level] += r.Score
	}
	for _, v := range perCategory {
		byCategory += v
	}
	for _, v := range perLevel {
		byLevel += v
	}
	assert.InDelta(t, total, byCategory, 1e-9)
	assert.InDelta(t, total, byLevel, 1e-9)
}

func TestSummaryBreakdownKeys(t *testing.T) {
	s := New(Config{}, nil)
	ste := suite.Default()

	eval, err := s.Evaluate(context.Background(), "art", map[string]string{}, ste)
	require.NoError(t, err)

	require.Len(t, eval.Summary.Levels, 8)
	assert.Contains(t, eval.Summary.Levels, "Level 1")
	assert.Contains(t, eval.Summary.Levels, "Level 8")

	keys := SortedLevelKeys(eval.Summary.Levels)
	assert.Equal(t, "Level 1", keys[0])
	assert.Equal(t, "Level 8", keys[7])
}

func TestSortedLevelKeysNumericOrder(t *testing.T) {
	levels := map[string]BreakdownEntry{
		"Level 10": {}, "Level 2": {}, "Level 1": {}, "Level 9": {},
	}
	assert.Equal(t, []string{"Level 1", "Level 2", "Level 9", "Level 10"}, SortedLevelKeys(levels))
}
