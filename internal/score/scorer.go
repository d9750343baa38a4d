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

// Package score evaluates model responses against a test suite. Scoring is
// a deterministic function of (responses, suite): per test, required
// pattern credit, then forbidden, soft-syntax, and hard-check deductions in
// that order, each floored at zero. Pattern matching is case-sensitive and
// literal.
package score

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/kevinjin420/jaseci-llmdocs/internal/suite"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

// Config holds the scoring fractions and worker pool size.
type Config struct {
	// ForbiddenFraction of points deducted per forbidden pattern match.
	ForbiddenFraction float64

	// SyntaxFraction of points deducted per soft rule violation.
	SyntaxFraction float64

	// CompileFraction of the remaining score deducted when the hard
	// check fails. 1.0 wipes the remainder.
	CompileFraction float64

	// Workers bounds concurrent per-test scoring.
	Workers int
}

// DefaultConfig returns the standard scoring configuration.
func DefaultConfig() Config {
	return Config{
		ForbiddenFraction: 0.25,
		SyntaxFraction:    0.05,
		CompileFraction:   1.0,
		Workers:           defaultWorkers(),
	}
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Scorer evaluates artifacts. A nil checker disables the hard compile
// check; soft rules still apply.
type Scorer struct {
	cfg     Config
	checker SyntaxChecker
}

// New creates a Scorer. Zero-valued config fields take defaults.
func New(cfg Config, checker SyntaxChecker) *Scorer {
	def := DefaultConfig()
	if cfg.ForbiddenFraction == 0 {
		cfg.ForbiddenFraction = def.ForbiddenFraction
	}
	if cfg.SyntaxFraction == 0 {
		cfg.SyntaxFraction = def.SyntaxFraction
	}
	if cfg.CompileFraction == 0 {
		cfg.CompileFraction = def.CompileFraction
	}
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	return &Scorer{cfg: cfg, checker: checker}
}

// Evaluate scores every test in the suite against the response map.
// Results follow suite order regardless of worker scheduling. The error is
// non-nil only when ctx is cancelled; scoring itself cannot fail.
func (s *Scorer) Evaluate(ctx context.Context, artifactID string, responses map[string]string, ste *suite.Suite) (*EvalResult, error) {
	results := make([]TestResult, len(ste.Tests))

	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup
	for i, tc := range ste.Tests {
		wg.Add(1)
		go func(i int, tc suite.TestCase) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.scoreTest(ctx, tc, responses[tc.ID])
		}(i, tc)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &errors.CancelledError{Operation: "evaluation of " + artifactID}
	}

	return &EvalResult{
		ArtifactID: artifactID,
		Results:    results,
		Summary:    buildSummary(results, responses),
	}, nil
}

// scoreTest applies the deduction pipeline to one test. Order is fixed:
// required credit, forbidden, soft syntax, hard check on the remainder.
func (s *Scorer) scoreTest(ctx context.Context, tc suite.TestCase, response string) TestResult {
	r := TestResult{
		TestID:   tc.ID,
		Category: tc.Category,
		Level:    tc.Level,
		MaxScore: tc.Points,
	}
	points := float64(tc.Points)

	if strings.TrimSpace(response) == "" {
		r.Penalties.Missing = points
		r.RequiredFound = fmt.Sprintf("0/%d", len(tc.Required))
		r.Feedback = append(r.Feedback, "no response recorded for this test")
		return r
	}

	// Required patterns: partial credit by fraction found.
	found := 0
	for _, pattern := range tc.Required {
		if strings.Contains(response, pattern) {
			found++
		} else {
			r.Feedback = append(r.Feedback, fmt.Sprintf("missing required element: %q", pattern))
		}
	}
	score := points
	if len(tc.Required) > 0 {
		score = float64(found) / float64(len(tc.Required)) * points
	}
	r.Penalties.Required = points - score
	r.RequiredFound = fmt.Sprintf("%d/%d", found, len(tc.Required))

	// Forbidden patterns: every occurrence costs the forbidden fraction.
	matches := 0
	for _, pattern := range tc.Forbidden {
		if pattern == "" {
			continue
		}
		if n := strings.Count(response, pattern); n > 0 {
			matches += n
			r.Feedback = append(r.Feedback, fmt.Sprintf("forbidden element %q found %d time(s)", pattern, n))
		}
	}
	r.ForbiddenFound = matches
	if matches > 0 {
		r.Penalties.Forbidden = float64(matches) * s.cfg.ForbiddenFraction * points
		score = math.Max(0, score-r.Penalties.Forbidden)
	}

	// Soft syntax rules.
	if violations := softSyntaxViolations(response); len(violations) > 0 {
		r.Feedback = append(r.Feedback, violations...)
		r.Penalties.Syntax = float64(len(violations)) * s.cfg.SyntaxFraction * points
		score = math.Max(0, score-r.Penalties.Syntax)
	}

	// Hard check takes its fraction of whatever is left. Skipped when no
	// checker is configured or the evaluation is being cancelled.
	if s.checker != nil && ctx.Err() == nil {
		failed := false
		result, err := s.checker.Check(ctx, response)
		switch {
		case err != nil:
			failed = true
			r.Feedback = append(r.Feedback, fmt.Sprintf("syntax checker error: %v", err))
		case !result.OK:
			failed = true
			r.Feedback = append(r.Feedback, result.Errors...)
		}
		if failed {
			r.Penalties.JacCheck = s.cfg.CompileFraction * score
			score = math.Max(0, score-r.Penalties.JacCheck)
		}
	}

	r.Score = score
	r.Percentage = round2(score / points * 100)
	return r
}

// buildSummary aggregates full-precision test results and rounds the
// reported figures to two decimal places.
func buildSummary(results []TestResult, responses map[string]string) Summary {
	summary := Summary{
		Categories: make(map[string]BreakdownEntry),
		Levels:     make(map[string]BreakdownEntry),
		TestsTotal: len(results),
	}

	var totalScore float64
	totalMax := 0
	for _, r := range results {
		totalScore += r.Score
		totalMax += r.MaxScore
		summary.TotalPenalties.add(r.Penalties)

		if strings.TrimSpace(responses[r.TestID]) != "" {
			summary.TestsCompleted++
		}

		cat := summary.Categories[r.Category]
		cat.Score += r.Score
		cat.Max += r.MaxScore
		cat.Count++
		summary.Categories[r.Category] = cat

		levelKey := LevelKey(r.Level)
		lvl := summary.Levels[levelKey]
		lvl.Score += r.Score
		lvl.Max += r.MaxScore
		lvl.Count++
		summary.Levels[levelKey] = lvl
	}

	for k, e := range summary.Categories {
		e.Percentage = percentage(e.Score, e.Max)
		e.Score = round2(e.Score)
		summary.Categories[k] = e
	}
	for k, e := range summary.Levels {
		e.Percentage = percentage(e.Score, e.Max)
		e.Score = round2(e.Score)
		summary.Levels[k] = e
	}

	summary.TotalMax = totalMax
	summary.OverallPercentage = percentage(totalScore, totalMax)
	summary.TotalScore = round2(totalScore)
	summary.TotalPenalties = roundPenalties(summary.TotalPenalties)
	return summary
}

func percentage(score float64, max int) float64 {
	if max <= 0 {
		return 0
	}
	return round2(score / float64(max) * 100)
}

func roundPenalties(p Penalties) Penalties {
	return Penalties{
		Missing:   round2(p.Missing),
		Required:  round2(p.Required),
		Forbidden: round2(p.Forbidden),
		Syntax:    round2(p.Syntax),
		JacCheck:  round2(p.JacCheck),
	}
}
