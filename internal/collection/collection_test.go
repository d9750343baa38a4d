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

package collection

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinjin420/jaseci-llmdocs/internal/clock"
	"github.com/kevinjin420/jaseci-llmdocs/internal/score"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store/fs"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

func newManager(t *testing.T) (*Manager, *fs.Store) {
	t.Helper()
	st, err := fs.New(t.TempDir(), clock.System(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return NewManager(st, slog.New(slog.DiscardHandler)), st
}

func writeArtifact(t *testing.T, st *fs.Store, id, model string) {
	t.Helper()
	err := st.WriteArtifact(context.Background(), &store.Artifact{
		ID:    id,
		RunID: "run-" + id,
		Metadata: store.ArtifactMetadata{
			Model:      model,
			Variant:    "full",
			SuiteName:  "jac-bench",
			TotalTests: 2,
			BatchSize:  45,
			CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		Responses: map[string]string{"t01": "node A {}", "t02": "node B {}"},
	})
	require.NoError(t, err)
}

func writeEval(t *testing.T, st *fs.Store, id string, overall float64, categories map[string]float64) {
	t.Helper()
	cats := make(map[string]score.BreakdownEntry, len(categories))
	for name, pct := range categories {
		cats[name] = score.BreakdownEntry{Score: pct / 10, Max: 10, Percentage: pct, Count: 1}
	}
	err := st.WriteEvalResult(context.Background(), &score.EvalResult{
		ArtifactID: id,
		Summary: score.Summary{
			TotalScore:        overall / 10,
			TotalMax:          10,
			OverallPercentage: overall,
			TestsCompleted:    2,
			TestsTotal:        2,
			Categories:        cats,
			Levels:            map[string]score.BreakdownEntry{"Level 1": {Percentage: overall}},
		},
	})
	require.NoError(t, err)
}

func TestManagerCreateGetDelete(t *testing.T) {
	mgr, st := newManager(t)
	ctx := context.Background()
	writeArtifact(t, st, "a1", "gpt-4o")
	writeArtifact(t, st, "a2", "gpt-4o")

	coll, err := mgr.Create(ctx, "baseline", []string{"a1", "a2"})
	require.NoError(t, err)
	assert.Equal(t, "baseline", coll.Name)
	assert.True(t, coll.Contains("a1"))
	assert.True(t, coll.Contains("a2"))
	assert.Equal(t, "gpt-4o", coll.Metadata.Model)

	got, err := mgr.Get(ctx, "baseline")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, got.ArtifactIDs)

	list, err := mgr.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "baseline", list[0].Name)

	require.NoError(t, mgr.Delete(ctx, "baseline"))
	_, err = mgr.Get(ctx, "baseline")
	var nfErr *errors.NotFoundError
	require.ErrorAs(t, err, &nfErr)

	// Members stay loose after the manifest goes away.
	_, err = st.ReadArtifact(ctx, "a1")
	require.NoError(t, err)
}

func TestManagerAddRemove(t *testing.T) {
	mgr, st := newManager(t)
	ctx := context.Background()
	writeArtifact(t, st, "a1", "gpt-4o")
	writeArtifact(t, st, "a2", "gpt-4o")

	_, err := mgr.Create(ctx, "baseline", []string{"a1"})
	require.NoError(t, err)

	require.NoError(t, mgr.Add(ctx, "baseline", "a2"))
	got, err := mgr.Get(ctx, "baseline")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, got.ArtifactIDs)

	require.NoError(t, mgr.Remove(ctx, "baseline", "a1"))
	got, err = mgr.Get(ctx, "baseline")
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, got.ArtifactIDs)

	// The removed artifact is a reference drop, not a delete.
	_, err = st.ReadArtifact(ctx, "a1")
	require.NoError(t, err)
}

func TestStatsSingleArtifact(t *testing.T) {
	mgr, st := newManager(t)
	ctx := context.Background()
	writeArtifact(t, st, "a1", "claude-sonnet")
	writeEval(t, st, "a1", 85.5, map[string]float64{"Basics": 90, "Walkers": 81})

	_, err := mgr.Create(ctx, "solo", []string{"a1"})
	require.NoError(t, err)

	stats, err := mgr.Stats(ctx, "solo")
	require.NoError(t, err)
	assert.Equal(t, "solo", stats.Name)
	assert.Equal(t, "claude-sonnet", stats.Model)
	assert.Equal(t, "full", stats.Variant)
	assert.Equal(t, 1, stats.Artifacts)
	assert.Equal(t, 1, stats.Evaluated)
	assert.InDelta(t, 85.5, stats.Mean, 1e-9)
	assert.Zero(t, stats.StdDev, "spread is undefined below two samples")
	assert.InDelta(t, 90, stats.CategoryMeans["Basics"], 1e-9)
	assert.InDelta(t, 81, stats.CategoryMeans["Walkers"], 1e-9)
}

func TestStatsPopulationStdDev(t *testing.T) {
	mgr, st := newManager(t)
	ctx := context.Background()
	writeArtifact(t, st, "a1", "gpt-4o")
	writeArtifact(t, st, "a2", "gpt-4o")
	writeArtifact(t, st, "a3", "gpt-4o")
	writeEval(t, st, "a1", 80, map[string]float64{"Basics": 80, "Walkers": 60})
	writeEval(t, st, "a2", 90, map[string]float64{"Basics": 90, "Walkers": 70})
	writeEval(t, st, "a3", 100, map[string]float64{"Basics": 100})

	_, err := mgr.Create(ctx, "trio", []string{"a1", "a2", "a3"})
	require.NoError(t, err)

	stats, err := mgr.Stats(ctx, "trio")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Artifacts)
	assert.Equal(t, 3, stats.Evaluated)
	assert.InDelta(t, 90, stats.Mean, 1e-9)
	// sqrt((100+0+100)/3) rounded to two decimals.
	assert.InDelta(t, 8.16, stats.StdDev, 1e-9)
	assert.InDelta(t, 90, stats.CategoryMeans["Basics"], 1e-9)
	// Walkers only appears in two results; its mean divides by two.
	assert.InDelta(t, 65, stats.CategoryMeans["Walkers"], 1e-9)
}

func TestStatsSkipsUnevaluatedMembers(t *testing.T) {
	mgr, st := newManager(t)
	ctx := context.Background()
	writeArtifact(t, st, "a1", "gpt-4o")
	writeArtifact(t, st, "a2", "gpt-4o")
	writeArtifact(t, st, "a3", "gpt-4o")
	writeEval(t, st, "a1", 80, map[string]float64{"Basics": 80})
	writeEval(t, st, "a2", 100, map[string]float64{"Basics": 100})

	_, err := mgr.Create(ctx, "mixed", []string{"a1", "a2", "a3"})
	require.NoError(t, err)

	stats, err := mgr.Stats(ctx, "mixed")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Artifacts)
	assert.Equal(t, 2, stats.Evaluated)
	assert.InDelta(t, 90, stats.Mean, 1e-9)
	assert.InDelta(t, 10, stats.StdDev, 1e-9)
}

func TestStatsNoEvaluatedMembers(t *testing.T) {
	mgr, st := newManager(t)
	ctx := context.Background()
	writeArtifact(t, st, "a1", "gpt-4o")

	_, err := mgr.Create(ctx, "raw", []string{"a1"})
	require.NoError(t, err)

	stats, err := mgr.Stats(ctx, "raw")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Artifacts)
	assert.Zero(t, stats.Evaluated)
	assert.Zero(t, stats.Mean)
	assert.Zero(t, stats.StdDev)
	assert.Empty(t, stats.CategoryMeans)
}

func TestStatsUnknownCollection(t *testing.T) {
	mgr, _ := newManager(t)

	_, err := mgr.Stats(context.Background(), "nope")
	var nfErr *errors.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestCompare(t *testing.T) {
	mgr, st := newManager(t)
	ctx := context.Background()
	writeArtifact(t, st, "a1", "gpt-4o")
	writeArtifact(t, st, "b1", "claude-sonnet")
	writeEval(t, st, "a1", 80, map[string]float64{"Basics": 80, "Graphs": 60})
	writeEval(t, st, "b1", 90, map[string]float64{"Basics": 90, "Walkers": 70})

	_, err := mgr.Create(ctx, "before", []string{"a1"})
	require.NoError(t, err)
	_, err = mgr.Create(ctx, "after", []string{"b1"})
	require.NoError(t, err)

	cmp, err := mgr.Compare(ctx, "before", "after")
	require.NoError(t, err)
	assert.Equal(t, "before", cmp.First.Name)
	assert.Equal(t, "after", cmp.Second.Name)
	assert.InDelta(t, 10, cmp.MeanDelta, 1e-9)

	// Deltas cover the union of categories; absent sides contribute zero.
	require.Len(t, cmp.CategoryDeltas, 3)
	assert.InDelta(t, 10, cmp.CategoryDeltas["Basics"], 1e-9)
	assert.InDelta(t, -60, cmp.CategoryDeltas["Graphs"], 1e-9)
	assert.InDelta(t, 70, cmp.CategoryDeltas["Walkers"], 1e-9)
}

func TestCompareUnknownCollection(t *testing.T) {
	mgr, st := newManager(t)
	ctx := context.Background()
	writeArtifact(t, st, "a1", "gpt-4o")
	_, err := mgr.Create(ctx, "only", []string{"a1"})
	require.NoError(t, err)

	var nfErr *errors.NotFoundError
	_, err = mgr.Compare(ctx, "only", "missing")
	require.ErrorAs(t, err, &nfErr)
	_, err = mgr.Compare(ctx, "missing", "only")
	require.ErrorAs(t, err, &nfErr)
}

func TestSortedCategories(t *testing.T) {
	keys := SortedCategories(map[string]float64{
		"Walkers": 1, "Basics": 2, "Graphs": 3,
	})
	assert.Equal(t, []string{"Basics", "Graphs", "Walkers"}, keys)
}
