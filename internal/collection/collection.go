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

// Package collection aggregates evaluated artifacts into named groups
// and computes cross-artifact statistics and pairwise comparisons.
// Collections hold references; the member artifacts stay loose in the
// store and deleting a referenced artifact is refused by the store.
package collection

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/log"
	"github.com/kevinjin420/jaseci-llmdocs/internal/score"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

// Stats summarizes the evaluated members of one collection. Means are
// over per-artifact overall percentages; the standard deviation uses the
// population formula and reports 0 below two evaluated members.
type Stats struct {
	Name          string             `json:"name"`
	Model         string             `json:"model"`
	Variant       string             `json:"variant"`
	Artifacts     int                `json:"artifacts"`
	Evaluated     int                `json:"evaluated"`
	Mean          float64            `json:"mean"`
	StdDev        float64            `json:"std_dev"`
	CategoryMeans map[string]float64 `json:"category_means"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Comparison is the pairwise diff of two collections. Deltas are second
// minus first over the union of categories; a category absent from one
// side contributes zero for that side.
type Comparison struct {
	First          Stats              `json:"first"`
	Second         Stats              `json:"second"`
	MeanDelta      float64            `json:"mean_delta"`
	CategoryDeltas map[string]float64 `json:"category_deltas"`
}

// Manager exposes collection operations over the store.
type Manager struct {
	store  store.Store
	logger *slog.Logger
}

// NewManager creates a collection manager.
func NewManager(st store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		store:  st,
		logger: log.WithComponent(logger, "collection"),
	}
}

// Create promotes a selection of artifacts into a named collection.
func (m *Manager) Create(ctx context.Context, name string, artifactIDs []string) (*store.Collection, error) {
	coll, err := m.store.CreateCollection(ctx, name, artifactIDs)
	if err != nil {
		return nil, err
	}
	m.logger.Info("collection created",
		slog.String("name", name),
		slog.Int("artifacts", len(artifactIDs)))
	return coll, nil
}

// Get returns one collection manifest.
func (m *Manager) Get(ctx context.Context, name string) (*store.Collection, error) {
	return m.store.GetCollection(ctx, name)
}

// List returns all collection manifests sorted by name.
func (m *Manager) List(ctx context.Context) ([]*store.Collection, error) {
	return m.store.ListCollections(ctx)
}

// Add appends an artifact reference to a collection.
func (m *Manager) Add(ctx context.Context, name, artifactID string) error {
	return m.store.AddToCollection(ctx, name, artifactID)
}

// Remove drops an artifact reference. The artifact itself stays stored.
func (m *Manager) Remove(ctx context.Context, name, artifactID string) error {
	return m.store.RemoveFromCollection(ctx, name, artifactID)
}

// Delete removes a collection manifest, leaving its members loose.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := m.store.DeleteCollection(ctx, name); err != nil {
		return err
	}
	m.logger.Info("collection deleted", slog.String("name", name))
	return nil
}

// Stats computes the aggregate statistics of one collection. Members
// without a stored evaluation count toward Artifacts but not the means.
func (m *Manager) Stats(ctx context.Context, name string) (*Stats, error) {
	coll, err := m.store.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}

	results := make([]*score.EvalResult, 0, len(coll.ArtifactIDs))
	for _, id := range coll.ArtifactIDs {
		result, err := m.store.ReadEvalResult(ctx, id)
		if err != nil {
			var nfErr *errors.NotFoundError
			if errors.As(err, &nfErr) {
				continue
			}
			return nil, err
		}
		results = append(results, result)
	}

	stats := &Stats{
		Name:          coll.Name,
		Model:         coll.Metadata.Model,
		Variant:       coll.Metadata.Variant,
		Artifacts:     len(coll.ArtifactIDs),
		Evaluated:     len(results),
		CategoryMeans: categoryMeans(results),
		CreatedAt:     coll.CreatedAt,
	}

	overall := make([]float64, 0, len(results))
	for _, r := range results {
		overall = append(overall, r.Summary.OverallPercentage)
	}
	stats.Mean = round2(mean(overall))
	stats.StdDev = round2(populationStdDev(overall))
	return stats, nil
}

// Compare diffs two collections: second minus first.
func (m *Manager) Compare(ctx context.Context, first, second string) (*Comparison, error) {
	a, err := m.Stats(ctx, first)
	if err != nil {
		return nil, err
	}
	b, err := m.Stats(ctx, second)
	if err != nil {
		return nil, err
	}

	deltas := make(map[string]float64)
	for category := range a.CategoryMeans {
		deltas[category] = 0
	}
	for category := range b.CategoryMeans {
		deltas[category] = 0
	}
	for category := range deltas {
		deltas[category] = round2(b.CategoryMeans[category] - a.CategoryMeans[category])
	}

	return &Comparison{
		First:          *a,
		Second:         *b,
		MeanDelta:      round2(b.Mean - a.Mean),
		CategoryDeltas: deltas,
	}, nil
}

// categoryMeans averages per-category percentages across results. Only
// results that contain a category contribute to its mean.
func categoryMeans(results []*score.EvalResult) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range results {
		for category, entry := range r.Summary.Categories {
			sums[category] += entry.Percentage
			counts[category]++
		}
	}

	means := make(map[string]float64, len(sums))
	for category, sum := range sums {
		means[category] = round2(sum / float64(counts[category]))
	}
	return means
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStdDev is σ = sqrt(Σ(x−μ)²/n). Below two samples the spread
// is undefined and reported as 0.
func populationStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mu := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mu
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SortedCategories returns category keys in lexical order for stable
// rendering.
func SortedCategories(means map[string]float64) []string {
	keys := make([]string, 0, len(means))
	for k := range means {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
