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

// Package store defines persistence for run artifacts, evaluation
// results, and collections. Artifacts and evaluation results are
// written once and immutable afterwards; collections hold references
// to artifacts, never copies.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/score"
)

var (
	// ErrArtifactExists is returned when writing an artifact whose id is
	// already taken. Artifacts are write-once.
	ErrArtifactExists = errors.New("artifact already exists")

	// ErrEvalResultExists is returned when an artifact has already been
	// evaluated. Callers wanting the result should read it instead.
	ErrEvalResultExists = errors.New("evaluation result already exists")

	// ErrArtifactReferenced is returned when deleting an artifact that a
	// collection still references.
	ErrArtifactReferenced = errors.New("artifact is referenced by a collection")

	// ErrCollectionExists is returned when creating a collection whose
	// name is already taken.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrAlreadyInCollection is returned when adding an artifact to a
	// collection that already holds it.
	ErrAlreadyInCollection = errors.New("artifact already in collection")
)

// ArtifactMetadata describes how an artifact was produced. The
// evaluation result written for an artifact carries a byte-identical
// copy of this metadata.
type ArtifactMetadata struct {
	Model      string `json:"model"`
	Variant    string `json:"variant"`
	SuiteName  string `json:"suite_name"`
	TotalTests int    `json:"total_tests"`

	// BatchSize is set for uniform batch sizing; BatchSizes for an
	// explicit size list. Exactly one of the two is populated.
	BatchSize  int   `json:"batch_size,omitempty"`
	BatchSizes []int `json:"batch_sizes,omitempty"`

	Temperature float64   `json:"temperature"`
	CreatedAt   time.Time `json:"created_at"`
}

// Artifact is the persisted outcome of one completed run: the final
// response map plus provenance. Test ids with no model response are
// present with an empty code string so the suite shape is preserved.
type Artifact struct {
	ID        string            `json:"artifact_id"`
	RunID     string            `json:"run_id"`
	Metadata  ArtifactMetadata  `json:"metadata"`
	Responses map[string]string `json:"responses"`
}

// ArtifactInfo is the listing view of an artifact: identity and
// provenance without the response payload.
type ArtifactInfo struct {
	ID        string           `json:"artifact_id"`
	RunID     string           `json:"run_id"`
	Metadata  ArtifactMetadata `json:"metadata"`
	Evaluated bool             `json:"evaluated"`
}

// Collection is a named, ordered group of artifact references. The
// denormalized metadata of the first member at creation time lets
// listings render without opening each artifact.
type Collection struct {
	Name        string           `json:"name"`
	ArtifactIDs []string         `json:"artifact_ids"`
	CreatedAt   time.Time        `json:"created_at"`
	Metadata    ArtifactMetadata `json:"metadata"`
}

// Contains reports whether the collection references the artifact.
func (c *Collection) Contains(artifactID string) bool {
	for _, id := range c.ArtifactIDs {
		if id == artifactID {
			return true
		}
	}
	return false
}

// Store persists artifacts, evaluation results, and collections.
//
// Implementations must serialize writes per artifact id, allow
// concurrent reads, and replace files atomically so a reader never
// observes a partially written artifact.
type Store interface {
	// WriteArtifact persists a completed run's artifact.
	// Returns ErrArtifactExists if the id is already taken.
	WriteArtifact(ctx context.Context, artifact *Artifact) error

	// ReadArtifact retrieves an artifact by id.
	// Returns *errors.NotFoundError if it does not exist.
	ReadArtifact(ctx context.Context, id string) (*Artifact, error)

	// ListArtifacts returns every stored artifact, newest first.
	ListArtifacts(ctx context.Context) ([]ArtifactInfo, error)

	// DeleteArtifact removes an artifact and its evaluation result.
	// Returns ErrArtifactReferenced while any collection references the
	// artifact, and *errors.NotFoundError if it does not exist.
	DeleteArtifact(ctx context.Context, id string) error

	// WriteEvalResult persists the evaluation of an artifact. The stored
	// envelope embeds the artifact's metadata unchanged.
	// Returns *errors.NotFoundError if the artifact does not exist and
	// ErrEvalResultExists if it was already evaluated.
	WriteEvalResult(ctx context.Context, result *score.EvalResult) error

	// ReadEvalResult retrieves the evaluation result for an artifact.
	// Returns *errors.NotFoundError if none has been written.
	ReadEvalResult(ctx context.Context, artifactID string) (*score.EvalResult, error)

	// CreateCollection groups artifacts under a name. Every id must
	// resolve to a stored artifact.
	// Returns ErrCollectionExists if the name is taken.
	CreateCollection(ctx context.Context, name string, artifactIDs []string) (*Collection, error)

	// GetCollection retrieves a collection by name.
	// Returns *errors.NotFoundError if it does not exist.
	GetCollection(ctx context.Context, name string) (*Collection, error)

	// ListCollections returns all collections sorted by name.
	ListCollections(ctx context.Context) ([]*Collection, error)

	// AddToCollection appends an artifact reference to a collection.
	// Returns ErrAlreadyInCollection if the reference is present.
	AddToCollection(ctx context.Context, name, artifactID string) error

	// RemoveFromCollection drops an artifact reference from a
	// collection. The artifact itself is untouched.
	RemoveFromCollection(ctx context.Context, name, artifactID string) error

	// DeleteCollection removes a collection. Member artifacts are
	// untouched.
	DeleteCollection(ctx context.Context, name string) error

	// Close releases store resources.
	Close() error
}
