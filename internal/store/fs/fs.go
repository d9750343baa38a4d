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

// Package fs implements the artifact store on the local filesystem.
//
// Layout under the root directory:
//
//	artifacts/<artifact-id>/responses.json
//	artifacts/<artifact-id>/eval.json
//	collections/<name>.json
//
// Every file is replaced atomically (write to a temp file, fsync,
// rename), so concurrent readers see either the old or the new
// content, never a torn write. Writes are serialized per artifact id;
// collection mutations and artifact deletion share one lock so the
// reference check in DeleteArtifact cannot race a concurrent add.
package fs

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/internal/clock"
	"github.com/kevinjin420/jaseci-llmdocs/internal/score"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store"
	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

const (
	artifactsDir   = "artifacts"
	collectionsDir = "collections"
	responsesFile  = "responses.json"
	evalFile       = "eval.json"
)

// Store is the filesystem-backed artifact store.
type Store struct {
	root   string
	clock  clock.Clock
	logger *slog.Logger

	// artifactMu serializes writes per artifact id.
	mu         sync.Mutex
	artifactMu map[string]*sync.Mutex

	// collMu guards collection files and the reference check that
	// protects artifact deletion.
	collMu sync.Mutex
}

var _ store.Store = (*Store)(nil)

// New opens (or initializes) a store rooted at dir.
func New(dir string, clk clock.Clock, logger *slog.Logger) (*Store, error) {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, sub := range []string{artifactsDir, collectionsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, &errors.StoreError{Op: "init", Key: sub, Cause: err}
		}
	}
	return &Store{
		root:       dir,
		clock:      clk,
		logger:     logger,
		artifactMu: make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Close releases store resources. The filesystem store holds none.
func (s *Store) Close() error { return nil }

func (s *Store) artifactDir(id string) string {
	return filepath.Join(s.root, artifactsDir, id)
}

func (s *Store) collectionPath(name string) string {
	return filepath.Join(s.root, collectionsDir, name+".json")
}

// lockArtifact acquires the per-artifact write lock and returns the
// release function.
func (s *Store) lockArtifact(id string) func() {
	s.mu.Lock()
	m := s.artifactMu[id]
	if m == nil {
		m = &sync.Mutex{}
		s.artifactMu[id] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// evalEnvelope is the on-disk form of an evaluation result. It embeds
// the artifact's metadata verbatim so both files agree on provenance.
type evalEnvelope struct {
	ArtifactID  string                 `json:"artifact_id"`
	Metadata    store.ArtifactMetadata `json:"metadata"`
	EvaluatedAt time.Time              `json:"evaluated_at"`
	Results     []score.TestResult     `json:"results"`
	Summary     score.Summary          `json:"summary"`
}

// WriteArtifact persists a completed run's artifact. Artifacts are
// write-once; an existing id is refused.
func (s *Store) WriteArtifact(ctx context.Context, artifact *store.Artifact) error {
	if err := validateArtifact(artifact); err != nil {
		return err
	}
	unlock := s.lockArtifact(artifact.ID)
	defer unlock()

	dir := s.artifactDir(artifact.ID)
	path := filepath.Join(dir, responsesFile)
	if _, err := os.Stat(path); err == nil {
		storeWrites.WithLabelValues("artifact", "conflict").Inc()
		return store.ErrArtifactExists
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		storeWrites.WithLabelValues("artifact", "error").Inc()
		return &errors.StoreError{Op: "write artifact", Key: artifact.ID, Cause: err}
	}
	if err := writeJSON(path, artifact); err != nil {
		storeWrites.WithLabelValues("artifact", "error").Inc()
		return &errors.StoreError{Op: "write artifact", Key: artifact.ID, Cause: err}
	}
	storeWrites.WithLabelValues("artifact", "ok").Inc()
	s.logger.Debug("artifact written",
		slog.String("artifact_id", artifact.ID),
		slog.Int("responses", len(artifact.Responses)))
	return nil
}

// ReadArtifact retrieves an artifact by id.
func (s *Store) ReadArtifact(ctx context.Context, id string) (*store.Artifact, error) {
	var artifact store.Artifact
	path := filepath.Join(s.artifactDir(id), responsesFile)
	if err := readJSON(path, &artifact); err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.NotFoundError{Resource: "artifact", ID: id}
		}
		return nil, &errors.StoreError{Op: "read artifact", Key: id, Cause: err}
	}
	return &artifact, nil
}

// ListArtifacts returns every stored artifact, newest first. Malformed
// entries are skipped rather than failing the listing.
func (s *Store) ListArtifacts(ctx context.Context) ([]store.ArtifactInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, artifactsDir))
	if err != nil {
		return nil, &errors.StoreError{Op: "list artifacts", Cause: err}
	}

	infos := make([]store.ArtifactInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		var artifact store.Artifact
		if err := readJSON(filepath.Join(s.artifactDir(id), responsesFile), &artifact); err != nil {
			s.logger.Warn("skipping unreadable artifact",
				slog.String("artifact_id", id), slog.Any("error", err))
			continue
		}
		_, evalErr := os.Stat(filepath.Join(s.artifactDir(id), evalFile))
		infos = append(infos, store.ArtifactInfo{
			ID:        artifact.ID,
			RunID:     artifact.RunID,
			Metadata:  artifact.Metadata,
			Evaluated: evalErr == nil,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Metadata.CreatedAt.Equal(infos[j].Metadata.CreatedAt) {
			return infos[i].Metadata.CreatedAt.After(infos[j].Metadata.CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// DeleteArtifact removes an artifact and its evaluation result. The
// delete is refused while any collection references the artifact.
func (s *Store) DeleteArtifact(ctx context.Context, id string) error {
	s.collMu.Lock()
	defer s.collMu.Unlock()

	holders, err := s.referencingCollections(id)
	if err != nil {
		return err
	}
	if len(holders) > 0 {
		storeDeletes.WithLabelValues("referenced").Inc()
		return errors.Wrapf(store.ErrArtifactReferenced,
			"delete artifact %s: held by %s", id, strings.Join(holders, ", "))
	}

	unlock := s.lockArtifact(id)
	defer unlock()

	dir := s.artifactDir(id)
	if _, err := os.Stat(filepath.Join(dir, responsesFile)); err != nil {
		if os.IsNotExist(err) {
			return &errors.NotFoundError{Resource: "artifact", ID: id}
		}
		storeDeletes.WithLabelValues("error").Inc()
		return &errors.StoreError{Op: "delete artifact", Key: id, Cause: err}
	}
	if err := os.RemoveAll(dir); err != nil {
		storeDeletes.WithLabelValues("error").Inc()
		return &errors.StoreError{Op: "delete artifact", Key: id, Cause: err}
	}
	storeDeletes.WithLabelValues("ok").Inc()
	s.logger.Info("artifact deleted", slog.String("artifact_id", id))
	return nil
}

// WriteEvalResult persists the evaluation of an artifact, embedding
// the artifact's metadata in the stored envelope.
func (s *Store) WriteEvalResult(ctx context.Context, result *score.EvalResult) error {
	if result == nil || result.ArtifactID == "" {
		return &errors.ConfigError{Key: "eval_result.artifact_id", Reason: "must not be empty"}
	}
	unlock := s.lockArtifact(result.ArtifactID)
	defer unlock()

	artifact, err := s.ReadArtifact(ctx, result.ArtifactID)
	if err != nil {
		return err
	}

	path := filepath.Join(s.artifactDir(result.ArtifactID), evalFile)
	if _, err := os.Stat(path); err == nil {
		storeWrites.WithLabelValues("evaluation", "conflict").Inc()
		return store.ErrEvalResultExists
	}

	envelope := evalEnvelope{
		ArtifactID:  result.ArtifactID,
		Metadata:    artifact.Metadata,
		EvaluatedAt: s.clock.Now().UTC(),
		Results:     result.Results,
		Summary:     result.Summary,
	}
	if err := writeJSON(path, &envelope); err != nil {
		storeWrites.WithLabelValues("evaluation", "error").Inc()
		return &errors.StoreError{Op: "write eval result", Key: result.ArtifactID, Cause: err}
	}
	storeWrites.WithLabelValues("evaluation", "ok").Inc()
	s.logger.Debug("evaluation result written",
		slog.String("artifact_id", result.ArtifactID),
		slog.Float64("overall", result.Summary.OverallPercentage))
	return nil
}

// ReadEvalResult retrieves the evaluation result for an artifact.
func (s *Store) ReadEvalResult(ctx context.Context, artifactID string) (*score.EvalResult, error) {
	var envelope evalEnvelope
	path := filepath.Join(s.artifactDir(artifactID), evalFile)
	if err := readJSON(path, &envelope); err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.NotFoundError{Resource: "evaluation", ID: artifactID}
		}
		return nil, &errors.StoreError{Op: "read eval result", Key: artifactID, Cause: err}
	}
	return &score.EvalResult{
		ArtifactID: envelope.ArtifactID,
		Results:    envelope.Results,
		Summary:    envelope.Summary,
	}, nil
}

// CreateCollection groups at least one stored artifact under a name.
// The first member's metadata is denormalized into the collection for
// cheap listings.
func (s *Store) CreateCollection(ctx context.Context, name string, artifactIDs []string) (*store.Collection, error) {
	if err := validateCollectionName(name); err != nil {
		return nil, err
	}
	if len(artifactIDs) == 0 {
		return nil, &errors.ConfigError{Key: "collection.artifact_ids", Reason: "at least one artifact required"}
	}

	s.collMu.Lock()
	defer s.collMu.Unlock()

	path := s.collectionPath(name)
	if _, err := os.Stat(path); err == nil {
		return nil, store.ErrCollectionExists
	}

	seen := make(map[string]bool, len(artifactIDs))
	for _, id := range artifactIDs {
		if seen[id] {
			return nil, &errors.ConfigError{Key: "collection.artifact_ids", Reason: "duplicate artifact id " + id}
		}
		seen[id] = true
	}

	first, err := s.ReadArtifact(ctx, artifactIDs[0])
	if err != nil {
		return nil, err
	}
	for _, id := range artifactIDs[1:] {
		if _, err := s.ReadArtifact(ctx, id); err != nil {
			return nil, err
		}
	}

	coll := &store.Collection{
		Name:        name,
		ArtifactIDs: append([]string(nil), artifactIDs...),
		CreatedAt:   s.clock.Now().UTC(),
		Metadata:    first.Metadata,
	}
	if err := writeJSON(path, coll); err != nil {
		return nil, &errors.StoreError{Op: "create collection", Key: name, Cause: err}
	}
	s.logger.Info("collection created",
		slog.String("collection", name), slog.Int("members", len(artifactIDs)))
	return coll, nil
}

// GetCollection retrieves a collection by name.
func (s *Store) GetCollection(ctx context.Context, name string) (*store.Collection, error) {
	var coll store.Collection
	if err := readJSON(s.collectionPath(name), &coll); err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.NotFoundError{Resource: "collection", ID: name}
		}
		return nil, &errors.StoreError{Op: "read collection", Key: name, Cause: err}
	}
	return &coll, nil
}

// ListCollections returns all collections sorted by name.
func (s *Store) ListCollections(ctx context.Context) ([]*store.Collection, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, collectionsDir))
	if err != nil {
		return nil, &errors.StoreError{Op: "list collections", Cause: err}
	}

	colls := make([]*store.Collection, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		coll, err := s.GetCollection(ctx, name)
		if err != nil {
			s.logger.Warn("skipping unreadable collection",
				slog.String("collection", name), slog.Any("error", err))
			continue
		}
		colls = append(colls, coll)
	}

	sort.Slice(colls, func(i, j int) bool { return colls[i].Name < colls[j].Name })
	return colls, nil
}

// AddToCollection appends an artifact reference to a collection.
func (s *Store) AddToCollection(ctx context.Context, name, artifactID string) error {
	s.collMu.Lock()
	defer s.collMu.Unlock()

	coll, err := s.GetCollection(ctx, name)
	if err != nil {
		return err
	}
	if coll.Contains(artifactID) {
		return store.ErrAlreadyInCollection
	}
	if _, err := s.ReadArtifact(ctx, artifactID); err != nil {
		return err
	}

	coll.ArtifactIDs = append(coll.ArtifactIDs, artifactID)
	if err := writeJSON(s.collectionPath(name), coll); err != nil {
		return &errors.StoreError{Op: "update collection", Key: name, Cause: err}
	}
	return nil
}

// RemoveFromCollection drops an artifact reference from a collection.
func (s *Store) RemoveFromCollection(ctx context.Context, name, artifactID string) error {
	s.collMu.Lock()
	defer s.collMu.Unlock()

	coll, err := s.GetCollection(ctx, name)
	if err != nil {
		return err
	}
	if !coll.Contains(artifactID) {
		return &errors.NotFoundError{Resource: "collection member", ID: artifactID}
	}

	kept := coll.ArtifactIDs[:0]
	for _, id := range coll.ArtifactIDs {
		if id != artifactID {
			kept = append(kept, id)
		}
	}
	coll.ArtifactIDs = kept
	if err := writeJSON(s.collectionPath(name), coll); err != nil {
		return &errors.StoreError{Op: "update collection", Key: name, Cause: err}
	}
	return nil
}

// DeleteCollection removes a collection, leaving its members intact.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	s.collMu.Lock()
	defer s.collMu.Unlock()

	if err := os.Remove(s.collectionPath(name)); err != nil {
		if os.IsNotExist(err) {
			return &errors.NotFoundError{Resource: "collection", ID: name}
		}
		return &errors.StoreError{Op: "delete collection", Key: name, Cause: err}
	}
	s.logger.Info("collection deleted", slog.String("collection", name))
	return nil
}

// referencingCollections returns the names of collections holding the
// artifact. Caller must hold collMu.
func (s *Store) referencingCollections(artifactID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, collectionsDir))
	if err != nil {
		return nil, &errors.StoreError{Op: "list collections", Cause: err}
	}
	var holders []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var coll store.Collection
		if err := readJSON(filepath.Join(s.root, collectionsDir, entry.Name()), &coll); err != nil {
			continue
		}
		if coll.Contains(artifactID) {
			holders = append(holders, coll.Name)
		}
	}
	sort.Strings(holders)
	return holders, nil
}

func validateArtifact(artifact *store.Artifact) error {
	if artifact == nil || artifact.ID == "" {
		return &errors.ConfigError{Key: "artifact.id", Reason: "must not be empty"}
	}
	if strings.ContainsRune(artifact.ID, filepath.Separator) || strings.HasPrefix(artifact.ID, ".") {
		return &errors.ConfigError{Key: "artifact.id", Reason: "must be a plain directory name"}
	}
	if artifact.Responses == nil {
		return &errors.ConfigError{Key: "artifact.responses", Reason: "must not be nil"}
	}
	return nil
}

func validateCollectionName(name string) error {
	if name == "" || len(name) > 64 {
		return &errors.ConfigError{Key: "collection.name", Reason: "must be 1-64 characters"}
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return &errors.ConfigError{Key: "collection.name", Reason: "allowed characters are A-Z, a-z, 0-9, _ and -"}
		}
	}
	return nil
}

// writeJSON replaces path atomically: marshal, write a sibling temp
// file, fsync, rename over the destination.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// readJSON loads path into v, passing through os.IsNotExist errors so
// callers can map them to not-found.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
