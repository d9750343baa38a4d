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

package api

import (
	"net/http"

	"github.com/kevinjin420/jaseci-llmdocs/internal/evaluator"
	"github.com/kevinjin420/jaseci-llmdocs/internal/httputil"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store"
)

// ArtifactsHandler handles artifact and evaluation requests.
type ArtifactsHandler struct {
	store     store.Store
	evaluator *evaluator.Scheduler
}

// NewArtifactsHandler creates an artifacts handler.
func NewArtifactsHandler(st store.Store, sched *evaluator.Scheduler) *ArtifactsHandler {
	return &ArtifactsHandler{store: st, evaluator: sched}
}

// RegisterRoutes registers artifact API routes on the mux.
func (h *ArtifactsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/artifacts", h.handleList)
	mux.HandleFunc("GET /v1/artifacts/{id}", h.handleGet)
	mux.HandleFunc("POST /v1/artifacts/{id}/evaluate", h.handleEvaluate)
	mux.HandleFunc("GET /v1/artifacts/{id}/eval", h.handleGetEval)
}

// handleList handles GET /v1/artifacts.
func (h *ArtifactsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.store.ListArtifacts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"artifacts": artifacts,
		"count":     len(artifacts),
	})
}

// handleGet handles GET /v1/artifacts/{id}.
func (h *ArtifactsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.store.ReadArtifact(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, artifact)
}

// handleEvaluate handles POST /v1/artifacts/{id}/evaluate. Evaluation
// is synchronous and idempotent: an already evaluated artifact returns
// its stored result without re-scoring.
func (h *ArtifactsHandler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	result, err := h.evaluator.Evaluate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleGetEval handles GET /v1/artifacts/{id}/eval.
func (h *ArtifactsHandler) handleGetEval(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.ReadEvalResult(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
