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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kevinjin420/jaseci-llmdocs/internal/collection"
	"github.com/kevinjin420/jaseci-llmdocs/internal/httputil"
)

// CollectionsHandler handles collection and comparison requests.
type CollectionsHandler struct {
	manager *collection.Manager
}

// NewCollectionsHandler creates a collections handler.
func NewCollectionsHandler(m *collection.Manager) *CollectionsHandler {
	return &CollectionsHandler{manager: m}
}

// RegisterRoutes registers collection API routes on the mux.
func (h *CollectionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/collections", h.handleCreate)
	mux.HandleFunc("GET /v1/collections", h.handleList)
	mux.HandleFunc("GET /v1/collections/{name}", h.handleGet)
	mux.HandleFunc("DELETE /v1/collections/{name}", h.handleDelete)
	mux.HandleFunc("POST /v1/collections/{name}/artifacts", h.handleAdd)
	mux.HandleFunc("DELETE /v1/collections/{name}/artifacts/{id}", h.handleRemove)
	mux.HandleFunc("GET /v1/compare", h.handleCompare)
}

// CreateCollectionRequest is the request body for creating a collection.
type CreateCollectionRequest struct {
	Name        string   `json:"name"`
	ArtifactIDs []string `json:"artifact_ids"`
}

// handleCreate handles POST /v1/collections.
func (h *CollectionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	coll, err := h.manager.Create(r.Context(), req.Name, req.ArtifactIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, coll)
}

// handleList handles GET /v1/collections.
func (h *CollectionsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	collections, err := h.manager.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"collections": collections,
		"count":       len(collections),
	})
}

// handleGet handles GET /v1/collections/{name}: the manifest plus the
// computed statistics over its evaluated members.
func (h *CollectionsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	coll, err := h.manager.Get(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	stats, err := h.manager.Stats(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"collection": coll,
		"stats":      stats,
	})
}

// handleDelete handles DELETE /v1/collections/{name}.
func (h *CollectionsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.manager.Delete(r.Context(), name); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
		"name":   name,
	})
}

// AddArtifactRequest is the request body for adding a collection member.
type AddArtifactRequest struct {
	ArtifactID string `json:"artifact_id"`
}

// handleAdd handles POST /v1/collections/{name}/artifacts.
func (h *CollectionsHandler) handleAdd(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req AddArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.ArtifactID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "artifact_id is required")
		return
	}

	if err := h.manager.Add(r.Context(), name, req.ArtifactID); err != nil {
		writeDomainError(w, err)
		return
	}
	coll, err := h.manager.Get(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, coll)
}

// handleRemove handles DELETE /v1/collections/{name}/artifacts/{id}.
// The artifact itself stays in the store; only the reference is
// dropped.
func (h *CollectionsHandler) handleRemove(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := h.manager.Remove(r.Context(), name, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	coll, err := h.manager.Get(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, coll)
}

// handleCompare handles GET /v1/compare?a=&b=.
func (h *CollectionsHandler) handleCompare(w http.ResponseWriter, r *http.Request) {
	first := r.URL.Query().Get("a")
	second := r.URL.Query().Get("b")
	if first == "" || second == "" {
		httputil.WriteError(w, http.StatusBadRequest, "query parameters a and b are required")
		return
	}

	cmp, err := h.manager.Compare(r.Context(), first, second)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cmp)
}
