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

	"github.com/kevinjin420/jaseci-llmdocs/internal/httputil"
	"github.com/kevinjin420/jaseci-llmdocs/internal/variant"
)

// VariantsHandler serves the documentation variant catalog.
type VariantsHandler struct {
	catalog variant.Catalog
}

// NewVariantsHandler creates a variants handler.
func NewVariantsHandler(catalog variant.Catalog) *VariantsHandler {
	return &VariantsHandler{catalog: catalog}
}

// RegisterRoutes registers variant API routes on the mux.
func (h *VariantsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/variants", h.handleList)
}

// handleList handles GET /v1/variants.
func (h *VariantsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	variants := h.catalog.List()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"variants": variants,
		"count":    len(variants),
	})
}
