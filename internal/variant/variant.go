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

// Package variant manages documentation variants: the alternative
// documentation blobs a run feeds to the model. A variant is identified
// by name and carries its size so the control surfaces can show what a
// given documentation cut costs in context.
package variant

import (
	"context"
	"sort"
)

// Variant describes one documentation blob.
type Variant struct {
	// Name identifies the variant in run requests and artifact ids.
	Name string `json:"name"`

	// Size is the blob size in bytes.
	Size int64 `json:"size_bytes"`

	// Path is the opaque reference to the blob. For the directory
	// catalog it is the file path.
	Path string `json:"path"`
}

// Catalog resolves documentation variants for runs.
type Catalog interface {
	// Get returns the named variant.
	// Returns *errors.NotFoundError if it does not exist.
	Get(name string) (Variant, error)

	// List returns all known variants sorted by name.
	List() []Variant

	// Load returns the documentation text of the named variant.
	Load(ctx context.Context, name string) (string, error)
}

// sortByName orders variants for stable listings.
func sortByName(variants []Variant) {
	sort.Slice(variants, func(i, j int) bool {
		return variants[i].Name < variants[j].Name
	})
}
