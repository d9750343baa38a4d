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

package variant

import (
	"context"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

// Static is a fixed in-memory catalog for documentation sets that no
// directory backs, such as embedded defaults.
type Static struct {
	variants map[string]Variant
	docs     map[string]string
}

var _ Catalog = (*Static)(nil)

// NewStatic builds a catalog from variant name to documentation text.
func NewStatic(docs map[string]string) *Static {
	variants := make(map[string]Variant, len(docs))
	texts := make(map[string]string, len(docs))
	for name, text := range docs {
		variants[name] = Variant{Name: name, Size: int64(len(text))}
		texts[name] = text
	}
	return &Static{variants: variants, docs: texts}
}

// Get returns the named variant.
func (c *Static) Get(name string) (Variant, error) {
	v, ok := c.variants[name]
	if !ok {
		return Variant{}, &errors.NotFoundError{Resource: "variant", ID: name}
	}
	return v, nil
}

// List returns all variants sorted by name.
func (c *Static) List() []Variant {
	out := make([]Variant, 0, len(c.variants))
	for _, v := range c.variants {
		out = append(out, v)
	}
	sortByName(out)
	return out
}

// Load returns the documentation text of the named variant.
func (c *Static) Load(ctx context.Context, name string) (string, error) {
	text, ok := c.docs[name]
	if !ok {
		return "", &errors.NotFoundError{Resource: "variant", ID: name}
	}
	return text, nil
}
