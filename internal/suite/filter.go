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

package suite

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

// Filter narrows a suite with boolean expressions over test case fields.
// Compiled expressions are cached, so repeated submits with the same filter
// pay compilation once.
//
// The expression environment exposes per-test fields:
//
//	id        string   test case id
//	category  string   category name
//	level     int      difficulty level
//	points    int      maximum score
//	required  []string required patterns
//	hints     []string hints
//
// Example: `level <= 3 && category == "Graph Basics"`.
type Filter struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// NewFilter creates an empty filter cache.
func NewFilter() *Filter {
	return &Filter{cache: make(map[string]*vm.Program)}
}

// Apply returns the subset of s matching the expression, preserving suite
// order. An empty expression returns s unchanged. A filter that matches no
// test cases is rejected: running an empty suite is never intended.
func (f *Filter) Apply(s *Suite, expression string) (*Suite, error) {
	if expression == "" {
		return s, nil
	}

	program, err := f.compile(expression)
	if err != nil {
		return nil, &errors.ConfigError{
			Key:    "filter",
			Reason: fmt.Sprintf("failed to compile filter expression: %s", err.Error()),
			Cause:  err,
		}
	}

	out := &Suite{Name: s.Name}
	for _, tc := range s.Tests {
		env := map[string]interface{}{
			"id":       tc.ID,
			"category": tc.Category,
			"level":    tc.Level,
			"points":   tc.Points,
			"required": tc.Required,
			"hints":    tc.Hints,
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return nil, &errors.ConfigError{
				Key:    "filter",
				Reason: fmt.Sprintf("filter evaluation failed on test %q: %s", tc.ID, err.Error()),
				Cause:  err,
			}
		}
		keep, ok := result.(bool)
		if !ok {
			return nil, &errors.ConfigError{
				Key:    "filter",
				Reason: fmt.Sprintf("filter must return boolean, got %T", result),
			}
		}
		if keep {
			out.Tests = append(out.Tests, tc)
		}
	}

	if len(out.Tests) == 0 {
		return nil, &errors.ConfigError{
			Key:    "filter",
			Reason: fmt.Sprintf("filter %q matched no test cases", expression),
		}
	}
	return out, nil
}

// compile compiles an expression and caches the result.
func (f *Filter) compile(expression string) (*vm.Program, error) {
	f.mu.RLock()
	if prog, ok := f.cache[expression]; ok {
		f.mu.RUnlock()
		return prog, nil
	}
	f.mu.RUnlock()

	prog, err := expr.Compile(expression,
		// The environment is supplied per test case at run time.
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[expression] = prog
	f.mu.Unlock()

	return prog, nil
}

// CacheSize returns the number of cached expressions.
func (f *Filter) CacheSize() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}
