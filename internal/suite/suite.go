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

// Package suite loads and validates benchmark test suites. A suite is an
// ordered, immutable list of test cases; identity is the test case id.
// Suites come from a YAML file or from the embedded default, and can be
// narrowed with filter expressions before a run is submitted.
package suite

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

// Embed the default suite so the binary works without a suite file.
//
//go:embed default.yaml
var defaultSuiteYAML []byte

// TestCase is a single benchmark task. Required and Forbidden hold literal
// substrings matched case-sensitively against the model's response.
type TestCase struct {
	ID        string   `yaml:"id" json:"id"`
	Category  string   `yaml:"category" json:"category"`
	Level     int      `yaml:"level" json:"level"`
	Points    int      `yaml:"points" json:"points"`
	Task      string   `yaml:"task" json:"task"`
	Required  []string `yaml:"required" json:"required"`
	Forbidden []string `yaml:"forbidden,omitempty" json:"forbidden,omitempty"`
	Hints     []string `yaml:"hints,omitempty" json:"hints,omitempty"`
}

// Suite is an ordered collection of test cases. It is immutable after
// loading; filters produce new Suite values.
type Suite struct {
	Name  string     `yaml:"name" json:"name"`
	Tests []TestCase `yaml:"tests" json:"tests"`
}

// Parse decodes and validates a suite from YAML bytes.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, &errors.ConfigError{
			Key:    "suite",
			Reason: "failed to parse suite YAML",
			Cause:  err,
		}
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses a suite definition file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.ConfigError{
			Key:    "suite",
			Reason: fmt.Sprintf("failed to read suite file %s", path),
			Cause:  err,
		}
	}
	return Parse(data)
}

// Default returns the embedded benchmark suite.
func Default() *Suite {
	s, err := Parse(defaultSuiteYAML)
	if err != nil {
		// The embedded suite is validated by tests; a parse failure here
		// means the binary itself is broken.
		panic(fmt.Sprintf("embedded default suite is invalid: %v", err))
	}
	return s
}

func (s *Suite) validate() error {
	if s.Name == "" {
		return &errors.ConfigError{Key: "suite.name", Reason: "must not be empty"}
	}
	if len(s.Tests) == 0 {
		return &errors.ConfigError{Key: "suite.tests", Reason: "must contain at least one test case"}
	}
	seen := make(map[string]struct{}, len(s.Tests))
	for i, tc := range s.Tests {
		key := fmt.Sprintf("suite.tests[%d]", i)
		if tc.ID == "" {
			return &errors.ConfigError{Key: key + ".id", Reason: "must not be empty"}
		}
		if _, dup := seen[tc.ID]; dup {
			return &errors.ConfigError{Key: key + ".id", Reason: fmt.Sprintf("duplicate test id %q", tc.ID)}
		}
		seen[tc.ID] = struct{}{}
		if tc.Category == "" {
			return &errors.ConfigError{Key: key + ".category", Reason: "must not be empty"}
		}
		if tc.Level < 1 {
			return &errors.ConfigError{Key: key + ".level", Reason: "must be >= 1"}
		}
		if tc.Points < 1 {
			return &errors.ConfigError{Key: key + ".points", Reason: "must be >= 1"}
		}
		if tc.Task == "" {
			return &errors.ConfigError{Key: key + ".task", Reason: "must not be empty"}
		}
	}
	return nil
}

// Len returns the number of test cases.
func (s *Suite) Len() int { return len(s.Tests) }

// TotalPoints sums the points of every test case.
func (s *Suite) TotalPoints() int {
	total := 0
	for _, tc := range s.Tests {
		total += tc.Points
	}
	return total
}

// IDs returns the test case ids in suite order.
func (s *Suite) IDs() []string {
	ids := make([]string, len(s.Tests))
	for i, tc := range s.Tests {
		ids[i] = tc.ID
	}
	return ids
}

// Lookup returns the test case with the given id.
func (s *Suite) Lookup(id string) (TestCase, bool) {
	for _, tc := range s.Tests {
		if tc.ID == id {
			return tc, true
		}
	}
	return TestCase{}, false
}

// Subset returns a new suite containing only the named test cases, in suite
// order. Unknown ids are reported, not silently dropped.
func (s *Suite) Subset(ids []string) (*Suite, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.Lookup(id); !ok {
			return nil, &errors.NotFoundError{Resource: "test case", ID: id}
		}
		want[id] = struct{}{}
	}
	sub := &Suite{Name: s.Name}
	for _, tc := range s.Tests {
		if _, ok := want[tc.ID]; ok {
			sub.Tests = append(sub.Tests, tc)
		}
	}
	return sub, nil
}
