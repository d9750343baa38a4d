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

package score

import (
	"fmt"
	"strings"
)

// Soft syntax rules. These are cheap textual heuristics, not a parser; each
// returned message is one violation and costs the configured syntax
// fraction of the test's points.

// softSyntaxViolations applies every soft rule to code and returns the
// violations in a fixed order so scoring stays deterministic.
func softSyntaxViolations(code string) []string {
	var violations []string
	violations = append(violations, checkBalance(code)...)
	violations = append(violations, checkStrayCommas(code)...)
	violations = append(violations, checkSemicolons(code)...)
	return violations
}

// checkBalance flags mismatched counts for each bracket family.
func checkBalance(code string) []string {
	pairs := []struct {
		open, close string
		name        string
	}{
		{"{", "}", "braces"},
		{"[", "]", "brackets"},
		{"(", ")", "parentheses"},
	}

	var out []string
	for _, p := range pairs {
		opening := strings.Count(code, p.open)
		closing := strings.Count(code, p.close)
		if opening != closing {
			out = append(out, fmt.Sprintf("mismatched %s: %d opening, %d closing", p.name, opening, closing))
		}
	}
	return out
}

// checkStrayCommas flags a comma directly preceding a closing delimiter,
// ignoring whitespace between them.
func checkStrayCommas(code string) []string {
	var out []string
	for i := 0; i < len(code); i++ {
		if code[i] != ',' {
			continue
		}
		j := i + 1
		for j < len(code) && isSpace(code[j]) {
			j++
		}
		if j < len(code) && (code[j] == '}' || code[j] == ']' || code[j] == ')') {
			out = append(out, fmt.Sprintf("stray comma before %q", string(code[j])))
		}
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Statement keywords whose lines must end with a semicolon.
var statementKeywords = []string{
	"glob ", "has ", "print(", "report ", "import ", "include ",
	"disengage", "raise ", "return ", "break", "continue",
}

// Lines starting a declaration or control block take no semicolon.
var blockStarters = []string{
	"def ", "obj ", "node ", "edge ", "walker ", "enum ",
	"can ", "if ", "elif ", "else", "for ", "while ",
	"try", "except", "match ", "case ", "async def", "with ",
}

// Line endings that already terminate or continue a statement.
var statementTerminators = []string{";", "{", "}", ":", ",", "\\"}

// checkSemicolons flags statement-looking lines that end without a
// terminator. It is a heuristic tuned to Jac surface syntax.
func checkSemicolons(code string) []string {
	var out []string
	for i, line := range strings.Split(code, "\n") {
		s := strings.TrimSpace(line)
		if s == "" || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "*#") {
			continue
		}
		if hasAnyPrefix(s, blockStarters) {
			continue
		}
		if !containsAny(s, statementKeywords) && !strings.Contains(s, "=") {
			continue
		}
		if hasAnySuffix(s, statementTerminators) {
			continue
		}
		out = append(out, fmt.Sprintf("line %d may be missing a semicolon: %s", i+1, truncateLine(s, 60)))
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func truncateLine(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
