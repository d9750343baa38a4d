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

package shared

import (
	"errors"
	"fmt"
	"testing"
)

// mockGuidedError is a test error carrying remedial guidance.
type mockGuidedError struct {
	message  string
	guidance string
}

func (e *mockGuidedError) Error() string {
	return e.message
}

func (e *mockGuidedError) Guidance() string {
	return e.guidance
}

func TestExitError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ExitError
		want string
	}{
		{
			name: "message only",
			err:  &ExitError{Code: ExitExecutionFailed, Message: "run failed"},
			want: "run failed",
		},
		{
			name: "message with cause",
			err:  &ExitError{Code: ExitExecutionFailed, Message: "run failed", Cause: errors.New("timeout")},
			want: "run failed: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitError_ConstructorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *ExitError
		want int
	}{
		{"execution", NewExecutionError("x", nil), ExitExecutionFailed},
		{"invalid request", NewInvalidRequestError("x", nil), ExitInvalidRequest},
		{"missing input", NewMissingInputError("x", nil), ExitMissingInput},
		{"provider", NewProviderError("x", nil), ExitProviderError},
		{"non-interactive", NewMissingInputNonInteractiveError("x", nil), ExitMissingInputNonInteractive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.want {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.want)
			}
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	innerErr := errors.New("inner error")
	exitErr := NewExecutionError("execution failed", innerErr)

	unwrapped := errors.Unwrap(exitErr)
	if unwrapped != innerErr {
		t.Errorf("expected unwrapped error to be innerErr, got %v", unwrapped)
	}
}

func TestGuidance_FoundThroughExitError(t *testing.T) {
	guided := &mockGuidedError{
		message:  "daemon not running",
		guidance: "Start it with: jacbenchd",
	}
	exitErr := NewExecutionError("cannot reach daemon", guided)

	// printGuidance walks Unwrap; verify the chain exposes the guidance.
	var found string
	for err := error(exitErr); err != nil; err = errors.Unwrap(err) {
		if g, ok := err.(interface{ Guidance() string }); ok {
			found = g.Guidance()
			break
		}
	}

	if found != "Start it with: jacbenchd" {
		t.Errorf("guidance = %q, want the mock guidance", found)
	}
}

func TestGuidance_FoundThroughWrappedError(t *testing.T) {
	guided := &mockGuidedError{message: "refused", guidance: "check the socket"}
	wrapped := fmt.Errorf("request failed: %w", guided)

	var target *mockGuidedError
	if !errors.As(wrapped, &target) {
		t.Fatal("expected to unwrap mockGuidedError from wrapped error")
	}
	if target.Guidance() != "check the socket" {
		t.Errorf("Guidance() = %q, want %q", target.Guidance(), "check the socket")
	}
}

func TestGuidance_PlainErrorHasNone(t *testing.T) {
	regularErr := errors.New("some internal error")

	if _, ok := regularErr.(interface{ Guidance() string }); ok {
		t.Error("plain error should not carry guidance")
	}
}
